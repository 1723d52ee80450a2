package platform

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed platforms.yaml
var defaultsFS embed.FS

// Resolver maps provider platform labels to canonical handles. It is
// read-only after construction and safe for concurrent use.
type Resolver struct {
	mapping map[string]string
}

// NewResolver builds a resolver from a label -> specification id mapping.
// Labels are folded to lower case; labels that fold to the same key must map
// to the same id.
func NewResolver(mapping map[string]string) *Resolver {
	folded := make(map[string]string, len(mapping))
	for label, id := range mapping {
		key := foldLabel(label)
		if key == "" || id == "" {
			continue
		}
		folded[key] = id
	}
	return &Resolver{mapping: folded}
}

func foldLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Resolve returns the canonical handle for label, or a free-text handle
// carrying label unchanged when no mapping exists. Lookup is
// case-insensitive. Free-text handles keep the provider's spelling, so two
// spellings of an unmapped label compare equal only through Handle.Key.
func (r *Resolver) Resolve(label string) Handle {
	if r != nil {
		if id, ok := r.mapping[foldLabel(label)]; ok {
			return Spec(id)
		}
	}
	return Named(label)
}

// ResolveList splits raw on delimiter and resolves every non-empty part.
// Duplicates are kept; collapsing them is up to the caller.
func (r *Resolver) ResolveList(raw, delimiter string) []Handle {
	if delimiter == "" {
		delimiter = ";"
	}
	var handles []Handle
	for _, part := range strings.Split(raw, delimiter) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		handles = append(handles, r.Resolve(part))
	}
	return handles
}

// ResolveAll resolves each label independently.
func (r *Resolver) ResolveAll(labels []string) []Handle {
	handles := make([]Handle, 0, len(labels))
	for _, label := range labels {
		if strings.TrimSpace(label) == "" {
			continue
		}
		handles = append(handles, r.Resolve(label))
	}
	return handles
}

// Len returns the number of known labels.
func (r *Resolver) Len() int {
	return len(r.mapping)
}

// mappingFile is the YAML layout of platforms.yaml.
type mappingFile struct {
	Mappings map[string]string `yaml:"mappings"`
}

// DefaultMapping returns a fresh copy of the embedded label mapping.
func DefaultMapping() map[string]string {
	out := make(map[string]string)
	data, err := defaultsFS.ReadFile("platforms.yaml")
	if err != nil {
		return out
	}
	var f mappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return out
	}
	for k, v := range f.Mappings {
		out[k] = v
	}
	return out
}

// LoadMappingFile reads a platforms.yaml style file.
func LoadMappingFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path from config or fixed search list
	if err != nil {
		return nil, err
	}
	var f mappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Mappings, nil
}

// mappingPaths returns the override files checked by Load, highest priority last
// so that later files overwrite earlier ones.
func mappingPaths(explicit string) []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gamemeta", "platforms.yaml"))
	}
	paths = append(paths, "platforms.yaml")
	if envPath := os.Getenv("GAMEMETA_PLATFORMS_FILE"); envPath != "" {
		paths = append(paths, envPath)
	}
	if explicit != "" {
		paths = append(paths, explicit)
	}
	return paths
}

// Load builds a resolver from the embedded defaults merged with any user
// overrides found on disk. A missing explicit file is an error; missing
// search-path files are ignored.
func Load(explicit string) (*Resolver, error) {
	mapping := make(map[string]string)
	for k, v := range DefaultMapping() {
		mapping[foldLabel(k)] = v
	}

	for _, path := range mappingPaths(explicit) {
		overrides, err := LoadMappingFile(path)
		if err != nil {
			if os.IsNotExist(err) && path != explicit {
				continue
			}
			return nil, err
		}
		for k, v := range overrides {
			mapping[foldLabel(k)] = v
		}
	}

	return NewResolver(mapping), nil
}
