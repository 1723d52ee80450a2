package metadata

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ryanm101/gamemeta/internal/download"
	"github.com/ryanm101/gamemeta/internal/platform"
)

// Deps are the shared services handed to adapter constructors.
type Deps struct {
	HTTP       *download.Client
	Platforms  *platform.Resolver
	Settings   map[string]string
	MaxPages   int
	MaxResults int
}

// Setting returns a settings value or fallback when unset.
func (d Deps) Setting(key, fallback string) string {
	if v, ok := d.Settings[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Constructor builds an adapter.
type Constructor func(deps Deps) (Adapter, error)

var registry = struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}{constructors: make(map[string]Constructor)}

// Register adds an adapter constructor by name. Names are case-insensitive.
func Register(name string, constructor Constructor) error {
	if name == "" {
		return fmt.Errorf("registry: adapter name required")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	key := strings.ToLower(name)
	if _, exists := registry.constructors[key]; exists {
		return fmt.Errorf("registry: adapter %s already registered", name)
	}
	registry.constructors[key] = constructor
	return nil
}

// Lookup returns a registered constructor by name.
func Lookup(name string) (Constructor, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	c, ok := registry.constructors[strings.ToLower(name)]
	return c, ok
}

// Open builds the named adapter.
func Open(name string, deps Deps) (Adapter, error) {
	c, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown source %q (available: %s)", name, strings.Join(Adapters(), ", "))
	}
	return c(deps)
}

// Adapters returns the sorted registered adapter names.
func Adapters() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.constructors))
	for name := range registry.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
