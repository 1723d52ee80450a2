package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	DBPath        string        `yaml:"db_path"`
	PlatformsFile string        `yaml:"platforms_file"`
	HTTP          HTTPConfig    `yaml:"http"`
	Import        ImportConfig  `yaml:"import"`
	Sources       SourcesConfig `yaml:"sources"`
	Logging       LoggingConfig `yaml:"logging"`
}

// HTTPConfig configures the shared web downloader.
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	UserAgents        []string      `yaml:"user_agents"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CloudflareBypass  bool          `yaml:"cloudflare_bypass"`
}

// ImportConfig configures bulk import workflows.
type ImportConfig struct {
	Workers             int     `yaml:"workers"`
	Policy              string  `yaml:"policy"` // "append" or "replace"
	MaxPages            int     `yaml:"max_pages"`
	MaxResults          int     `yaml:"max_results"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// SourcesConfig holds per-provider settings.
type SourcesConfig struct {
	Barcode BarcodeSource `yaml:"barcode"`
	Wiki    WikiSource    `yaml:"wiki"`
	IGDB    IGDBSource    `yaml:"igdb"`
}

// BarcodeSource configures the HTML barcode lookup adapter.
type BarcodeSource struct {
	BaseURL string `yaml:"base_url"`
}

// WikiSource configures the MediaWiki adapter.
type WikiSource struct {
	APIURL            string `yaml:"api_url"`
	PlatformDelimiter string `yaml:"platform_delimiter"`
}

// IGDBSource holds IGDB (Twitch) credentials.
type IGDBSource struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// LoggingConfig mirrors logging.Config for YAML.
type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

const (
	defaultDBPath     = "gamemeta.db"
	defaultWorkers    = 8
	defaultMaxPages   = 50
	defaultMaxResults = 5000
	defaultSimilarity = 0.92
	defaultTimeout    = 30 * time.Second
)

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DBPath: defaultDBPath,
		HTTP: HTTPConfig{
			Timeout:           defaultTimeout,
			RequestsPerSecond: 2,
			Burst:             2,
		},
		Import: ImportConfig{
			Workers:             defaultWorkers,
			Policy:              "append",
			MaxPages:            defaultMaxPages,
			MaxResults:          defaultMaxResults,
			SimilarityThreshold: defaultSimilarity,
		},
		Sources: SourcesConfig{
			Wiki: WikiSource{
				APIURL:            "https://en.wikipedia.org/w/api.php",
				PlatformDelimiter: ";",
			},
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// configPaths returns the list of paths to search for config file.
func configPaths() []string {
	paths := []string{
		".gamemeta.yaml",
		".gamemeta.yml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "gamemeta", "config.yaml"),
			filepath.Join(home, ".config", "gamemeta", "config.yml"),
			filepath.Join(home, ".gamemeta.yaml"),
		)
	}

	return paths
}

// Load loads configuration from file or returns defaults.
// Priority: env overrides > file (GAMEMETA_CONFIG, then search paths) > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if envPath := os.Getenv("GAMEMETA_CONFIG"); envPath != "" {
		if err := cfg.loadFromFile(envPath); err != nil {
			return nil, err
		}
		if err := cfg.applyEnvOverrides(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadFromFile(path); err != nil {
				return nil, err
			}
			break
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays the values set in path on top of c. Keys present in
// the file win even when they hold a zero value, so requests_per_second: 0
// disables the limiter and cloudflare_bypass: false turns the bypass off.
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // Path from env or fixed search list
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides merges the environment over c. Unset variables leave c
// untouched.
func (c *Config) applyEnvOverrides() error {
	var env Config
	env.DBPath = os.Getenv("GAMEMETA_DB")
	if ua := os.Getenv("GAMEMETA_USER_AGENT"); ua != "" {
		env.HTTP.UserAgents = []string{ua}
	}
	env.Sources.IGDB.ClientID = os.Getenv("IGDB_CLIENT_ID")
	env.Sources.IGDB.ClientSecret = os.Getenv("IGDB_CLIENT_SECRET")

	if err := mergo.Merge(c, env, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge environment: %w", err)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// GetDBPath returns the database path, applying defaults.
func (c *Config) GetDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return defaultDBPath
}

// GetWorkers returns the bulk import worker count.
func (c *Config) GetWorkers() int {
	if c.Import.Workers > 0 {
		return c.Import.Workers
	}
	return defaultWorkers
}

// GetPolicy returns the normalized merge policy name.
func (c *Config) GetPolicy() string {
	if strings.EqualFold(c.Import.Policy, "replace") {
		return "replace"
	}
	return "append"
}

// GetTimeout returns the per-request HTTP timeout.
func (c *Config) GetTimeout() time.Duration {
	if c.HTTP.Timeout > 0 {
		return c.HTTP.Timeout
	}
	return defaultTimeout
}

// GetMaxPages returns the pagination page cap.
func (c *Config) GetMaxPages() int {
	if c.Import.MaxPages > 0 {
		return c.Import.MaxPages
	}
	return defaultMaxPages
}

// GetMaxResults returns the pagination result cap.
func (c *Config) GetMaxResults() int {
	if c.Import.MaxResults > 0 {
		return c.Import.MaxResults
	}
	return defaultMaxResults
}

// GetSimilarityThreshold returns the fuzzy match threshold in (0, 1].
func (c *Config) GetSimilarityThreshold() float64 {
	if t := c.Import.SimilarityThreshold; t > 0 && t <= 1 {
		return t
	}
	return defaultSimilarity
}
