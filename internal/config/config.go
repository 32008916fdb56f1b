package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultPagesDir      = "src/pages"
	DefaultCacheDir      = ".evidence-queries/extracted"
	DefaultMaxIterations = 100
	DefaultMaxBodyLength = 4 << 20
	DefaultWorkers       = 1
	DefaultPrune         = true
	DefaultNoCache       = false
	DefaultVerbose       = false
)

// Holds the configuration options for mdq
type Config struct {
	// Directory holding the markdown documents
	PagesDir string

	// Root of the resolved query cache
	CacheDir string

	// Resolver pass bound before references are reported as circular
	MaxIterations int
	// Largest compiled query body in bytes
	MaxBodyLength int

	// Extra labels treated as display code instead of queries
	Languages []string

	// Number of documents processed in parallel
	Workers int

	// Remove cache entries of documents that no longer exist
	Prune bool

	// Resolve without reading or writing the cache
	NoCache bool

	// Enable verbose output
	Verbose bool
}

func Load() (*Config, error) {
	cfg := &Config{
		PagesDir:      viper.GetString("pages_dir"),
		CacheDir:      viper.GetString("cache_dir"),
		MaxIterations: viper.GetInt("max_iterations"),
		MaxBodyLength: viper.GetInt("max_body_length"),
		Languages:     viper.GetStringSlice("languages"),
		Workers:       viper.GetInt("workers"),
		Prune:         viper.GetBool("prune"),
		NoCache:       viper.GetBool("no_cache"),
		Verbose:       viper.GetBool("verbose"),
	}

	// Apply defaults if not set
	if cfg.PagesDir == "" {
		cfg.PagesDir = DefaultPagesDir
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}

	if cfg.MaxBodyLength == 0 {
		cfg.MaxBodyLength = DefaultMaxBodyLength
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{
		PagesDir:      DefaultPagesDir,
		CacheDir:      DefaultCacheDir,
		MaxIterations: DefaultMaxIterations,
		MaxBodyLength: DefaultMaxBodyLength,
		Workers:       DefaultWorkers,
		Prune:         DefaultPrune,
	}
}

func (c *Config) Validate() error {
	abs, err := filepath.Abs(c.PagesDir)
	if err != nil {
		return fmt.Errorf("invalid pages directory: %v", err)
	}

	c.PagesDir = abs

	abs, err = filepath.Abs(c.CacheDir)
	if err != nil {
		return fmt.Errorf("invalid cache directory: %v", err)
	}

	c.CacheDir = abs

	if c.MaxIterations < 1 {
		return fmt.Errorf("invalid max iterations: %d", c.MaxIterations)
	}

	if c.MaxBodyLength < 1 {
		return fmt.Errorf("invalid max body length: %d", c.MaxBodyLength)
	}

	if c.Workers < 1 {
		return fmt.Errorf("invalid worker count: %d", c.Workers)
	}

	return nil
}
