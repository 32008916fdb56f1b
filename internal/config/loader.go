package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by viper
const EnvPrefix = "MDQ"

// flagKeys maps command flags to configuration keys
var flagKeys = map[string]string{
	"pages-dir":       "pages_dir",
	"cache-dir":       "cache_dir",
	"max-iterations":  "max_iterations",
	"max-body-length": "max_body_length",
	"languages":       "languages",
	"workers":         "workers",
	"prune":           "prune",
	"no-cache":        "no_cache",
	"verbose":         "verbose",
}

// Loader handles configuration loading from various sources
type Loader struct {
	// GlobalDir holds the user-wide config file
	GlobalDir string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	l := &Loader{}

	if dir, err := os.UserConfigDir(); err == nil {
		l.GlobalDir = filepath.Join(dir, "mdq")
	}

	return l
}

// LoadForCommand loads configuration for a command run
// Precedence: flags, environment, local config, global config, defaults
func (l *Loader) LoadForCommand(cmd *cobra.Command, args []string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(args)
	l.bindEnv()
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("pages_dir", DefaultPagesDir)
	viper.SetDefault("cache_dir", DefaultCacheDir)
	viper.SetDefault("max_iterations", DefaultMaxIterations)
	viper.SetDefault("max_body_length", DefaultMaxBodyLength)
	viper.SetDefault("workers", DefaultWorkers)
	viper.SetDefault("prune", DefaultPrune)
	viper.SetDefault("no_cache", DefaultNoCache)
	viper.SetDefault("verbose", DefaultVerbose)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	path := FindGlobalConfig(l.GlobalDir)
	if path == "" {
		return
	}

	viper.SetConfigFile(path)
	_ = viper.MergeInConfig()
}

// loadLocalConfig loads local configuration from the project directory,
// starting at the first argument or the working directory
func (l *Loader) loadLocalConfig(args []string) {
	var dir string

	if len(args) > 0 {
		absFirstFile, err := filepath.Abs(args[0])
		if err != nil {
			return // silently ignore, config.Load() will handle validation
		}

		dir = filepath.Dir(absFirstFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return
		}

		dir = cwd
	}

	localPath := FindLocalConfig(dir)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindEnv lets MDQ_* environment variables override config files
func (l *Loader) bindEnv() {
	viper.SetEnvPrefix(EnvPrefix)

	for _, key := range flagKeys {
		_ = viper.BindEnv(key)
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
