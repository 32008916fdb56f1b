package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Norgate-AV/mdq/internal/cache"
	"github.com/Norgate-AV/mdq/internal/config"
	"github.com/Norgate-AV/mdq/internal/engine"
	"github.com/Norgate-AV/mdq/internal/logger"
	"github.com/Norgate-AV/mdq/internal/version"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mdq",
		Short: "Markdown query compiler",
		Long: `Extract named queries from markdown pages, resolve ${id} references
between them, and cache the resolved query set per page.`,
		RunE:         runBuild,
		SilenceUsage: true,
		Args:         cobra.ArbitraryArgs,
	}

	root.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)

	flags := root.PersistentFlags()
	flags.String("pages-dir", config.DefaultPagesDir, "Directory holding the markdown pages")
	flags.String("cache-dir", config.DefaultCacheDir, "Directory holding resolved query artifacts")
	flags.Int("max-iterations", config.DefaultMaxIterations, "Resolver passes before a reference is reported as circular")
	flags.Int("max-body-length", config.DefaultMaxBodyLength, "Largest compiled query body in bytes")
	flags.StringSlice("languages", []string{}, "Extra code block labels treated as display code")
	flags.Int("workers", config.DefaultWorkers, "Number of pages processed in parallel")
	flags.Bool("prune", config.DefaultPrune, "Remove cache entries of pages that no longer exist")
	flags.Bool("no-cache", config.DefaultNoCache, "Resolve without reading or writing the cache")
	flags.BoolP("verbose", "v", config.DefaultVerbose, "Verbose output")

	root.AddCommand(newBuildCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newCacheCmd())

	return root
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// session holds everything a command needs to process pages
type session struct {
	cfg    *config.Config
	log    *zap.Logger
	cache  *cache.Cache
	engine *engine.Engine
}

// openSession loads configuration and opens the cache for a command run.
// The cache stays closed when useCache is false or caching is disabled.
func openSession(cmd *cobra.Command, args []string, useCache bool) (*session, error) {
	cfg, err := config.NewLoader().LoadForCommand(cmd, args)
	if err != nil {
		return nil, err
	}

	if !useCache {
		cfg.NoCache = true
	}

	log, err := logger.New(cfg.Verbose)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, log: log}

	if !cfg.NoCache {
		s.cache, err = cache.New(cfg.CacheDir)
		if err != nil {
			_ = log.Sync()
			return nil, err
		}
	}

	s.engine = engine.New(cfg, s.cache, log)

	log.Debug("Loaded configuration",
		zap.String("pages_dir", cfg.PagesDir),
		zap.String("cache_dir", cfg.CacheDir),
		zap.Int("max_iterations", cfg.MaxIterations),
		zap.Int("workers", cfg.Workers),
		zap.Bool("no_cache", cfg.NoCache))

	return s, nil
}

// Close releases the cache and flushes the logger
func (s *session) Close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.log.Warn("Failed to close cache", zap.Error(err))
		}
	}

	_ = s.log.Sync()
}
