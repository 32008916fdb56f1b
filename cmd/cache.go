package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/mdq/internal/document"
	"github.com/Norgate-AV/mdq/internal/engine"
)

var errCacheDisabled = errors.New("cache is disabled")

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the query cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:          "stats",
		Short:        "Show cache statistics",
		Args:         cobra.NoArgs,
		RunE:         runCacheStats,
		SilenceUsage: true,
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:          "list",
		Short:        "List cached pages",
		Args:         cobra.NoArgs,
		RunE:         runCacheList,
		SilenceUsage: true,
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:          "clear",
		Short:        "Remove every cached page",
		Args:         cobra.NoArgs,
		RunE:         runCacheClear,
		SilenceUsage: true,
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:          "prune",
		Short:        "Remove cached pages that no longer exist",
		Args:         cobra.NoArgs,
		RunE:         runCachePrune,
		SilenceUsage: true,
	})

	return cacheCmd
}

func openCacheSession(cmd *cobra.Command, args []string) (*session, error) {
	s, err := openSession(cmd, args, true)
	if err != nil {
		return nil, err
	}

	if s.cache == nil {
		s.Close()
		return nil, errCacheDisabled
	}

	return s, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	s, err := openCacheSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.cache.Stats()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Cache: %s\n", s.cache.Root())
	fmt.Fprintf(w, "Pages: %d\n", stats.Documents)
	fmt.Fprintf(w, "Artifacts: %d\n", stats.Artifacts)
	fmt.Fprintf(w, "Size: %d bytes\n", stats.Bytes)

	return nil
}

func runCacheList(cmd *cobra.Command, args []string) error {
	s, err := openCacheSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.cache.Entries()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, entry := range entries {
		fmt.Fprintf(w, "%-40s %.12s %d errors  %s\n",
			entry.Route, entry.Hash, entry.ErrorCount, strings.Join(entry.QueryIDs, ", "))
	}

	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	s, err := openCacheSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.cache.Clear(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	s, err := openCacheSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	paths, err := engine.FindDocuments(s.cfg.PagesDir)
	if err != nil {
		return err
	}

	keep := make(map[string]bool, len(paths))
	for _, path := range paths {
		route, err := document.RouteFor(s.cfg.PagesDir, path)
		if err != nil {
			return err
		}

		keep[document.RouteHash(route)] = true
	}

	removed, err := s.cache.Prune(keep)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d pages\n", len(removed))
	return nil
}
