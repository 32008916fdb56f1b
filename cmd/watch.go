package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Norgate-AV/mdq/internal/document"
	"github.com/Norgate-AV/mdq/internal/engine"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Resolve pages again whenever they change",
		Long: `Resolve every page in the pages directory, then watch it and resolve
pages again as they are written. Deleted pages lose their cache entries.`,
		Args:         cobra.NoArgs,
		RunE:         runWatch,
		SilenceUsage: true,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args, true)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := s.engine.ProcessDir(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printResults(out, results)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addDirs(watcher, s.cfg.PagesDir); err != nil {
		return err
	}

	fmt.Fprintf(out, "Watching %s\n", s.cfg.PagesDir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			res, err := handleEvent(s.engine, ev, func(dir string) error {
				return addDirs(watcher, dir)
			})
			if err != nil {
				s.log.Error("Failed to process change", zap.String("path", ev.Name), zap.Error(err))
				continue
			}

			printResults(out, res)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			s.log.Warn("Watcher error", zap.Error(err))
		}
	}
}

// handleEvent processes one filesystem change and returns the results of
// any documents that were resolved
func handleEvent(e *engine.Engine, ev fsnotify.Event, addDir func(string) error) ([]*engine.Result, error) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addDir(ev.Name); err != nil {
				return nil, err
			}

			return processAll(e, ev.Name)
		}
	}

	if !document.IsDocument(ev.Name) {
		// a removed or renamed directory takes its pages with it
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			return nil, e.RemoveDir(ev.Name)
		}

		return nil, nil
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return nil, e.RemoveFile(ev.Name)

	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
		res, err := e.ProcessFile(ev.Name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil // removed before we got to it
			}
			return nil, err
		}

		return []*engine.Result{res}, nil
	}

	return nil, nil
}

// processAll resolves every document below dir
func processAll(e *engine.Engine, dir string) ([]*engine.Result, error) {
	paths, err := engine.FindDocuments(dir)
	if err != nil {
		return nil, err
	}

	results := make([]*engine.Result, 0, len(paths))
	for _, path := range paths {
		res, err := e.ProcessFile(path)
		if err != nil {
			return results, err
		}

		results = append(results, res)
	}

	return results, nil
}

// addDirs watches dir and every directory below it
func addDirs(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if err := w.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
		}

		return nil
	})
}
