// Package engine runs the per-document pipeline: extract the named queries
// of a markdown document, resolve references between them, and store the
// result in the cache.
//
// Each document is processed synchronously. ProcessDir may process several
// documents at once; documents never share a cache directory, so the only
// shared state is the query id map kept for downstream consumers.
package engine

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Norgate-AV/mdq/internal/cache"
	"github.com/Norgate-AV/mdq/internal/compiler"
	"github.com/Norgate-AV/mdq/internal/config"
	"github.com/Norgate-AV/mdq/internal/document"
	"github.com/Norgate-AV/mdq/internal/extract"
	"github.com/Norgate-AV/mdq/internal/languages"
	"github.com/Norgate-AV/mdq/internal/logger"
	"github.com/Norgate-AV/mdq/internal/query"
)

// Engine processes documents
type Engine struct {
	cfg        *config.Config
	classifier *extract.Classifier
	resolver   *compiler.Resolver
	cache      *cache.Cache
	log        *zap.Logger

	mu   sync.RWMutex
	docs map[string]record
}

// record is what the engine remembers about a processed document
type record struct {
	route string
	ids   []string
}

// Result is the outcome of processing one document
type Result struct {
	Document *document.Document

	// Queries are the resolved queries in document order
	Queries []query.Query

	// IDs are the query ids, in document order
	IDs []string

	// Cache is the cache outcome, nil when caching is disabled
	Cache *cache.Result

	Report compiler.Report
}

// Errors returns the number of queries that failed to compile
func (r *Result) Errors() int {
	return r.Report.Errors
}

// New creates an engine. A nil cache, or cfg.NoCache, disables caching.
func New(cfg *config.Config, c *cache.Cache, log *zap.Logger) *Engine {
	langs := languages.Default()
	langs.Add(cfg.Languages...)

	if cfg.NoCache {
		c = nil
	}

	return &Engine{
		cfg:        cfg,
		classifier: extract.NewClassifier(langs),
		resolver: &compiler.Resolver{
			MaxIterations: cfg.MaxIterations,
			MaxBodyLength: cfg.MaxBodyLength,
		},
		cache: c,
		log:   logger.OrNop(log),
		docs:  make(map[string]record),
	}
}

// Process extracts, resolves and caches the queries of doc
func (e *Engine) Process(doc *document.Document) (*Result, error) {
	queries := e.classifier.Classify(doc.Text)
	report := e.resolver.Resolve(queries)

	res := &Result{
		Document: doc,
		Queries:  queries,
		IDs:      query.IDs(queries),
		Report:   report,
	}

	if e.cache != nil {
		cached, err := e.cache.Update(cache.DocumentRef{ID: doc.ID, Route: doc.Route}, queries)
		if err != nil {
			return nil, fmt.Errorf("failed to update cache for %s: %w", doc.Route, err)
		}

		res.Cache = cached
		res.IDs = cached.IDs
	}

	e.mu.Lock()
	e.docs[doc.ID] = record{route: doc.Route, ids: res.IDs}
	e.mu.Unlock()

	e.logResult(res)
	return res, nil
}

// ProcessFile loads and processes the document at path
func (e *Engine) ProcessFile(path string) (*Result, error) {
	doc, err := document.Load(e.cfg.PagesDir, path)
	if err != nil {
		return nil, err
	}

	return e.Process(doc)
}

// ProcessDir processes every document under the pages directory and, if
// configured, prunes cache entries of documents that no longer exist.
// Results are ordered by route.
func (e *Engine) ProcessDir(ctx context.Context) ([]*Result, error) {
	paths, err := FindDocuments(e.cfg.PagesDir)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := e.ProcessFile(path)
			if err != nil {
				return err
			}

			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Wait cancels gctx, so only the caller's context tells us whether
	// the loop was cut short
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.cache != nil && e.cfg.Prune {
		keep := make(map[string]bool, len(results))
		for _, res := range results {
			keep[res.Document.ID] = true
		}

		removed, err := e.cache.Prune(keep)
		if err != nil {
			return nil, fmt.Errorf("failed to prune cache: %w", err)
		}

		for _, id := range removed {
			e.forget(id)
			e.log.Debug("Pruned stale cache entry", zap.String("document", id))
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Document.Route < results[j].Document.Route
	})

	return results, nil
}

// RemoveFile drops the cached queries of a deleted document
func (e *Engine) RemoveFile(path string) error {
	route, err := document.RouteFor(e.cfg.PagesDir, path)
	if err != nil {
		return err
	}

	id := document.RouteHash(route)
	e.forget(id)

	if e.cache == nil {
		return nil
	}

	if err := e.cache.Remove(id); err != nil {
		return err
	}

	e.log.Debug("Removed document", zap.String("route", route))
	return nil
}

// RemoveDir drops every document below a deleted or renamed directory
func (e *Engine) RemoveDir(path string) error {
	route, err := document.RouteFor(e.cfg.PagesDir, path)
	if err != nil {
		return err
	}

	prefix := strings.TrimSuffix(route, "/") + "/"
	ids := make(map[string]string)

	e.mu.RLock()
	for id, rec := range e.docs {
		if strings.HasPrefix(rec.route, prefix) {
			ids[id] = rec.route
		}
	}
	e.mu.RUnlock()

	if e.cache != nil {
		entries, err := e.cache.Entries()
		if err != nil {
			return err
		}

		for _, entry := range entries {
			if strings.HasPrefix(entry.Route, prefix) {
				ids[entry.DocumentID] = entry.Route
			}
		}
	}

	for id, route := range ids {
		e.forget(id)

		if e.cache != nil {
			if err := e.cache.Remove(id); err != nil {
				return err
			}
		}

		e.log.Debug("Removed document", zap.String("route", route))
	}

	return nil
}

// QueryIDs returns the query ids last produced for a document
func (e *Engine) QueryIDs(id string) ([]string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rec, ok := e.docs[id]
	return rec.ids, ok
}

// HasQueries reports whether a document defines any queries
func (e *Engine) HasQueries(id string) bool {
	if e.cache != nil {
		return e.cache.HasQueries(id)
	}

	ids, _ := e.QueryIDs(id)
	return len(ids) > 0
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	delete(e.docs, id)
	e.mu.Unlock()
}

func (e *Engine) logResult(res *Result) {
	fields := []zap.Field{
		zap.String("route", res.Document.Route),
		zap.Int("queries", len(res.Queries)),
		zap.Int("passes", res.Report.Passes),
	}
	if res.Cache != nil {
		fields = append(fields, zap.Stringer("cache", res.Cache.Status))
	}

	e.log.Debug("Processed document", fields...)

	for _, q := range res.Queries {
		if q.Failed() {
			e.log.Warn("Query failed to compile",
				zap.String("route", res.Document.Route),
				zap.String("query", q.ID),
				zap.Stringer("kind", q.Kind()),
				zap.String("error", q.CompileError))
		}
	}
}

// FindDocuments returns every document under dir, sorted
func FindDocuments(dir string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && document.IsDocument(path) {
			paths = append(paths, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan pages directory: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}
