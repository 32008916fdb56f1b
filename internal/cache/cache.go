// Package cache persists resolved query sets per document.
//
// Each document owns one directory under the cache root, named by its
// document identifier, holding at most one artifact:
//
//	<root>/<document-id>/<content-hash>.json
//
// The content hash is taken over the serialized resolved query set, so a
// document whose queries resolve to the same result maps to the same file
// and is left untouched. Writing a new hash empties the directory first,
// and a document without queries loses its directory entirely.
//
// A BoltDB index at <root>/index.db records route, hash and query ids per
// document for listing, stats and pruning. The artifact files remain the
// source of truth for hits and misses.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Norgate-AV/mdq/internal/query"
)

const (
	// DefaultCacheDir is the default cache directory
	DefaultCacheDir = ".evidence-queries/extracted"

	// indexFile is the BoltDB file name inside the cache root
	indexFile = "index.db"

	// bucketName is the BoltDB bucket name for document entries
	bucketName = "documents"
)

// ErrNoDocumentID is returned when a document reference has no identifier
var ErrNoDocumentID = errors.New("document identifier is empty")

// Cache manages query artifacts and their index
type Cache struct {
	db   *bbolt.DB
	root string
}

// New creates a new cache instance rooted at dir.
// If dir is empty, uses DefaultCacheDir in current working directory.
func New(dir string) (*Cache, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		dir = filepath.Join(cwd, DefaultCacheDir)
	}

	// MkdirAll tolerates concurrent creation of the same root
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, indexFile), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{
		db:   db,
		root: dir,
	}, nil
}

// Close closes the cache index
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}

	return nil
}

// Root returns the cache root directory
func (c *Cache) Root() string {
	return c.root
}

// Update stores the resolved queries of a document and returns their ids
func (c *Cache) Update(doc DocumentRef, queries []query.Query) (*Result, error) {
	if doc.ID == "" {
		return nil, ErrNoDocumentID
	}

	ids := query.IDs(queries)
	dir := c.documentDir(doc.ID)

	if len(queries) == 0 {
		if err := c.Remove(doc.ID); err != nil {
			return nil, err
		}

		return &Result{IDs: ids, Status: StatusRemoved}, nil
	}

	hash, data, err := HashQueries(queries)
	if err != nil {
		return nil, err
	}

	entry := Entry{
		DocumentID: doc.ID,
		Route:      doc.Route,
		Hash:       hash,
		QueryIDs:   ids,
		ErrorCount: query.CountErrors(queries),
		Timestamp:  time.Now(),
	}

	_, err = os.Stat(c.artifactPath(doc.ID, hash))
	if err == nil {
		// The artifact decides hits; the index is only rebuilt if it lost
		// track of the document
		if err := c.repairEntry(entry); err != nil {
			return nil, err
		}

		return &Result{IDs: ids, Hash: hash, Status: StatusHit}, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to check artifact: %w", err)
	}

	if err := WriteArtifact(dir, hash, data); err != nil {
		return nil, err
	}

	if err := c.putEntry(entry); err != nil {
		return nil, err
	}

	return &Result{IDs: ids, Hash: hash, Status: StatusStored}, nil
}

// repairEntry stores entry unless the index already has a record for the
// same artifact
func (c *Cache) repairEntry(entry Entry) error {
	existing, err := c.Entry(entry.DocumentID)
	if err != nil {
		return err
	}

	if existing != nil && existing.Hash == entry.Hash && existing.Route == entry.Route {
		return nil
	}

	return c.putEntry(entry)
}

// Load returns the cached queries of a document, or nil if none are cached
func (c *Cache) Load(id string) ([]query.Query, error) {
	dir := c.documentDir(id)

	artifacts, err := CollectArtifacts(dir)
	if err != nil || len(artifacts) == 0 {
		return nil, err
	}

	sort.Strings(artifacts)
	name := artifacts[0]

	if entry, err := c.Entry(id); err == nil && entry != nil {
		for _, a := range artifacts {
			if a == entry.Hash+ArtifactExt {
				name = a
				break
			}
		}
	}

	return ReadArtifact(filepath.Join(dir, name))
}

// HasQueries reports whether a document currently has cached queries
func (c *Cache) HasQueries(id string) bool {
	info, err := os.Stat(c.documentDir(id))
	return err == nil && info.IsDir()
}

// Remove drops the directory and index entry of a document
func (c *Cache) Remove(id string) error {
	if id == "" {
		return ErrNoDocumentID
	}

	if err := os.RemoveAll(c.documentDir(id)); err != nil {
		return fmt.Errorf("failed to remove document directory: %w", err)
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("failed to remove cache entry: %w", err)
	}

	return nil
}

// Entry returns the index record of a document
// Returns nil if the document is not indexed
func (c *Cache) Entry(id string) (*Entry, error) {
	var entry *Entry

	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return nil
		}

		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	return entry, nil
}

// Entries returns every index record ordered by route
func (c *Cache) Entries() ([]Entry, error) {
	var entries []Entry

	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}

			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Route < entries[j].Route
	})

	return entries, nil
}

// Prune removes every document whose id is not in keep
// Returns the removed ids
func (c *Cache) Prune(keep map[string]bool) ([]string, error) {
	ids, err := c.documentIDs()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, id := range ids {
		if keep[id] {
			continue
		}

		if err := c.Remove(id); err != nil {
			return removed, err
		}

		removed = append(removed, id)
	}

	return removed, nil
}

// Clear removes all cached documents and index entries
func (c *Cache) Clear() error {
	ids, err := c.documentIDs()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := os.RemoveAll(c.documentDir(id)); err != nil {
			return fmt.Errorf("failed to remove document directory: %w", err)
		}
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to reset cache index: %w", err)
	}

	return nil
}

// Stats returns cache statistics
func (c *Cache) Stats() (Stats, error) {
	var stats Stats

	err := c.db.View(func(tx *bbolt.Tx) error {
		stats.Documents = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("failed to read cache index: %w", err)
	}

	ids, err := c.documentIDs()
	if err != nil {
		return stats, err
	}

	for _, id := range ids {
		size, files, err := dirSize(c.documentDir(id))
		if err != nil {
			return stats, fmt.Errorf("failed to measure %s: %w", id, err)
		}

		stats.Bytes += size
		stats.Artifacts += files
	}

	return stats, nil
}

// documentIDs returns the ids present either as a directory or in the index
func (c *Cache) documentIDs() ([]string, error) {
	seen := make(map[string]bool)

	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			seen[entry.Name()] = true
		}
	}

	err = c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, _ []byte) error {
			seen[string(k)] = true
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cache index: %w", err)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}

	sort.Strings(ids)
	return ids, nil
}

func (c *Cache) putEntry(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(entry.DocumentID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// documentDir returns the directory holding a document's artifact
func (c *Cache) documentDir(id string) string {
	return filepath.Join(c.root, id)
}

// artifactPath returns the artifact path for a document and content hash
func (c *Cache) artifactPath(id, hash string) string {
	return filepath.Join(c.documentDir(id), hash+ArtifactExt)
}
