// Package document loads source documents and derives their identifiers.
//
// A document is identified by its route: the path of the file relative to
// the pages directory, slash separated, with a leading slash and without the
// .md extension. The identifier is the MD5 hex digest of the route, so it is
// stable across runs, independent of content, and safe to use as a
// directory name.
package document

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extension is the file extension of documents
const Extension = ".md"

// Document is one source text unit
type Document struct {
	// Path is the filesystem path of the document
	Path string

	// Route is the logical path, e.g. /sales/index
	Route string

	// ID is the stable identifier derived from Route
	ID string

	// Text is the raw document content
	Text []byte
}

// New creates a document from a route and its content
func New(route string, text []byte) *Document {
	return &Document{
		Route: route,
		ID:    RouteHash(route),
		Text:  text,
	}
}

// Load reads the document at path, which must be inside pagesDir
func Load(pagesDir, path string) (*Document, error) {
	route, err := RouteFor(pagesDir, path)
	if err != nil {
		return nil, err
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	doc := New(route, text)
	doc.Path = path

	return doc, nil
}

// RouteFor returns the route of path relative to pagesDir
func RouteFor(pagesDir, path string) (string, error) {
	absDir, err := filepath.Abs(pagesDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve pages directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve document path: %w", err)
	}

	rel, err := filepath.Rel(absDir, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("document %s is not inside %s", path, pagesDir)
	}

	route := "/" + filepath.ToSlash(rel)
	return strings.TrimSuffix(route, Extension), nil
}

// RouteHash returns the identifier for a route
func RouteHash(route string) string {
	sum := md5.Sum([]byte(route))
	return hex.EncodeToString(sum[:])
}

// IsDocument reports whether path names a document file
func IsDocument(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}
