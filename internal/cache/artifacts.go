package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/mdq/internal/query"
)

// ArtifactExt is the extension of artifact files
const ArtifactExt = ".json"

// WriteArtifact writes data as the only artifact in dir.
// Existing artifacts in dir are removed first.
func WriteArtifact(dir, hash string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}

	if err := emptyDir(dir); err != nil {
		return fmt.Errorf("failed to clear document directory: %w", err)
	}

	path := filepath.Join(dir, hash+ArtifactExt)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	return nil
}

// ReadArtifact decodes the artifact at path
func ReadArtifact(path string) ([]query.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var queries []query.Query
	if err := json.Unmarshal(data, &queries); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}

	return queries, nil
}

// CollectArtifacts returns the artifact file names in dir
func CollectArtifacts(dir string) ([]string, error) {
	var artifacts []string

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Nothing cached yet
		}
		return nil, fmt.Errorf("failed to read document directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasSuffix(name, ArtifactExt) {
			artifacts = append(artifacts, name)
		}
	}

	return artifacts, nil
}

// emptyDir removes everything inside dir, keeping dir itself
func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

// dirSize returns the total size of regular files under dir
func dirSize(dir string) (int64, int, error) {
	var size int64
	var files int

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		if !info.IsDir() {
			size += info.Size()
			files++
		}

		return nil
	})

	return size, files, err
}
