package config

import (
	"os"
	"path/filepath"
)

// ConfigExts lists the config file extensions in lookup order
var ConfigExts = []string{"yml", "yaml", "json", "toml"}

// FindLocalConfig finds local config file by walking up directories
func FindLocalConfig(dir string) string {
	for {
		for _, ext := range ConfigExts {
			path := filepath.Join(dir, ".mdq."+ext)

			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}

// FindGlobalConfig returns the first config file in dir, or "" if none
func FindGlobalConfig(dir string) string {
	if dir == "" {
		return ""
	}

	for _, ext := range ConfigExts {
		path := filepath.Join(dir, "config."+ext)

		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
