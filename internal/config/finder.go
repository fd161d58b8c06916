package config

import (
	"os"
	"path/filepath"
)

var configExtensions = []string{"yml", "yaml", "json", "toml"}

// localConfigNames are the project config file names in lookup order:
// .setup-go.yml, .setup-go.yaml, .setup-go.json, .setup-go.toml
func localConfigNames() []string {
	names := make([]string, len(configExtensions))
	for i, ext := range configExtensions {
		names[i] = "." + Name + "." + ext
	}

	return names
}

// FindLocalConfig returns the nearest .setup-go config file at or above dir,
// or "" if there is none. The walk stops at the filesystem root; directories
// that happen to carry a config file name are skipped.
func FindLocalConfig(dir string) string {
	names := localConfigNames()

	for {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}

		dir = parent
	}
}
