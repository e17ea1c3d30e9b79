package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "BOOKMARKSYNC_CONFIG"
	// ConfigFileName is the file looked for in every search directory
	ConfigFileName = "bookmarksync.yaml"
	// ConfigDirName is the directory under the user and system config roots
	ConfigDirName = "bookmarksync"
)

// SearchPaths lists the candidate config files, highest priority first:
// $BOOKMARKSYNC_CONFIG, ./bookmarksync.yaml, the user config directory
// (XDG_CONFIG_HOME or ~/.config on Linux) and /etc/bookmarksync.
func SearchPaths(getenv func(string) string) []string {
	var paths []string
	if explicit := getenv(EnvConfigPath); explicit != "" {
		paths = append(paths, explicit)
	}
	if abs, err := filepath.Abs(ConfigFileName); err == nil {
		paths = append(paths, abs)
	} else {
		paths = append(paths, ConfigFileName)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ConfigDirName, ConfigFileName))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, ConfigFileName))
}

// FindConfigPath returns the first existing candidate of SearchPaths, or ""
func FindConfigPath() string {
	for _, path := range SearchPaths(os.Getenv) {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// ensureConfigDir creates the directory holding configPath
func ensureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0o755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
