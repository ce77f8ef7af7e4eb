// Package config resolves kaiwa's on-disk layout and settings.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "kaiwa"

// ConfigDir returns the directory holding config.toml and user persona files,
// following the XDG base directory spec ($XDG_CONFIG_HOME/kaiwa).
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// PersonasDir returns the directory where user-defined persona profiles live.
func PersonasDir() string {
	return filepath.Join(ConfigDir(), "personas")
}

// DataDir returns the directory for mutable state such as the usage database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// DatabasePath returns the default path of the usage database.
func DatabasePath() string {
	return filepath.Join(DataDir(), "usage.db")
}

// EnsureDirs creates the config, persona, and data directories if missing.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), PersonasDir(), DataDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
