// Package paths resolves the configuration and data directory locations.
package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// AppName names the per-user application directories.
const AppName = "teashelf"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "TEASHELF_CONFIG_DIR"
	EnvDataDir   = "TEASHELF_DATA_DIR"
)

// KVDirName is the key-value area inside the data directory. It holds the
// legacy collection key and the preferences key.
const KVDirName = "kv"

// DefaultConfigDir returns the platform configuration directory for the app.
//
// Linux:   $XDG_CONFIG_HOME/teashelf (fallback ~/.config/teashelf)
// macOS:   ~/Library/Application Support/teashelf
// Windows: %LOCALAPPDATA%/teashelf
func DefaultConfigDir() (string, error) {
	xdg.Reload()
	base := xdg.ConfigHome
	if base == "" {
		home, err := homeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

// DefaultDataDir returns the platform data directory for the app.
//
// Linux:   $XDG_DATA_HOME/teashelf (fallback ~/.local/share/teashelf)
// macOS:   ~/Library/Application Support/teashelf
// Windows: %LOCALAPPDATA%/teashelf
func DefaultDataDir() (string, error) {
	xdg.Reload()
	base := xdg.DataHome
	if base == "" {
		home, err := homeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, AppName), nil
}

func homeDir() (string, error) {
	if xdg.Home != "" {
		return xdg.Home, nil
	}
	return os.UserHomeDir()
}

// ResolveConfigDir picks the configuration directory: the flag, then
// TEASHELF_CONFIG_DIR, then DefaultConfigDir. Overrides are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	return resolve(DefaultConfigDir, flag, os.Getenv(EnvConfigDir))
}

// ResolveDataDir picks the data directory: the flag, then the data_dir value
// from config.yaml, then TEASHELF_DATA_DIR, then DefaultDataDir. Overrides are
// made absolute.
func ResolveDataDir(flag, fromConfig string) (string, error) {
	return resolve(DefaultDataDir, flag, fromConfig, os.Getenv(EnvDataDir))
}

// resolve returns the first non-empty override, or fallback's directory.
func resolve(fallback func() (string, error), overrides ...string) (string, error) {
	for _, dir := range overrides {
		if dir != "" {
			return filepath.Abs(dir)
		}
	}
	return fallback()
}

// KVDir returns the key-value area inside dataDir.
func KVDir(dataDir string) string {
	return filepath.Join(dataDir, KVDirName)
}
