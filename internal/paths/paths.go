// Package paths resolves where bazaar keeps its configuration, database
// and uploaded images.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories.
const AppName = "bazaar"

// DefaultDataDirName is the data directory created in the working
// directory when nothing else selects one.
const DefaultDataDirName = ".bazaar-db"

// File and directory names inside the data directory.
const (
	DBFileName    = "market.db"
	UploadDirName = "uploads"
)

// Environment overrides.
const (
	EnvConfigDir = "BAZAAR_CONFIG_DIR"
	EnvDataDir   = "BAZAAR_DATA_DIR"
)

// platformDir is swapped out in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the per-user configuration directory:
// $XDG_CONFIG_HOME/bazaar or ~/.config/bazaar on Linux, and
// os.UserConfigDir()/bazaar elsewhere.
func DefaultConfigDir() (string, error) {
	return userDir("XDG_CONFIG_HOME", ".config")
}

func userDir(xdgEnv string, homeRel ...string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, homeRel...), AppName)...), nil
}

// ResolveConfigDir picks the configuration directory: flag, then
// BAZAAR_CONFIG_DIR, then DefaultConfigDir. The result is absolute.
func ResolveConfigDir(flag string) (string, error) {
	if dir := firstNonEmpty(flag, os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Abs(dir)
	}
	return DefaultConfigDir()
}

// ResolveDataDir picks the data directory: flag, then data_dir from
// config.yaml, then BAZAAR_DATA_DIR, then .bazaar-db in the working
// directory. The result is absolute.
func ResolveDataDir(flag, configValue string) (string, error) {
	if dir := firstNonEmpty(flag, configValue, os.Getenv(EnvDataDir)); dir != "" {
		return filepath.Abs(dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// DBPath returns the database file inside dataDir.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFileName)
}

// UploadDir returns the image directory inside dataDir.
func UploadDir(dataDir string) string {
	return filepath.Join(dataDir, UploadDirName)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
