// Package config loads bazaar settings from config.yaml, the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/bazaar/internal/paths"
	"github.com/mesh-intelligence/bazaar/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
)

// Config keys.
const (
	KeyDataDir        = "data_dir"
	KeyPort           = "port"
	KeyDBPath         = "db_path"
	KeyUploadDir      = "upload_dir"
	KeyWebDir         = "web_dir"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
	KeyAllowedOrigins = "allowed_origins"
	KeyMaxUploadMB    = "max_upload_mb"
	KeyTags           = "tags"
)

// Defaults.
const (
	DefaultPort        = 3001
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultMaxUploadMB = 5
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// ErrInvalid reports a setting outside its allowed range.
var ErrInvalid = errors.New("invalid setting")

// File is the on-disk shape of config.yaml written on first run.
type File struct {
	DataDir        string   `yaml:"data_dir,omitempty"`
	Port           int      `yaml:"port"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
}

// DefaultFile returns the config.yaml contents written on first run.
func DefaultFile() File {
	return File{
		Port:           DefaultPort,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		AllowedOrigins: []string{"*"},
		MaxUploadMB:    DefaultMaxUploadMB,
	}
}

// Settings are the resolved runtime settings.
type Settings struct {
	ConfigDir      string
	DataDir        string
	Port           int
	DBPath         string
	UploadDir      string
	WebDir         string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	MaxUploadMB    int
	Tags           []string
}

// StoreConfig returns the market store configuration.
func (s *Settings) StoreConfig() types.Config {
	return types.Config{DBPath: s.DBPath, Tags: s.Tags}
}

// MaxUploadBytes returns the image size limit in bytes.
func (s *Settings) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// Addr returns the listen address for Port.
func (s *Settings) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// Validate checks ranges and enumerations.
func (s *Settings) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%w: %s %d out of range", ErrInvalid, KeyPort, s.Port)
	}
	if !slices.Contains(validLogLevels, s.LogLevel) {
		return fmt.Errorf("%w: %s %q (want one of %v)", ErrInvalid, KeyLogLevel, s.LogLevel, validLogLevels)
	}
	if !slices.Contains(validLogFormats, s.LogFormat) {
		return fmt.Errorf("%w: %s %q (want one of %v)", ErrInvalid, KeyLogFormat, s.LogFormat, validLogFormats)
	}
	if s.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, KeyMaxUploadMB)
	}
	return s.StoreConfig().Validate()
}

// Load reads settings from configDir/config.yaml, creating the directory
// and a default file if missing. A .env file in the working directory is
// loaded first; it never overrides variables already set. Environment
// variables BAZAAR_PORT (or PORT) and BAZAAR_DB_PATH override the file.
// dataDirFlag takes precedence over data_dir in the file.
func Load(configDir, dataDirFlag string) (*Settings, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if _, err := EnsureFile(configDir, DefaultFile()); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyAllowedOrigins, []string{"*"})
	v.SetDefault(KeyMaxUploadMB, DefaultMaxUploadMB)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.BindEnv(KeyPort, "BAZAAR_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("bind %s: %w", KeyPort, err)
	}
	if err := v.BindEnv(KeyDBPath, "BAZAAR_DB_PATH"); err != nil {
		return nil, fmt.Errorf("bind %s: %w", KeyDBPath, err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	dataDir, err := paths.ResolveDataDir(dataDirFlag, v.GetString(KeyDataDir))
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	s := &Settings{
		ConfigDir:      configDir,
		DataDir:        dataDir,
		Port:           v.GetInt(KeyPort),
		DBPath:         v.GetString(KeyDBPath),
		UploadDir:      v.GetString(KeyUploadDir),
		WebDir:         v.GetString(KeyWebDir),
		LogLevel:       v.GetString(KeyLogLevel),
		LogFormat:      v.GetString(KeyLogFormat),
		AllowedOrigins: v.GetStringSlice(KeyAllowedOrigins),
		MaxUploadMB:    v.GetInt(KeyMaxUploadMB),
	}
	if tags := v.GetStringSlice(KeyTags); len(tags) > 0 {
		s.Tags = tags
	}
	if s.DBPath == "" {
		s.DBPath = paths.DBPath(dataDir)
	}
	if s.UploadDir == "" {
		s.UploadDir = paths.UploadDir(dataDir)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureFile writes f to configDir/config.yaml unless the file exists.
// It reports whether the file was created.
func EnsureFile(configDir string, f File) (bool, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}

	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}

// loadDotEnv applies path to the environment if it exists.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}
