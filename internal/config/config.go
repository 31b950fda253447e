// Package config loads symdex settings from defaults, an optional config file
// and SYMDEX_* environment variables through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: SYMDEX_WORKERS,
// SYMDEX_STORE_BACKEND, ...
const EnvPrefix = "SYMDEX"

// Store backends.
const (
	BackendMemory = "memory"
	BackendBbolt  = "bbolt"
	BackendSQLite = "sqlite"
)

// Config holds the complete configuration.
type Config struct {
	Workers      int                `mapstructure:"workers"`
	FileTimeout  time.Duration      `mapstructure:"file_timeout"`
	Documents    DocumentsConfig    `mapstructure:"documents"`
	Store        StoreConfig        `mapstructure:"store"`
	Capabilities CapabilitiesConfig `mapstructure:"capabilities"`
	Grammars     GrammarsConfig     `mapstructure:"grammars"`
	Scan         ScanConfig         `mapstructure:"scan"`
	Watch        WatchConfig        `mapstructure:"watch"`
	Log          LogConfig          `mapstructure:"log"`
}

// DocumentsConfig bounds the syntax tree cache. Zero means unbounded.
type DocumentsConfig struct {
	MaxDocuments int   `mapstructure:"max_documents"`
	MaxBytes     int64 `mapstructure:"max_bytes"`
}

// StoreConfig selects the symbol persistence backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	// Path is relative to the workspace root unless absolute.
	Path string `mapstructure:"path"`
}

// CapabilitiesConfig points at an external capability table. Empty uses the
// embedded one.
type CapabilitiesConfig struct {
	Path string `mapstructure:"path"`
}

// GrammarsConfig lists directories searched for runtime grammar libraries.
// Empty uses the defaults (.symdex/grammars under the workspace, then the
// user's home).
type GrammarsConfig struct {
	Paths []string `mapstructure:"paths"`
}

// ScanConfig drives workspace discovery.
type ScanConfig struct {
	Include          []string `mapstructure:"include"`
	Exclude          []string `mapstructure:"exclude"`
	MaxFileBytes     int64    `mapstructure:"max_file_bytes"`
	RespectGitignore bool     `mapstructure:"respect_gitignore"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workers", 0)
	v.SetDefault("file_timeout", "10s")

	v.SetDefault("documents.max_documents", 1024)
	v.SetDefault("documents.max_bytes", 256<<20)

	v.SetDefault("store.backend", BackendBbolt)
	v.SetDefault("store.path", filepath.Join(".symdex", "symbols.db"))

	v.SetDefault("capabilities.path", "")
	v.SetDefault("grammars.paths", []string{})

	v.SetDefault("scan.include", []string{})
	v.SetDefault("scan.exclude", []string{})
	v.SetDefault("scan.max_file_bytes", 1<<20)
	v.SetDefault("scan.respect_gitignore", true)

	v.SetDefault("watch.debounce", "200ms")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// NewViper returns a viper instance with defaults and environment binding.
// When file is empty, symdex.yaml in the working directory or
// .symdex/config.yaml under root is read if present.
func NewViper(file, root string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file == "" {
		file = findConfig(root)
	}
	if file == "" {
		return v, nil
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func findConfig(root string) string {
	candidates := []string{"symdex.yaml"}
	if root != "" {
		candidates = append(candidates, filepath.Join(root, ".symdex", "config.yaml"))
	}
	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return c
		}
	}
	return ""
}

// New decodes and validates the configuration held by v.
func New(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	if c.FileTimeout < 0 {
		return errors.New("file_timeout must not be negative")
	}
	if c.Documents.MaxDocuments < 0 || c.Documents.MaxBytes < 0 {
		return errors.New("documents limits must not be negative")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendBbolt, BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("store.backend must be one of %s, %s, %s", BackendMemory, BackendBbolt, BackendSQLite)
	}
	if c.Scan.MaxFileBytes < 0 {
		return errors.New("scan.max_file_bytes must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", c.Log.Format)
	}
	return nil
}

// StorePath resolves the store path against root.
func (c *Config) StorePath(root string) string {
	if filepath.IsAbs(c.Store.Path) || root == "" {
		return c.Store.Path
	}
	return filepath.Join(root, c.Store.Path)
}
