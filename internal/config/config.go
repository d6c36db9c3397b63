// ABOUTME: Configuration loading from struct defaults, a JSON file, and FEEDSYNC_* environment variables
// ABOUTME: Saving writes the JSON file through a temp file and rename

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/harper/feedsync/internal/fsutil"
)

// Config stores feedsync configuration.
type Config struct {
	// DataDir is the root directory holding one folder per account.
	// Supports ~ expansion. Defaults to ~/.local/share/feedsync.
	DataDir string `json:"data_dir" env:"DATA_DIR"`

	// RefreshConcurrency limits simultaneous feed fetches per account.
	RefreshConcurrency int `json:"refresh_concurrency" env:"REFRESH_CONCURRENCY" default:"8"`

	HTTPTimeout time.Duration `json:"http_timeout" env:"HTTP_TIMEOUT" default:"30s"`

	// Offline stops every network operation from starting.
	Offline bool `json:"offline" env:"OFFLINE"`

	// CharmHost is the charm server backing the cloud account. Empty keeps
	// CHARM_HOST or the public server.
	CharmHost string `json:"charm_host" env:"CHARM_HOST"`
}

// fileConfig is the on-disk form; durations are written as strings.
type fileConfig struct {
	DataDir            string `json:"data_dir,omitempty"`
	RefreshConcurrency int    `json:"refresh_concurrency"`
	HTTPTimeout        string `json:"http_timeout"`
	Offline            bool   `json:"offline"`
	CharmHost          string `json:"charm_host,omitempty"`
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return defaultDataDir()
	}
	return ExpandPath(c.DataDir)
}

// CredentialsPath is where the credential store lives.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.GetDataDir(), CredentialsFile)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "feedsync", "config.json")
}

// Load reads config from path, or from GetConfigPath when path is empty.
// Environment variables override the file. A missing file yields the
// defaults and is written out for the next run.
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetConfigPath()
	}
	_, statErr := os.Stat(path)

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:          true,
		EnvPrefix:          EnvPrefix,
		AllowUnknownEnvs:   true,
		AllowUnknownFields: true,
		Files:              []string{path},
	})
	if err := loader.Load(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if cfg.RefreshConcurrency <= 0 {
		cfg.RefreshConcurrency = DefaultRefreshConcurrency
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}

	if os.IsNotExist(statErr) {
		if err := cfg.SaveTo(path); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save default config: %v\n", err)
		}
	}
	return &cfg, nil
}

// Save writes config to GetConfigPath.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo writes config to path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(fileConfig{
		DataDir:            c.DataDir,
		RefreshConcurrency: c.RefreshConcurrency,
		HTTPTimeout:        c.HTTPTimeout.String(),
		Offline:            c.Offline,
		CharmHost:          c.CharmHost,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPerms); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return fsutil.AtomicWrite(path, data)
}

// defaultDataDir returns the standard XDG data directory for feedsync.
func defaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "feedsync")
}
