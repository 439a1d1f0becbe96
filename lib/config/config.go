// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable consulted by [Resolve]
// when no explicit path is given.
const EnvConfig = "KATRIX_CONFIG"

// Config is the katrix client configuration.
type Config struct {
	// Homeserver is the base URL of the Matrix homeserver offered by
	// the login dialog, e.g. https://matrix.org.
	Homeserver string `yaml:"homeserver"`

	// Username is the default login name. Either a localpart or a
	// full user ID.
	Username string `yaml:"username"`

	// BatchSize is the number of events loaded when a room is opened
	// and per "load older" step.
	// Default: 10
	BatchSize int `yaml:"batch_size"`

	// CacheDir holds the thumbnail cache database.
	// Default: ${XDG_CACHE_HOME:-${HOME}/.cache}/katrix
	CacheDir string `yaml:"cache_dir"`

	// StateDir holds log files.
	// Default: ${XDG_STATE_HOME:-${HOME}/.local/state}/katrix
	StateDir string `yaml:"state_dir"`

	// Thumbnail configures image previews.
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`

	// SyncTimeout is the long-poll timeout for /sync, as a Go duration.
	// Default: 30s
	SyncTimeout string `yaml:"sync_timeout"`

	// Theme selects the color scheme: "dark" or "light".
	// Default: dark
	Theme string `yaml:"theme"`
}

// ThumbnailConfig configures thumbnail requests and their cache.
type ThumbnailConfig struct {
	// Width and Height bound the requested thumbnail size.
	// Default: 320x240
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Compression is the codec for cached blobs: "zstd", "lz4" or
	// "none". Already-compressed image formats are always stored raw.
	// Default: zstd
	Compression string `yaml:"compression"`

	// MemoryEntries bounds the in-memory thumbnail tier.
	// Default: 256
	MemoryEntries int `yaml:"memory_entries"`

	// DiskEntries bounds the on-disk thumbnail tier.
	// Default: 4096
	DiskEntries int `yaml:"disk_entries"`
}

// Default returns the configuration used when no file is found, and
// the base that a loaded file is merged onto.
func Default() *Config {
	return &Config{
		BatchSize:   10,
		CacheDir:    "${XDG_CACHE_HOME:-${HOME}/.cache}/katrix",
		StateDir:    "${XDG_STATE_HOME:-${HOME}/.local/state}/katrix",
		SyncTimeout: "30s",
		Theme:       "dark",
		Thumbnail: ThumbnailConfig{
			Width:         320,
			Height:        240,
			Compression:   "zstd",
			MemoryEntries: 256,
			DiskEntries:   4096,
		},
	}
}

// Resolve returns the configuration file to load: explicitPath if
// non-empty, else $KATRIX_CONFIG, else the XDG location if a file
// exists there. It returns "" when there is nothing to load.
func Resolve(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if path := os.Getenv(EnvConfig); path != "" {
		return path
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	candidate := filepath.Join(configHome, "katrix", "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// Load resolves the configuration file (see [Resolve]) and loads it,
// or returns expanded defaults when there is none.
func Load(explicitPath string) (*Config, error) {
	path := Resolve(explicitPath)
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merged onto
// [Default].
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("config: loading %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// loadFile decodes a single file into c. Fields absent from the file
// keep their current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// directory fields.
func (c *Config) expandVariables() {
	c.CacheDir = expandVars(c.CacheDir)
	c.StateDir = expandVars(c.StateDir)
}

// varPattern matches ${VAR} and ${VAR:-default}. Defaults may nest one
// level, as in ${XDG_CACHE_HOME:-${HOME}/.cache}.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^{}]|\$\{[^{}]*\})*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return expandVars(parts[2])
		}
		return ""
	})
}

// SyncTimeoutDuration returns SyncTimeout parsed as a duration.
func (c *Config) SyncTimeoutDuration() (time.Duration, error) {
	duration, err := time.ParseDuration(c.SyncTimeout)
	if err != nil {
		return 0, fmt.Errorf("sync_timeout: %w", err)
	}
	return duration, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Homeserver != "" {
		parsed, err := url.Parse(c.Homeserver)
		if err != nil {
			errs = append(errs, fmt.Errorf("homeserver: %w", err))
		} else if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("homeserver must be an http or https URL, got %q", c.Homeserver))
		}
	}

	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}

	if c.Thumbnail.Width <= 0 || c.Thumbnail.Height <= 0 {
		errs = append(errs, fmt.Errorf("thumbnail.width and thumbnail.height must be positive, got %dx%d",
			c.Thumbnail.Width, c.Thumbnail.Height))
	}

	compressions := []string{"zstd", "lz4", "none"}
	if c.Thumbnail.Compression != "" && !slices.Contains(compressions, c.Thumbnail.Compression) {
		errs = append(errs, fmt.Errorf("thumbnail.compression must be one of: %v", compressions))
	}

	if c.Thumbnail.MemoryEntries < 0 || c.Thumbnail.DiskEntries < 0 {
		errs = append(errs, fmt.Errorf("thumbnail entry limits must not be negative"))
	}

	if duration, err := c.SyncTimeoutDuration(); err != nil {
		errs = append(errs, err)
	} else if duration <= 0 {
		errs = append(errs, fmt.Errorf("sync_timeout must be positive, got %s", c.SyncTimeout))
	}

	themes := []string{"dark", "light"}
	if !slices.Contains(themes, c.Theme) {
		errs = append(errs, fmt.Errorf("theme must be one of: %v", themes))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.CacheDir, c.StateDir} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
