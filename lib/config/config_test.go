// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.BatchSize != 10 {
		t.Errorf("expected batch_size=10, got %d", cfg.BatchSize)
	}
	if cfg.Thumbnail.Width != 320 || cfg.Thumbnail.Height != 240 {
		t.Errorf("expected thumbnail 320x240, got %dx%d", cfg.Thumbnail.Width, cfg.Thumbnail.Height)
	}
	if cfg.SyncTimeout != "30s" {
		t.Errorf("expected sync_timeout=30s, got %s", cfg.SyncTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/xdg/cache")
	path := writeConfig(t, "config.yaml", `
homeserver: https://matrix.example.org
username: alice
batch_size: 25
thumbnail:
  width: 640
  compression: lz4
theme: light
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Homeserver != "https://matrix.example.org" {
		t.Errorf("expected homeserver=https://matrix.example.org, got %s", cfg.Homeserver)
	}
	if cfg.Username != "alice" {
		t.Errorf("expected username=alice, got %s", cfg.Username)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("expected batch_size=25, got %d", cfg.BatchSize)
	}
	if cfg.Thumbnail.Width != 640 {
		t.Errorf("expected thumbnail.width=640, got %d", cfg.Thumbnail.Width)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Thumbnail.Height != 240 {
		t.Errorf("expected thumbnail.height=240, got %d", cfg.Thumbnail.Height)
	}
	if cfg.Thumbnail.Compression != "lz4" {
		t.Errorf("expected compression=lz4, got %s", cfg.Thumbnail.Compression)
	}
	if cfg.CacheDir != "/xdg/cache/katrix" {
		t.Errorf("expected cache_dir=/xdg/cache/katrix, got %s", cfg.CacheDir)
	}
	if cfg.Theme != "light" {
		t.Errorf("expected theme=light, got %s", cfg.Theme)
	}
}

func TestLoadFileJSONC(t *testing.T) {
	path := writeConfig(t, "config.jsonc", `{
  // Personal homeserver.
  "homeserver": "https://chat.example.com",
  "batch_size": 15,
  "thumbnail": {"width": 100, "height": 80,},
  /* trailing comma above is fine */
  "sync_timeout": "1m",
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Homeserver != "https://chat.example.com" {
		t.Errorf("expected homeserver=https://chat.example.com, got %s", cfg.Homeserver)
	}
	if cfg.BatchSize != 15 {
		t.Errorf("expected batch_size=15, got %d", cfg.BatchSize)
	}
	if cfg.Thumbnail.Width != 100 || cfg.Thumbnail.Height != 80 {
		t.Errorf("expected thumbnail 100x80, got %dx%d", cfg.Thumbnail.Width, cfg.Thumbnail.Height)
	}
	timeout, err := cfg.SyncTimeoutDuration()
	if err != nil || timeout != time.Minute {
		t.Errorf("expected sync timeout 1m, got %v (%v)", timeout, err)
	}
}

func TestLoadFileRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.yaml", "batchsize: 5\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFileEmpty(t *testing.T) {
	path := writeConfig(t, "config.yaml", "")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.BatchSize != 10 {
		t.Errorf("expected default batch_size=10, got %d", cfg.BatchSize)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv(EnvConfig, "")

	if got := Resolve(""); got != "" {
		t.Errorf("expected no config without any source, got %s", got)
	}

	xdgPath := filepath.Join(configHome, "katrix", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(xdgPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(xdgPath, []byte("batch_size: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != xdgPath {
		t.Errorf("expected XDG config %s, got %s", xdgPath, got)
	}

	t.Setenv(EnvConfig, "/from/env.yaml")
	if got := Resolve(""); got != "/from/env.yaml" {
		t.Errorf("expected $KATRIX_CONFIG to win over XDG, got %s", got)
	}

	if got := Resolve("/from/flag.yaml"); got != "/from/flag.yaml" {
		t.Errorf("expected explicit path to win, got %s", got)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(EnvConfig, "")
	t.Setenv("HOME", "/home/alice")
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CacheDir != "/home/alice/.cache/katrix" {
		t.Errorf("expected cache_dir=/home/alice/.cache/katrix, got %s", cfg.CacheDir)
	}
	if cfg.StateDir != "/home/alice/.local/state/katrix" {
		t.Errorf("expected state_dir=/home/alice/.local/state/katrix, got %s", cfg.StateDir)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("KATRIX_TEST_SET", "/set")
	t.Setenv("KATRIX_TEST_EMPTY", "")

	tests := []struct {
		input string
		want  string
	}{
		{"${KATRIX_TEST_SET}/x", "/set/x"},
		{"${KATRIX_TEST_EMPTY:-/fallback}/x", "/fallback/x"},
		{"${KATRIX_TEST_EMPTY:-${KATRIX_TEST_SET}/nested}", "/set/nested"},
		{"${KATRIX_TEST_SET:-/unused}", "/set"},
		{"/plain/path", "/plain/path"},
	}
	for _, test := range tests {
		if got := expandVars(test.input); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid homeserver", func(c *Config) { c.Homeserver = "https://matrix.org" }, ""},
		{"homeserver without scheme", func(c *Config) { c.Homeserver = "matrix.org" }, "homeserver"},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"negative thumbnail", func(c *Config) { c.Thumbnail.Width = -1 }, "thumbnail.width"},
		{"unknown compression", func(c *Config) { c.Thumbnail.Compression = "brotli" }, "thumbnail.compression"},
		{"bad sync timeout", func(c *Config) { c.SyncTimeout = "soon" }, "sync_timeout"},
		{"zero sync timeout", func(c *Config) { c.SyncTimeout = "0s" }, "sync_timeout"},
		{"unknown theme", func(c *Config) { c.Theme = "solarized" }, "theme"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.modify(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", test.wantErr, err)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.CacheDir = filepath.Join(root, "cache", "katrix")
	cfg.StateDir = filepath.Join(root, "state", "katrix")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}
	for _, path := range []string{cfg.CacheDir, cfg.StateDir} {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", path)
		}
	}
}
