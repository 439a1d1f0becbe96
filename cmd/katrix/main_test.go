// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/katrix/lib/config"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{
			name: "defaults",
			args: nil,
			want: options{},
		},
		{
			name: "all flags",
			args: []string{"-c", "/tmp/katrix.yaml", "--homeserver", "https://example.org", "-u", "bob", "--debug", "--shell"},
			want: options{
				configPath: "/tmp/katrix.yaml",
				homeserver: "https://example.org",
				username:   "bob",
				debug:      true,
				shell:      true,
			},
		},
		{
			name: "password file implies login",
			args: []string{"--password-file", "-"},
			want: options{login: true, passwordFile: "-"},
		},
		{
			name: "version",
			args: []string{"--version"},
			want: options{showVersion: true},
		},
		{
			name:    "unknown flag",
			args:    []string{"--colour"},
			wantErr: true,
		},
		{
			name:    "positional argument",
			args:    []string{"extra"},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := parseArgs(test.args, &out)
			if test.wantErr {
				var usageErr *usageError
				if !errors.As(err, &usageErr) {
					t.Fatalf("parseArgs(%q) error = %v, want a usage error", test.args, err)
				}
				if usageErr.ExitCode() != 2 {
					t.Errorf("ExitCode() = %d, want 2", usageErr.ExitCode())
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArgs(%q): %v", test.args, err)
			}
			if got != test.want {
				t.Errorf("parseArgs(%q) = %+v, want %+v", test.args, got, test.want)
			}
		})
	}
}

func TestParseArgsHelp(t *testing.T) {
	var out bytes.Buffer
	_, err := parseArgs([]string{"--help"}, &out)
	if !errors.Is(err, errHelp) {
		t.Fatalf("parseArgs(--help) error = %v, want errHelp", err)
	}
	for _, want := range []string{"katrix, a terminal Matrix client.", "--homeserver", "--shell"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("usage output missing %q:\n%s", want, out.String())
		}
	}
}

func TestReadStartupPasswordFromFile(t *testing.T) {
	path := t.TempDir() + "/password"
	if err := os.WriteFile(path, []byte("hunter2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	password, err := readStartupPassword(path)
	if err != nil {
		t.Fatalf("readStartupPassword: %v", err)
	}
	defer password.Close()
	if password.String() != "hunter2" {
		t.Errorf("password = %q, want hunter2", password.String())
	}

	if _, err := readStartupPassword(t.TempDir() + "/missing"); err == nil {
		t.Error("missing password file should fail")
	}
}

func TestOptionsApply(t *testing.T) {
	cfg := config.Default()
	cfg.Homeserver = "https://matrix.org"
	cfg.Username = "alice"

	options{}.apply(cfg)
	if cfg.Homeserver != "https://matrix.org" || cfg.Username != "alice" {
		t.Errorf("empty options changed the config: %q %q", cfg.Homeserver, cfg.Username)
	}

	options{homeserver: "https://example.org", username: "bob"}.apply(cfg)
	if cfg.Homeserver != "https://example.org" {
		t.Errorf("Homeserver = %q, want https://example.org", cfg.Homeserver)
	}
	if cfg.Username != "bob" {
		t.Errorf("Username = %q, want bob", cfg.Username)
	}
}

func TestFanoutHandler(t *testing.T) {
	var infoOut, warnOut bytes.Buffer
	info := slog.NewTextHandler(&infoOut, &slog.HandlerOptions{Level: slog.LevelInfo})
	warn := slog.NewTextHandler(&warnOut, &slog.HandlerOptions{Level: slog.LevelWarn})
	handler := fanoutHandler{info, warn}

	if !handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Info should be enabled when any handler accepts it")
	}
	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Debug should be disabled when no handler accepts it")
	}

	logger := slog.New(handler).With("room", "!a:matrix.org")
	logger.Info("synced")
	logger.Warn("sync failed")

	if !strings.Contains(infoOut.String(), "msg=synced") || !strings.Contains(infoOut.String(), "msg=\"sync failed\"") {
		t.Errorf("info handler output:\n%s", infoOut.String())
	}
	if strings.Contains(warnOut.String(), "msg=synced") {
		t.Errorf("warn handler received an info record:\n%s", warnOut.String())
	}
	if !strings.Contains(warnOut.String(), "room=!a:matrix.org") {
		t.Errorf("warn handler lost the attributes:\n%s", warnOut.String())
	}
}

func TestOpenFileLogHandler(t *testing.T) {
	path := t.TempDir() + "/katrix.log"
	handler, closeLog, err := openFileLogHandler(path, slog.LevelInfo)
	if err != nil {
		t.Fatalf("openFileLogHandler: %v", err)
	}
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file = %q, want a JSON record", data)
	}
}
