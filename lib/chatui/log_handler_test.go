// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestLogHandlerFormat(t *testing.T) {
	handler := NewLogHandler(slog.LevelInfo)
	derived := handler.WithAttrs([]slog.Attr{slog.String("room", "!a:matrix.org")}).
		WithGroup("sync").(*LogHandler)

	record := slog.NewRecord(time.Now(), slog.LevelWarn, "request failed", 0)
	record.AddAttrs(slog.Int("status", 502))

	message := derived.format(record)
	if want := "request failed (room=!a:matrix.org, sync.status=502)"; message.Summary != want {
		t.Errorf("Summary = %q, want %q", message.Summary, want)
	}
	if message.Level != slog.LevelWarn {
		t.Errorf("Level = %v, want WARN", message.Level)
	}

	next := handler.format(slog.NewRecord(time.Now(), slog.LevelInfo, "plain", 0))
	if next.Summary != "plain" {
		t.Errorf("Summary = %q, want plain", next.Summary)
	}
	if next.sequence <= message.sequence {
		t.Errorf("derived handlers should share the sequence: %d then %d", message.sequence, next.sequence)
	}
}

func TestLogHandlerEnabled(t *testing.T) {
	handler := NewLogHandler(slog.LevelWarn)
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Info enabled at Warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("Error disabled at Warn level")
	}
}

func TestLogHandlerWithoutProgram(t *testing.T) {
	handler := NewLogHandler(slog.LevelDebug)
	logger := slog.New(handler)
	// No program yet: records are dropped without blocking.
	logger.Info("before program")
	if err := handler.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "x", 0)); err != nil {
		t.Errorf("Handle: %v", err)
	}
}

func TestFromFeed(t *testing.T) {
	feed := slog.NewRecord(time.Now(), slog.LevelWarn, "Log in first!", 0)
	feed.AddAttrs(slog.String("source", "feed"))
	if !fromFeed(feed) {
		t.Error("feed record not recognized")
	}

	other := slog.NewRecord(time.Now(), slog.LevelWarn, "sync failed", 0)
	other.AddAttrs(slog.String("source", "sync"))
	if fromFeed(other) {
		t.Error("non-feed record treated as feed")
	}
}
