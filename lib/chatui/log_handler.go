// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg delivers a slog record to the model for display in the
// notification bar.
type logRecordMsg struct {
	// Summary is the one-line "message (key=value, ...)" form.
	Summary string
	Level   slog.Level
	// sequence identifies the record so that only the newest one's
	// fade clears the bar.
	sequence uint64
}

// logRecordFadeMsg clears a log record from the notification bar.
type logRecordFadeMsg struct {
	sequence uint64
}

// logRecordFadeDelay is how long a log record stays in the bar before
// the latest feed entry shows again.
const logRecordFadeDelay = 5 * time.Second

// LogHandler is a slog.Handler that routes records into a bubbletea
// program as messages. Records below the configured level are
// dropped, as are records that arrive before SetProgram and records
// that mirror feed entries.
//
// Handlers derived via WithAttrs/WithGroup share the program pointer,
// so one SetProgram call covers all of them.
type LogHandler struct {
	level    slog.Level
	program  *atomic.Pointer[tea.Program]
	sequence *atomic.Uint64
	attrs    []string
	group    string
}

// NewLogHandler creates a handler that delivers records at or above
// level. Call SetProgram once the tea.Program exists.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{
		level:    level,
		program:  &atomic.Pointer[tea.Program]{},
		sequence: &atomic.Uint64{},
	}
}

// SetProgram sets the program that receives log messages. Passing nil
// stops delivery, which callers do once the program has exited.
func (handler *LogHandler) SetProgram(program *tea.Program) {
	handler.program.Store(program)
}

// Enabled reports whether the handler is interested in records at the
// given level.
func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

// Handle formats the record and sends it to the program.
func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	program := handler.program.Load()
	if program == nil || fromFeed(record) {
		return nil
	}
	program.Send(handler.format(record))
	return nil
}

// fromFeed reports whether the record mirrors a feed entry. Those
// reach the model through the feed holder already.
func fromFeed(record slog.Record) bool {
	found := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "source" && attr.Value.String() == "feed" {
			found = true
			return false
		}
		return true
	})
	return found
}

func (handler *LogHandler) format(record slog.Record) logRecordMsg {
	parts := append([]string(nil), handler.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, handler.formatAttr(attr))
		return true
	})
	summary := record.Message
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}
	return logRecordMsg{
		Summary:  summary,
		Level:    record.Level,
		sequence: handler.sequence.Add(1),
	}
}

func (handler *LogHandler) formatAttr(attr slog.Attr) string {
	return fmt.Sprintf("%s%s=%s", handler.group, attr.Key, attr.Value)
}

// WithAttrs returns a handler with attrs appended to every record.
func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := *handler
	derived.attrs = append([]string(nil), handler.attrs...)
	for _, attr := range attrs {
		derived.attrs = append(derived.attrs, handler.formatAttr(attr))
	}
	return &derived
}

// WithGroup returns a handler that qualifies later attribute keys
// with name.
func (handler *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return handler
	}
	derived := *handler
	derived.group = handler.group + name + "."
	return &derived
}
