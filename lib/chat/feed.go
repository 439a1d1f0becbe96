// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"log/slog"
	"time"

	"github.com/bureau-foundation/katrix/lib/clock"
	"github.com/bureau-foundation/katrix/lib/reactive"
)

// feedCapacity is the number of entries a Feed retains.
const feedCapacity = 200

// Level classifies a feed entry.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is one user-visible notification.
type Entry struct {
	Level   Level
	Message string
	Time    time.Time
}

// Feed is the bounded notification log shown to the user. Each entry
// is also written to the logger.
type Feed struct {
	entries *reactive.Holder[[]Entry]
	logger  *slog.Logger
	clock   clock.Clock
}

// NewFeed creates an empty feed.
func NewFeed(logger *slog.Logger, clk clock.Clock) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Feed{
		entries: reactive.NewHolder[[]Entry](nil),
		logger:  logger,
		clock:   clk,
	}
}

// Entries holds the retained entries, oldest first.
func (f *Feed) Entries() *reactive.Holder[[]Entry] { return f.entries }

// Info posts an informational entry.
func (f *Feed) Info(message string) {
	f.logger.Info(message, "source", "feed")
	f.post(LevelInfo, message)
}

// Error posts an error entry.
func (f *Feed) Error(message string) {
	f.logger.Warn(message, "source", "feed")
	f.post(LevelError, message)
}

func (f *Feed) post(level Level, message string) {
	entry := Entry{Level: level, Message: message, Time: f.clock.Now()}
	f.entries.Update(func(current []Entry) []Entry {
		start := 0
		if len(current) >= feedCapacity {
			start = len(current) - feedCapacity + 1
		}
		next := make([]Entry, 0, len(current)-start+1)
		next = append(next, current[start:]...)
		return append(next, entry)
	})
}

// Latest returns the newest entry, if any.
func (f *Feed) Latest() (Entry, bool) {
	entries := f.entries.Get()
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[len(entries)-1], true
}
