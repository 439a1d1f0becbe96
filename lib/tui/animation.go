// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"time"
)

// HeatDecayDuration is how long a message glows after it arrives.
// Heat starts at 1.0 and decays linearly to 0.0 over this duration.
const HeatDecayDuration = 4 * time.Second

// HeatTickInterval is the re-render interval while anything is hot.
const HeatTickInterval = 250 * time.Millisecond

// HeatTracker maps item IDs to arrival times for highlighting items
// that just appeared.
type HeatTracker struct {
	ignitions map[string]time.Time
}

// NewHeatTracker creates an empty heat tracker.
func NewHeatTracker() *HeatTracker {
	return &HeatTracker{ignitions: make(map[string]time.Time)}
}

// Ignite marks an item as just changed.
func (tracker *HeatTracker) Ignite(itemID string, now time.Time) {
	tracker.ignitions[itemID] = now
}

// Heat returns the current intensity for an item: 1.0 at ignition,
// decaying to 0.0 over [HeatDecayDuration].
func (tracker *HeatTracker) Heat(itemID string, now time.Time) float64 {
	ignition, exists := tracker.ignitions[itemID]
	if !exists {
		return 0.0
	}
	elapsed := now.Sub(ignition)
	if elapsed >= HeatDecayDuration {
		return 0.0
	}
	return 1.0 - float64(elapsed)/float64(HeatDecayDuration)
}

// HasHot reports whether any item still glows, dropping the ones that
// have cooled.
func (tracker *HeatTracker) HasHot(now time.Time) bool {
	hot := false
	for itemID, ignition := range tracker.ignitions {
		if now.Sub(ignition) < HeatDecayDuration {
			hot = true
			continue
		}
		delete(tracker.ignitions, itemID)
	}
	return hot
}

// Reset forgets every item.
func (tracker *HeatTracker) Reset() {
	clear(tracker.ignitions)
}
