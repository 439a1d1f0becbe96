// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/messaging"
)

// Forward pagination bounds for LoadNewer.
const (
	newerPageSize = 50
	maxNewerPages = 20
)

// Source is the part of a messaging.Session a Cache reads from.
type Source interface {
	RoomMessages(ctx context.Context, roomID ref.RoomID, options messaging.RoomMessagesOptions) (*messaging.RoomMessagesResponse, error)
	RoomName(roomID ref.RoomID) *reactive.Holder[string]
	RoomMembers(roomID ref.RoomID) *reactive.Holder[map[ref.UserID]messaging.UserInfo]
	LatestEvent(roomID ref.RoomID) *reactive.Holder[messaging.Event]
}

// Handle is the paginating cursor over one room's timeline. Handles
// are created and driven by a Cache; every method that moves the
// cursor must be called with the cache lock held.
type Handle struct {
	roomID ref.RoomID
	source Source

	initialized bool
	olderToken  string
	newerToken  string
	hasOlder    bool
	events      []messaging.Event // oldest first
	seen        map[ref.EventID]struct{}

	elements     *reactive.Holder[[]DisplayMessage]
	canLoadOlder *reactive.Holder[bool]
	newest       *reactive.Holder[ref.EventID]
}

func newHandle(roomID ref.RoomID, source Source) *Handle {
	return &Handle{
		roomID:       roomID,
		source:       source,
		seen:         make(map[ref.EventID]struct{}),
		elements:     reactive.NewHolder([]DisplayMessage{}),
		canLoadOlder: reactive.NewHolder(false),
		newest:       reactive.NewHolder(ref.EventID{}),
	}
}

// RoomID returns the room this handle paginates.
func (h *Handle) RoomID() ref.RoomID { return h.roomID }

// Elements holds the displayable messages, oldest first.
func (h *Handle) Elements() *reactive.Holder[[]DisplayMessage] { return h.elements }

// CanLoadOlder holds whether older history may exist.
func (h *Handle) CanLoadOlder() *reactive.Holder[bool] { return h.canLoadOlder }

// Newest holds the ID of the newest loaded event (zero when nothing
// is loaded).
func (h *Handle) Newest() *reactive.Holder[ref.EventID] { return h.newest }

// init loads up to limit events backward from the live edge.
func (h *Handle) init(ctx context.Context, limit int) error {
	response, err := h.source.RoomMessages(ctx, h.roomID, messaging.RoomMessagesOptions{
		Direction: messaging.DirectionBackward,
		Limit:     limit,
	})
	if err != nil {
		return fmt.Errorf("initial load of %s: %w", h.roomID, err)
	}
	h.initialized = true
	h.newerToken = response.Start
	h.olderToken = response.End
	h.hasOlder = response.End != "" && len(response.Chunk) > 0

	chunk := slices.Clone(response.Chunk)
	slices.Reverse(chunk)
	h.events = h.events[:0]
	h.seen = make(map[ref.EventID]struct{}, len(chunk))
	h.appendEvents(chunk)
	h.publish()
	return nil
}

// loadOlder extends the window backward by up to limit events.
func (h *Handle) loadOlder(ctx context.Context, limit int) error {
	if !h.initialized || !h.hasOlder || limit <= 0 {
		return nil
	}
	response, err := h.source.RoomMessages(ctx, h.roomID, messaging.RoomMessagesOptions{
		From:      h.olderToken,
		Direction: messaging.DirectionBackward,
		Limit:     limit,
	})
	if err != nil {
		return fmt.Errorf("loading older events in %s: %w", h.roomID, err)
	}

	older := make([]messaging.Event, 0, len(response.Chunk))
	for _, evt := range slices.Backward(response.Chunk) {
		if _, ok := h.seen[evt.EventID]; ok {
			continue
		}
		h.seen[evt.EventID] = struct{}{}
		older = append(older, evt)
	}
	h.events = append(older, h.events...)
	h.olderToken = response.End
	h.hasOlder = response.End != "" && len(response.Chunk) > 0
	h.publish()
	return nil
}

// loadNewer pages forward until the newest loaded event is latest,
// a page comes back empty, or maxNewerPages pages have been read.
func (h *Handle) loadNewer(ctx context.Context, latest ref.EventID) error {
	if !h.initialized || h.newerToken == "" {
		return nil
	}
	for page := 0; page < maxNewerPages; page++ {
		if !latest.IsZero() && h.newestID() == latest {
			break
		}
		response, err := h.source.RoomMessages(ctx, h.roomID, messaging.RoomMessagesOptions{
			From:      h.newerToken,
			Direction: messaging.DirectionForward,
			Limit:     newerPageSize,
		})
		if err != nil {
			return fmt.Errorf("loading newer events in %s: %w", h.roomID, err)
		}
		if response.End != "" {
			h.newerToken = response.End
		}
		if len(response.Chunk) == 0 {
			break
		}
		h.appendEvents(response.Chunk)
		h.publish()
	}
	return nil
}

func (h *Handle) appendEvents(events []messaging.Event) {
	for _, evt := range events {
		if _, ok := h.seen[evt.EventID]; ok {
			continue
		}
		h.seen[evt.EventID] = struct{}{}
		h.events = append(h.events, evt)
	}
}

func (h *Handle) newestID() ref.EventID {
	if len(h.events) == 0 {
		return ref.EventID{}
	}
	return h.events[len(h.events)-1].EventID
}

// loadedCount returns the number of raw events in the window.
func (h *Handle) loadedCount() int { return len(h.events) }

// publish pushes the current window to the holders. Readers get a
// fresh slice each time; published slices are never mutated.
func (h *Handle) publish() {
	h.elements.Set(TransformAll(h.events))
	h.canLoadOlder.Set(h.hasOlder)
	h.newest.Set(h.newestID())
}
