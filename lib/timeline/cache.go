// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"log/slog"
	"maps"

	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/messaging"
)

// RoomViewState is the combined per-room state the UI renders. It is
// recomputed in full whenever any input changes.
type RoomViewState struct {
	RoomID       ref.RoomID
	Name         string // "" when the room has no name
	Users        map[ref.UserID]messaging.UserInfo
	Messages     []DisplayMessage // oldest first
	CanLoadOlder bool
	CanLoadNewer bool
}

// DisplayName returns the room name, falling back to the room ID.
func (s RoomViewState) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.RoomID.String()
}

// RoomStateStream is a live RoomViewState for one room. It stops
// updating when the context passed to GetRoomState is cancelled;
// Done is closed once it has stopped.
type RoomStateStream struct {
	*reactive.Derived[RoomViewState]
	handle *Handle
}

// Handle returns the timeline handle backing the stream.
func (s *RoomStateStream) Handle() *Handle { return s.handle }

// Cache owns the timeline handles of one session, at most one per
// room. The zero value is not usable; create caches with NewCache.
type Cache struct {
	source Source
	logger *slog.Logger

	// lock is a one-slot semaphore rather than a sync.Mutex so that
	// waiters can give up when their context is cancelled.
	lock    chan struct{}
	handles map[ref.RoomID]*Handle
}

// NewCache creates an empty cache reading from source.
func NewCache(source Source, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		source:  source,
		logger:  logger,
		lock:    make(chan struct{}, 1),
		handles: make(map[ref.RoomID]*Handle),
	}
}

func (c *Cache) acquire(ctx context.Context) error {
	select {
	case c.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) release() {
	<-c.lock
}

// GetRoomState returns the combined view of roomID, creating and
// initially loading its handle with up to initialBatchSize events if
// the room has no handle yet (or its earlier initial load failed).
//
// A failed initial load is not an error: the stream starts out empty
// with both pagination flags false. The only error is ctx ending
// while waiting for the cache lock.
func (c *Cache) GetRoomState(ctx context.Context, roomID ref.RoomID, initialBatchSize int) (*RoomStateStream, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	handle, ok := c.handles[roomID]
	if !ok {
		handle = newHandle(roomID, c.source)
		c.handles[roomID] = handle
		c.logger.Debug("created timeline handle", "room_id", roomID)
	}
	if !handle.initialized {
		if err := handle.init(ctx, initialBatchSize); err != nil {
			c.logPaginationFailure(ctx, err, roomID)
		}
	}

	name := c.source.RoomName(roomID)
	members := c.source.RoomMembers(roomID)
	latest := c.source.LatestEvent(roomID)

	derived := reactive.Derive(ctx, func() RoomViewState {
		newest := handle.newest.Get()
		latestID := latest.Get().EventID
		return RoomViewState{
			RoomID:       roomID,
			Name:         name.Get(),
			Users:        maps.Clone(members.Get()),
			Messages:     handle.elements.Get(),
			CanLoadOlder: handle.canLoadOlder.Get(),
			CanLoadNewer: !latestID.IsZero() && newest != latestID,
		}
	}, name, members, handle.elements, handle.canLoadOlder, handle.newest, latest)

	return &RoomStateStream{Derived: derived, handle: handle}, nil
}

// LoadOlder extends the room's timeline backward by up to maxCount
// events. It does nothing when the room has no handle or no older
// history.
func (c *Cache) LoadOlder(ctx context.Context, roomID ref.RoomID, maxCount int) {
	if err := c.acquire(ctx); err != nil {
		return
	}
	defer c.release()

	handle, ok := c.handles[roomID]
	if !ok {
		return
	}
	if err := handle.loadOlder(ctx, maxCount); err != nil {
		c.logPaginationFailure(ctx, err, roomID)
	}
}

// LoadNewer extends the room's timeline forward to the latest event
// the session knows about. It does nothing when the room has no
// handle or is already up to date.
func (c *Cache) LoadNewer(ctx context.Context, roomID ref.RoomID) {
	if err := c.acquire(ctx); err != nil {
		return
	}
	defer c.release()

	handle, ok := c.handles[roomID]
	if !ok {
		return
	}
	latest := c.source.LatestEvent(roomID).Get().EventID
	if latest.IsZero() || handle.newestID() == latest {
		return
	}
	if err := handle.loadNewer(ctx, latest); err != nil {
		c.logPaginationFailure(ctx, err, roomID)
	}
}

// Handle returns the cached handle for roomID, or nil.
func (c *Cache) Handle(ctx context.Context, roomID ref.RoomID) *Handle {
	if err := c.acquire(ctx); err != nil {
		return nil
	}
	defer c.release()
	return c.handles[roomID]
}

// Len returns the number of cached handles.
func (c *Cache) Len(ctx context.Context) int {
	if err := c.acquire(ctx); err != nil {
		return 0
	}
	defer c.release()
	return len(c.handles)
}

// Clear drops every handle. Streams obtained earlier keep their old
// handle until their context ends; the next GetRoomState for a room
// creates a new one.
func (c *Cache) Clear() {
	c.lock <- struct{}{}
	defer c.release()
	count := len(c.handles)
	c.handles = make(map[ref.RoomID]*Handle)
	c.logger.Debug("cleared timeline cache", "handles", count)
}

func (c *Cache) logPaginationFailure(ctx context.Context, err error, roomID ref.RoomID) {
	if ctx.Err() != nil {
		return
	}
	c.logger.Warn("timeline pagination failed", "room_id", roomID, "error", err)
}
