// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/lib/timeline"
)

// ActiveRoomView is the active room as the UI sees it. The zero value
// means no room is selected.
type ActiveRoomView struct {
	RoomID ref.RoomID
	// Loading is set between selecting a room and its first state.
	Loading bool
	State   timeline.RoomViewState
}

// Active reports whether a room is selected.
func (v ActiveRoomView) Active() bool { return !v.RoomID.IsZero() }

// StateProvider supplies room state streams. *timeline.Cache
// implements it.
type StateProvider interface {
	GetRoomState(ctx context.Context, roomID ref.RoomID, initialBatchSize int) (*timeline.RoomStateStream, error)
}

// subscriptionJob republishes one room's state stream into the
// controller's holder until cancelled.
type subscriptionJob struct {
	roomID ref.RoomID
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller tracks the active room. It has two states: no active
// room, or an active room with exactly one subscription job.
type Controller struct {
	logger    *slog.Logger
	feed      *Feed
	batchSize int

	// mu serializes transitions. A transition holds it across the
	// cancellation and join of the previous job.
	mu       sync.Mutex
	provider StateProvider
	baseCtx  context.Context
	job      *subscriptionJob

	view *reactive.Holder[ActiveRoomView]
}

// NewController creates a controller with no session attached.
func NewController(feed *Feed, batchSize int, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		logger:    logger,
		feed:      feed,
		batchSize: batchSize,
		view:      reactive.NewHolder(ActiveRoomView{}),
	}
}

// View holds the active room.
func (c *Controller) View() *reactive.Holder[ActiveRoomView] { return c.view }

// ActiveRoomID returns the active room, or the zero RoomID.
func (c *Controller) ActiveRoomID() ref.RoomID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil {
		return ref.RoomID{}
	}
	return c.job.roomID
}

// Attach connects the controller to a session's state provider. Jobs
// started afterwards end when ctx does.
func (c *Controller) Attach(ctx context.Context, provider StateProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.provider = provider
	c.baseCtx = ctx
	c.view.Set(ActiveRoomView{})
}

// Reset stops the active job, detaches the provider, and returns to
// no active room.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.provider = nil
	c.baseCtx = nil
	c.view.Set(ActiveRoomView{})
}

// SetActiveRoom selects roomID. Selecting the active room again, or
// the zero RoomID, deselects. Any previous job has fully stopped by
// the time SetActiveRoom returns, and the view already names the new
// room (or none).
//
// Without an attached session a non-zero roomID is refused with
// ErrNotLoggedIn and a "Log in first!" notification.
func (c *Controller) SetActiveRoom(roomID ref.RoomID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deselect := roomID.IsZero() || (c.job != nil && c.job.roomID == roomID)
	c.stopLocked()
	if deselect {
		c.view.Set(ActiveRoomView{})
		return nil
	}
	if c.provider == nil {
		c.view.Set(ActiveRoomView{})
		c.feed.Error("Log in first!")
		return ErrNotLoggedIn
	}

	jobCtx, cancel := context.WithCancel(c.baseCtx)
	job := &subscriptionJob{
		roomID: roomID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.job = job
	c.view.Set(ActiveRoomView{RoomID: roomID, Loading: true})
	go c.run(jobCtx, job, c.provider)
	c.logger.Debug("active room changed", "room_id", roomID)
	return nil
}

// Deselect clears the active room if it is roomID.
func (c *Controller) Deselect(roomID ref.RoomID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil || c.job.roomID != roomID {
		return
	}
	c.stopLocked()
	c.view.Set(ActiveRoomView{})
}

// stopLocked cancels the current job and waits for it to exit.
func (c *Controller) stopLocked() {
	if c.job == nil {
		return
	}
	c.job.cancel()
	<-c.job.done
	c.job = nil
}

func (c *Controller) run(ctx context.Context, job *subscriptionJob, provider StateProvider) {
	defer close(job.done)

	stream, err := provider.GetRoomState(ctx, job.roomID, c.batchSize)
	if err != nil {
		// Only cancellation ends GetRoomState early.
		return
	}
	subscription := stream.Subscribe()
	defer subscription.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-subscription.C():
			if !ok {
				return
			}
			// Both cases may be ready at once; cancellation wins.
			if ctx.Err() != nil {
				return
			}
			c.view.Set(ActiveRoomView{RoomID: job.roomID, State: state})
		}
	}
}
