// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/katrix/lib/clock"
	"github.com/bureau-foundation/katrix/lib/mediacache"
	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/lib/secret"
	"github.com/bureau-foundation/katrix/lib/timeline"
	"github.com/bureau-foundation/katrix/messaging"
)

// Defaults for Config.
const (
	defaultBatchSize       = 10
	defaultThumbnailWidth  = 320
	defaultThumbnailHeight = 240
)

// ConnectFunc performs a password login against homeserver.
type ConnectFunc func(ctx context.Context, homeserver, username string, password *secret.Buffer) (messaging.Session, error)

// Config holds the parameters for creating a Client. Connect is
// required.
type Config struct {
	Connect ConnectFunc

	// BatchSize is the number of events loaded when a room is first
	// opened and per LoadOlder call. Defaults to 10.
	BatchSize int

	// ThumbnailWidth and ThumbnailHeight bound requested thumbnails.
	// Default to 320x240.
	ThumbnailWidth  int
	ThumbnailHeight int

	// Media caches thumbnails. If nil, every request is fetched.
	Media *mediacache.Cache

	// Logger receives operational logs. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Clock stamps feed entries. If nil, clock.Real() is used.
	Clock clock.Clock
}

// Client is the facade between a presentation and the Matrix session.
// It is safe for concurrent use.
type Client struct {
	connect         ConnectFunc
	batchSize       int
	thumbnailWidth  int
	thumbnailHeight int
	media           *mediacache.Cache
	logger          *slog.Logger

	feed       *Feed
	controller *Controller
	username   *reactive.Holder[string]
	rooms      *reactive.Holder[[]RoomSummary]

	mu        sync.Mutex
	loggingIn bool
	active    *activeSession
}

// activeSession is everything that lives exactly as long as one login.
type activeSession struct {
	session messaging.Session
	cache   *timeline.Cache
	cancel  context.CancelFunc
	// workers tracks the sync loop and the room list watcher.
	workers sync.WaitGroup
}

// NewClient creates a logged-out Client.
func NewClient(config Config) (*Client, error) {
	if config.Connect == nil {
		return nil, fmt.Errorf("chat: Connect is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	width, height := config.ThumbnailWidth, config.ThumbnailHeight
	if width <= 0 {
		width = defaultThumbnailWidth
	}
	if height <= 0 {
		height = defaultThumbnailHeight
	}

	feed := NewFeed(logger, config.Clock)
	return &Client{
		connect:         config.Connect,
		batchSize:       batchSize,
		thumbnailWidth:  width,
		thumbnailHeight: height,
		media:           config.Media,
		logger:          logger,
		feed:            feed,
		controller:      NewController(feed, batchSize, logger),
		username:        reactive.NewHolder(""),
		rooms:           reactive.NewHolder[[]RoomSummary](nil),
	}, nil
}

// Feed returns the notification feed.
func (c *Client) Feed() *Feed { return c.feed }

// Username holds the logged-in user ID, or "" when logged out.
func (c *Client) Username() *reactive.Holder[string] { return c.username }

// Rooms holds the joined rooms, sorted by display name.
func (c *Client) Rooms() *reactive.Holder[[]RoomSummary] { return c.rooms }

// ActiveRoom holds the active room view.
func (c *Client) ActiveRoom() *reactive.Holder[ActiveRoomView] { return c.controller.View() }

// LoggedIn reports whether a session exists.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

func (c *Client) current() *activeSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Login authenticates and starts the session's background work. The
// password buffer is not closed.
func (c *Client) Login(ctx context.Context, homeserver, username string, password *secret.Buffer) error {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		c.feed.Info("Already logged in")
		return ErrAlreadyLoggedIn
	}
	if c.loggingIn {
		c.mu.Unlock()
		return ErrLoginInProgress
	}
	c.loggingIn = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loggingIn = false
		c.mu.Unlock()
	}()

	c.feed.Info("Logging in...")
	session, err := c.connect(ctx, homeserver, username, password)
	if err != nil {
		c.feed.Error(userMessage(err))
		return fmt.Errorf("chat: login: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	active := &activeSession{
		session: session,
		cache:   timeline.NewCache(session, c.logger),
		cancel:  cancel,
	}
	c.controller.Attach(sessionCtx, active.cache)

	active.workers.Add(2)
	go func() {
		defer active.workers.Done()
		if err := session.Sync(sessionCtx); err != nil {
			c.feed.Error(userMessage(err))
		}
	}()
	go func() {
		defer active.workers.Done()
		c.watchRooms(sessionCtx, session)
	}()

	c.mu.Lock()
	c.active = active
	c.mu.Unlock()

	c.username.Set(session.UserID().String())
	c.feed.Info("Logged in")
	return nil
}

// Logout ends the session: the active room is deselected, background
// work stops, cached timelines are dropped, and the access token is
// invalidated. Local state is cleared even if the homeserver call
// fails.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	active := c.active
	c.active = nil
	c.mu.Unlock()
	if active == nil {
		c.feed.Error("Log in first!")
		return ErrNotLoggedIn
	}

	c.feed.Info("Logging out...")
	c.teardown(active)
	err := active.session.Logout(ctx)
	if closeErr := active.session.Close(); closeErr != nil {
		c.logger.Warn("closing session failed", "error", closeErr)
	}
	if err != nil {
		c.feed.Error(userMessage(err))
		return fmt.Errorf("chat: logout: %w", err)
	}
	c.feed.Info("Logged out")
	return nil
}

// Close stops the session without invalidating its token. The Client
// is logged out afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	active := c.active
	c.active = nil
	c.mu.Unlock()
	if active == nil {
		return nil
	}
	c.teardown(active)
	return active.session.Close()
}

func (c *Client) teardown(active *activeSession) {
	c.controller.Reset()
	active.cancel()
	active.workers.Wait()
	active.cache.Clear()
	c.username.Set("")
	c.rooms.Set(nil)
}

// CreateRoom creates a public room named name.
func (c *Client) CreateRoom(ctx context.Context, name string) (ref.RoomID, error) {
	active := c.current()
	if active == nil {
		c.feed.Error("Log in to add rooms!")
		return ref.RoomID{}, ErrNotLoggedIn
	}
	roomID, err := active.session.CreateRoom(ctx, messaging.CreateRoomRequest{
		Name:       name,
		Visibility: "public",
		Preset:     "public_chat",
	})
	if err != nil {
		c.feed.Error(userMessage(err))
		return ref.RoomID{}, fmt.Errorf("chat: create room: %w", err)
	}
	c.feed.Info(fmt.Sprintf("Created room %s", name))
	return roomID, nil
}

// LeaveRoom leaves roomID, deselecting it first if it is active.
func (c *Client) LeaveRoom(ctx context.Context, roomID ref.RoomID) error {
	active := c.current()
	if active == nil {
		c.feed.Error("Log in first!")
		return ErrNotLoggedIn
	}
	c.controller.Deselect(roomID)
	if err := active.session.LeaveRoom(ctx, roomID); err != nil {
		c.feed.Error(userMessage(err))
		return fmt.Errorf("chat: leave room: %w", err)
	}
	return nil
}

// Send posts body to roomID. Failures are reported to the feed. The
// message reaches the timeline through /sync like any other.
func (c *Client) Send(ctx context.Context, roomID ref.RoomID, body string) error {
	active := c.current()
	if active == nil {
		c.feed.Error("Log in first!")
		return ErrNotLoggedIn
	}
	if _, err := active.session.SendText(ctx, roomID, body); err != nil {
		c.feed.Error(userMessage(err))
		return fmt.Errorf("chat: send: %w", err)
	}
	return nil
}

// SetActiveRoom selects roomID; see Controller.SetActiveRoom.
func (c *Client) SetActiveRoom(roomID ref.RoomID) error {
	return c.controller.SetActiveRoom(roomID)
}

// LoadOlder pages the active room backward by one batch.
func (c *Client) LoadOlder(ctx context.Context) {
	active := c.current()
	roomID := c.controller.ActiveRoomID()
	if active == nil || roomID.IsZero() {
		return
	}
	active.cache.LoadOlder(ctx, roomID, c.batchSize)
}

// LoadNewer pages the active room forward to the latest event.
func (c *Client) LoadNewer(ctx context.Context) {
	active := c.current()
	roomID := c.controller.ActiveRoomID()
	if active == nil || roomID.IsZero() {
		return
	}
	active.cache.LoadNewer(ctx, roomID)
}
