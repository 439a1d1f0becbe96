// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/ref"
)

// DirectSession is an authenticated Matrix session backed by a
// mautrix client. Create one with Client.Login or
// Client.SessionFromToken. The caller must call Close when done.
type DirectSession struct {
	client *Client
	sdk    *mautrix.Client
	userID ref.UserID
	logger *slog.Logger

	// ctx bounds the background fetches that fill reactive holders.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	rooms       map[ref.RoomID]*roomState
	joined      *reactive.Holder[[]ref.RoomID]
	joinedFetch sync.Once
	nextBatch   string
}

func newDirectSession(client *Client, sdk *mautrix.Client, userID ref.UserID) *DirectSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &DirectSession{
		client: client,
		sdk:    sdk,
		userID: userID,
		logger: client.logger.With("user_id", userID.String()),
		ctx:    ctx,
		cancel: cancel,
		rooms:  make(map[ref.RoomID]*roomState),
		joined: reactive.NewHolder[[]ref.RoomID](nil),
	}
}

// UserID returns the fully-qualified Matrix user ID (e.g., "@alice:matrix.org").
func (s *DirectSession) UserID() ref.UserID {
	return s.userID
}

// AccessToken returns the session's access token.
func (s *DirectSession) AccessToken() string {
	return s.sdk.AccessToken
}

// DeviceID returns the device ID for this session.
func (s *DirectSession) DeviceID() string {
	return s.sdk.DeviceID.String()
}

// Close stops background fetches. Idempotent.
func (s *DirectSession) Close() error {
	s.cancel()
	return nil
}

// Logout invalidates the access token on the homeserver.
func (s *DirectSession) Logout(ctx context.Context) error {
	if _, err := s.sdk.Logout(ctx); err != nil {
		return fmt.Errorf("messaging: logout failed: %w", translateError(err))
	}
	s.logger.Info("logged out of matrix")
	return nil
}

// JoinedRooms returns the list of rooms the user has joined and
// refreshes the Rooms holder with it.
func (s *DirectSession) JoinedRooms(ctx context.Context) ([]ref.RoomID, error) {
	response, err := s.sdk.JoinedRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("messaging: joined rooms failed: %w", translateError(err))
	}
	roomIDs := make([]ref.RoomID, 0, len(response.JoinedRooms))
	for _, raw := range response.JoinedRooms {
		roomID, err := ref.ParseRoomID(raw.String())
		if err != nil {
			s.logger.Warn("ignoring invalid joined room ID", "room_id", raw, "error", err)
			continue
		}
		roomIDs = append(roomIDs, roomID)
	}
	s.joined.Set(roomIDs)
	return roomIDs, nil
}

// CreateRoom creates a new Matrix room and adds it to the Rooms holder
// without waiting for /sync to report the join.
func (s *DirectSession) CreateRoom(ctx context.Context, request CreateRoomRequest) (ref.RoomID, error) {
	response, err := s.sdk.CreateRoom(ctx, &mautrix.ReqCreateRoom{
		Name:       request.Name,
		Topic:      request.Topic,
		Visibility: request.Visibility,
		Preset:     request.Preset,
	})
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("messaging: create room failed: %w", translateError(err))
	}
	roomID, err := ref.ParseRoomID(response.RoomID.String())
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("messaging: homeserver returned invalid room ID: %w", err)
	}

	s.addJoined(roomID)
	if request.Name != "" {
		s.room(roomID).name.Set(request.Name)
	}
	s.logger.Info("created matrix room",
		"room_id", roomID,
		"name", request.Name,
	)
	return roomID, nil
}

// LeaveRoom leaves a room and removes it from the Rooms holder.
func (s *DirectSession) LeaveRoom(ctx context.Context, roomID ref.RoomID) error {
	if _, err := s.sdk.LeaveRoom(ctx, id.RoomID(roomID.String())); err != nil {
		return fmt.Errorf("messaging: leave room %s failed: %w", roomID, translateError(err))
	}
	s.removeJoined(roomID)
	s.logger.Info("left matrix room", "room_id", roomID)
	return nil
}

// SendText sends a plain-text message to a room. Returns the event ID.
func (s *DirectSession) SendText(ctx context.Context, roomID ref.RoomID, body string) (ref.EventID, error) {
	response, err := s.sdk.SendText(ctx, id.RoomID(roomID.String()), body)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: send to %s failed: %w", roomID, translateError(err))
	}
	eventID, err := ref.ParseEventID(response.EventID.String())
	if err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: homeserver returned invalid event ID: %w", err)
	}
	return eventID, nil
}

// RoomMessages fetches a page of room history. An empty From starts
// at the live edge of the room, which is why the request is built here
// rather than through mautrix's Messages helper (that one always sends
// a from parameter).
func (s *DirectSession) RoomMessages(ctx context.Context, roomID ref.RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error) {
	direction := options.Direction
	if direction == "" {
		direction = DirectionBackward
	}
	if direction != DirectionBackward && direction != DirectionForward {
		return nil, fmt.Errorf("messaging: invalid pagination direction %q", direction)
	}

	query := map[string]string{"dir": direction}
	if options.From != "" {
		query["from"] = options.From
	}
	if options.Limit > 0 {
		query["limit"] = strconv.Itoa(options.Limit)
	}

	requestURL := s.sdk.BuildURLWithQuery(mautrix.ClientURLPath{"v3", "rooms", roomID.String(), "messages"}, query)
	var response mautrix.RespMessages
	if _, err := s.sdk.MakeRequest(ctx, http.MethodGet, requestURL, nil, &response); err != nil {
		return nil, fmt.Errorf("messaging: room messages for %s failed: %w", roomID, translateError(err))
	}

	return &RoomMessagesResponse{
		Start: response.Start,
		End:   response.End,
		Chunk: eventsFromSDK(response.Chunk),
	}, nil
}

// Rooms returns the joined room list holder. The first call triggers
// a background fetch; /sync keeps it current afterwards.
func (s *DirectSession) Rooms() *reactive.Holder[[]ref.RoomID] {
	s.joinedFetch.Do(func() {
		go func() {
			if _, err := s.JoinedRooms(s.ctx); err != nil && s.ctx.Err() == nil {
				s.logger.Warn("fetching joined rooms failed", "error", err)
			}
		}()
	})
	return s.joined
}

func (s *DirectSession) addJoined(roomID ref.RoomID) {
	s.joined.Update(func(current []ref.RoomID) []ref.RoomID {
		for _, existing := range current {
			if existing == roomID {
				return current
			}
		}
		next := make([]ref.RoomID, 0, len(current)+1)
		next = append(next, current...)
		return append(next, roomID)
	})
}

func (s *DirectSession) removeJoined(roomID ref.RoomID) {
	s.joined.Update(func(current []ref.RoomID) []ref.RoomID {
		next := make([]ref.RoomID, 0, len(current))
		for _, existing := range current {
			if existing != roomID {
				next = append(next, existing)
			}
		}
		return next
	})
}
