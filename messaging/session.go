// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"

	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/ref"
)

// Session is the authenticated Matrix surface the chat core consumes.
// *DirectSession is the only production implementation; tests supply
// in-memory fakes.
//
// Request methods take a context and block on network I/O. The
// reactive accessors (Rooms, RoomName, RoomMembers, LatestEvent) never
// block: they return a holder immediately and fill it in the
// background, then keep it current from /sync.
type Session interface {
	// UserID returns the Matrix user ID of the logged-in account.
	UserID() ref.UserID

	// Close stops background work and releases resources. It does not
	// invalidate the access token; use Logout for that.
	Close() error

	// Logout invalidates the access token on the homeserver.
	Logout(ctx context.Context) error

	// Sync runs the /sync loop until ctx is cancelled, feeding the
	// reactive accessors. It returns nil on cancellation.
	Sync(ctx context.Context) error

	// JoinedRooms lists the rooms the user is joined to.
	JoinedRooms(ctx context.Context) ([]ref.RoomID, error)

	// CreateRoom creates a room and returns its ID.
	CreateRoom(ctx context.Context, request CreateRoomRequest) (ref.RoomID, error)

	// LeaveRoom leaves a room.
	LeaveRoom(ctx context.Context, roomID ref.RoomID) error

	// SendText sends a plain m.text message.
	SendText(ctx context.Context, roomID ref.RoomID, body string) (ref.EventID, error)

	// RoomMessages pages through a room's timeline.
	RoomMessages(ctx context.Context, roomID ref.RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error)

	// Thumbnail fetches a server-scaled thumbnail of a media file.
	Thumbnail(ctx context.Context, uri ref.ContentURI, width, height int) (*Media, error)

	// Rooms holds the joined room list, kept current by Sync.
	Rooms() *reactive.Holder[[]ref.RoomID]

	// RoomName holds the room's m.room.name ("" when unnamed).
	RoomName(roomID ref.RoomID) *reactive.Holder[string]

	// RoomMembers holds the joined members of a room. The map is
	// replaced, never mutated, on change.
	RoomMembers(roomID ref.RoomID) *reactive.Holder[map[ref.UserID]UserInfo]

	// LatestEvent holds the newest timeline event seen for the room
	// (the zero Event until one is known).
	LatestEvent(roomID ref.RoomID) *reactive.Holder[Event]
}

var _ Session = (*DirectSession)(nil)
