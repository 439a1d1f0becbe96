// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/bureau-foundation/katrix/lib/ref"
)

// Matrix event types katrix interprets.
const (
	EventTypeMessage  = "m.room.message"
	EventTypeRoomName = "m.room.name"
	EventTypeMember   = "m.room.member"
)

// Pagination directions for RoomMessages.
const (
	DirectionBackward = "b"
	DirectionForward  = "f"
)

// Event is a Matrix room event as delivered by /sync or /messages.
// Content is left as raw JSON; interpretation belongs to the consumer
// (see lib/timeline).
type Event struct {
	EventID   ref.EventID
	Type      string
	Sender    ref.UserID
	Timestamp time.Time
	RoomID    ref.RoomID
	StateKey  *string
	Content   json.RawMessage
}

// IsState reports whether the event is a state event.
func (e Event) IsState() bool { return e.StateKey != nil }

// eventFromSDK converts a mautrix event. Events whose identifiers do
// not parse are dropped (returns false); they cannot be addressed or
// paginated around, so there is nothing useful to do with them.
func eventFromSDK(evt *event.Event) (Event, bool) {
	if evt == nil {
		return Event{}, false
	}
	eventID, err := ref.ParseEventID(evt.ID.String())
	if err != nil {
		return Event{}, false
	}
	sender, err := ref.ParseUserID(evt.Sender.String())
	if err != nil {
		return Event{}, false
	}
	converted := Event{
		EventID:   eventID,
		Type:      evt.Type.Type,
		Sender:    sender,
		Timestamp: time.UnixMilli(evt.Timestamp),
		StateKey:  evt.StateKey,
		Content:   evt.Content.VeryRaw,
	}
	if roomID, err := ref.ParseRoomID(evt.RoomID.String()); err == nil {
		converted.RoomID = roomID
	}
	return converted, true
}

// eventsFromSDK converts a slice of mautrix events, dropping the ones
// eventFromSDK rejects.
func eventsFromSDK(events []*event.Event) []Event {
	converted := make([]Event, 0, len(events))
	for _, evt := range events {
		if e, ok := eventFromSDK(evt); ok {
			converted = append(converted, e)
		}
	}
	return converted
}

// UserInfo is the per-member profile data shown next to messages.
type UserInfo struct {
	DisplayName string
	AvatarURL   string
}

// Name returns the display name, falling back to the user ID.
func (u UserInfo) Name(userID ref.UserID) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return userID.String()
}

// RoomMessagesOptions controls pagination for room message fetching.
type RoomMessagesOptions struct {
	From      string // pagination token; empty means "from the live edge"
	Direction string // DirectionBackward or DirectionForward
	Limit     int    // max events to return; 0 uses server default
}

// RoomMessagesResponse is returned by RoomMessages. Chunk is in the
// order the server returned it: newest first for backward pagination,
// oldest first for forward pagination. End is empty when there are no
// more events in the requested direction.
type RoomMessagesResponse struct {
	Start string
	End   string
	Chunk []Event
}

// CreateRoomRequest is the request body for creating a room.
type CreateRoomRequest struct {
	Name       string
	Topic      string
	Visibility string // "public" or "private"
	Preset     string // "public_chat", "private_chat", "trusted_private_chat"
}

// Media is a downloaded media payload.
type Media struct {
	ContentType string
	Data        []byte
}
