// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// maxIDLength is the Matrix limit on an identifier's length in bytes.
const maxIDLength = 255

// sigilKind describes one family of sigil-prefixed Matrix identifiers.
type sigilKind struct {
	sigil byte
	name  string
	// server is set when the identifier must end in ":server". Event
	// IDs from room version 4 on are bare hashes.
	server bool
}

var (
	roomKind  = sigilKind{sigil: '!', name: "room ID", server: true}
	userKind  = sigilKind{sigil: '@', name: "user ID", server: true}
	eventKind = sigilKind{sigil: '$', name: "event ID"}
)

func (k sigilKind) check(raw string) error {
	switch {
	case raw == "":
		return fmt.Errorf("empty %s", k.name)
	case raw[0] != k.sigil:
		return fmt.Errorf("%s must start with '%c': %q", k.name, k.sigil, raw)
	case len(raw) == 1:
		return fmt.Errorf("%s has nothing after '%c'", k.name, k.sigil)
	case len(raw) > maxIDLength:
		return fmt.Errorf("%s longer than %d bytes: %q...", k.name, maxIDLength, raw[:32])
	case strings.ContainsAny(raw, " \t\r\n"):
		return fmt.Errorf("%s contains whitespace: %q", k.name, raw)
	}
	if !k.server {
		return nil
	}
	local, server, found := strings.Cut(raw[1:], ":")
	switch {
	case !found:
		return fmt.Errorf("%s missing ':server' suffix: %q", k.name, raw)
	case local == "":
		return fmt.Errorf("%s has an empty local part: %q", k.name, raw)
	case server == "":
		return fmt.Errorf("%s has an empty server name: %q", k.name, raw)
	}
	return nil
}

func mustParse[T any](parse func(string) (T, error), raw string) T {
	value, err := parse(raw)
	if err != nil {
		panic(fmt.Sprintf("ref: %v", err))
	}
	return value
}

// unmarshalID decodes text into dst; empty text is the zero value.
func unmarshalID[T any](data []byte, parse func(string) (T, error), dst *T) error {
	if len(data) == 0 {
		var zero T
		*dst = zero
		return nil
	}
	parsed, err := parse(string(data))
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

// RoomID is a Matrix room ID such as "!abc123:matrix.org". It keys
// every per-room structure: timeline handles, member holders and the
// active room. The zero value means no room.
type RoomID struct{ id string }

// ParseRoomID validates a room ID as received from the homeserver.
func ParseRoomID(raw string) (RoomID, error) {
	if err := roomKind.check(raw); err != nil {
		return RoomID{}, err
	}
	return RoomID{id: raw}, nil
}

// MustParseRoomID is ParseRoomID for known-valid input; it panics on
// error.
func MustParseRoomID(raw string) RoomID { return mustParse(ParseRoomID, raw) }

func (r RoomID) String() string { return r.id }

// IsZero reports whether r is unset.
func (r RoomID) IsZero() bool { return r.id == "" }

func (r RoomID) MarshalText() ([]byte, error) { return []byte(r.id), nil }

func (r *RoomID) UnmarshalText(data []byte) error { return unmarshalID(data, ParseRoomID, r) }

// UserID is a Matrix user ID such as "@alice:matrix.org". Only the
// structure is checked; localpart rules vary across homeservers and
// historical accounts.
type UserID struct{ id string }

// ParseUserID validates a user ID.
func ParseUserID(raw string) (UserID, error) {
	if err := userKind.check(raw); err != nil {
		return UserID{}, err
	}
	return UserID{id: raw}, nil
}

// MustParseUserID is ParseUserID for known-valid input; it panics on
// error.
func MustParseUserID(raw string) UserID { return mustParse(ParseUserID, raw) }

func (u UserID) String() string { return u.id }

// IsZero reports whether u is unset.
func (u UserID) IsZero() bool { return u.id == "" }

func (u UserID) MarshalText() ([]byte, error) { return []byte(u.id), nil }

func (u *UserID) UnmarshalText(data []byte) error { return unmarshalID(data, ParseUserID, u) }

// EventID is a Matrix event ID: "$" followed by a hash in current room
// versions, or "$local:server" in old ones. It is otherwise opaque.
type EventID struct{ id string }

// ParseEventID validates an event ID.
func ParseEventID(raw string) (EventID, error) {
	if err := eventKind.check(raw); err != nil {
		return EventID{}, err
	}
	return EventID{id: raw}, nil
}

// MustParseEventID is ParseEventID for known-valid input; it panics on
// error.
func MustParseEventID(raw string) EventID { return mustParse(ParseEventID, raw) }

func (e EventID) String() string { return e.id }

// IsZero reports whether e is unset.
func (e EventID) IsZero() bool { return e.id == "" }

func (e EventID) MarshalText() ([]byte, error) { return []byte(e.id), nil }

func (e *EventID) UnmarshalText(data []byte) error { return unmarshalID(data, ParseEventID, e) }
