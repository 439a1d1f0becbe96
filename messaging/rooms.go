// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/tidwall/gjson"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/ref"
)

// roomState holds the reactive per-room data. Each holder is filled
// by a one-shot fetch on first access and then kept current by /sync.
type roomState struct {
	name    *reactive.Holder[string]
	members *reactive.Holder[map[ref.UserID]UserInfo]
	latest  *reactive.Holder[Event]

	nameFetch    sync.Once
	membersFetch sync.Once
	latestFetch  sync.Once
}

func (s *DirectSession) room(roomID ref.RoomID) *roomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.rooms[roomID]
	if !ok {
		state = &roomState{
			name:    reactive.NewHolder(""),
			members: reactive.NewHolder(map[ref.UserID]UserInfo{}),
			latest:  reactive.NewHolder(Event{}),
		}
		s.rooms[roomID] = state
	}
	return state
}

// RoomName returns the holder for the room's display name.
func (s *DirectSession) RoomName(roomID ref.RoomID) *reactive.Holder[string] {
	state := s.room(roomID)
	state.nameFetch.Do(func() {
		go func() {
			name, err := s.fetchRoomName(roomID)
			if err != nil {
				s.logBackgroundError("fetching room name failed", roomID, err)
				return
			}
			if name != "" {
				state.name.Set(name)
			}
		}()
	})
	return state.name
}

// RoomMembers returns the holder for the room's joined members.
func (s *DirectSession) RoomMembers(roomID ref.RoomID) *reactive.Holder[map[ref.UserID]UserInfo] {
	state := s.room(roomID)
	state.membersFetch.Do(func() {
		go func() {
			members, err := s.fetchJoinedMembers(roomID)
			if err != nil {
				s.logBackgroundError("fetching room members failed", roomID, err)
				return
			}
			// Entries already delivered by /sync are newer than the
			// snapshot and win.
			state.members.Update(func(current map[ref.UserID]UserInfo) map[ref.UserID]UserInfo {
				merged := make(map[ref.UserID]UserInfo, len(members)+len(current))
				for userID, info := range members {
					merged[userID] = info
				}
				for userID, info := range current {
					merged[userID] = info
				}
				return merged
			})
		}()
	})
	return state.members
}

// LatestEvent returns the holder for the newest timeline event in the
// room. The initial value is the zero Event.
func (s *DirectSession) LatestEvent(roomID ref.RoomID) *reactive.Holder[Event] {
	state := s.room(roomID)
	state.latestFetch.Do(func() {
		go func() {
			response, err := s.RoomMessages(s.ctx, roomID, RoomMessagesOptions{
				Direction: DirectionBackward,
				Limit:     1,
			})
			if err != nil {
				s.logBackgroundError("fetching latest event failed", roomID, err)
				return
			}
			if len(response.Chunk) == 0 {
				return
			}
			newest := response.Chunk[0]
			state.latest.Update(func(current Event) Event {
				if current.EventID.IsZero() {
					return newest
				}
				return current
			})
		}()
	})
	return state.latest
}

func (s *DirectSession) logBackgroundError(message string, roomID ref.RoomID, err error) {
	if s.ctx.Err() != nil {
		return
	}
	s.logger.Warn(message, "room_id", roomID, "error", err)
}

func (s *DirectSession) fetchRoomName(roomID ref.RoomID) (string, error) {
	var content event.RoomNameEventContent
	err := s.sdk.StateEvent(s.ctx, id.RoomID(roomID.String()), event.StateRoomName, "", &content)
	if err != nil {
		err = translateError(err)
		// Unnamed rooms have no m.room.name state event.
		if IsMatrixError(err, ErrCodeNotFound) {
			return "", nil
		}
		return "", err
	}
	return content.Name, nil
}

// joinedMembersResponse mirrors GET /rooms/{roomId}/joined_members.
type joinedMembersResponse struct {
	Joined map[string]struct {
		DisplayName string `json:"display_name"`
		AvatarURL   string `json:"avatar_url"`
	} `json:"joined"`
}

func (s *DirectSession) fetchJoinedMembers(roomID ref.RoomID) (map[ref.UserID]UserInfo, error) {
	requestURL := s.sdk.BuildURLWithQuery(mautrix.ClientURLPath{"v3", "rooms", roomID.String(), "joined_members"}, nil)
	var response joinedMembersResponse
	if _, err := s.sdk.MakeRequest(s.ctx, http.MethodGet, requestURL, nil, &response); err != nil {
		return nil, fmt.Errorf("messaging: joined members for %s failed: %w", roomID, translateError(err))
	}
	members := make(map[ref.UserID]UserInfo, len(response.Joined))
	for raw, profile := range response.Joined {
		userID, err := ref.ParseUserID(raw)
		if err != nil {
			continue
		}
		members[userID] = UserInfo{DisplayName: profile.DisplayName, AvatarURL: profile.AvatarURL}
	}
	return members, nil
}

// applyMember folds one m.room.member state event into the members
// holder. Only "join" keeps a user in the map.
func (state *roomState) applyMember(evt Event) {
	if evt.StateKey == nil {
		return
	}
	userID, err := ref.ParseUserID(*evt.StateKey)
	if err != nil {
		return
	}
	content := gjson.ParseBytes(evt.Content)
	membership := content.Get("membership").String()
	state.members.Update(func(current map[ref.UserID]UserInfo) map[ref.UserID]UserInfo {
		next := make(map[ref.UserID]UserInfo, len(current)+1)
		for existing, info := range current {
			next[existing] = info
		}
		if membership == "join" {
			next[userID] = UserInfo{
				DisplayName: content.Get("displayname").String(),
				AvatarURL:   content.Get("avatar_url").String(),
			}
		} else {
			delete(next, userID)
		}
		return next
	})
}

// applyName folds one m.room.name state event into the name holder.
func (state *roomState) applyName(evt Event) {
	if evt.StateKey == nil || *evt.StateKey != "" {
		return
	}
	state.name.Set(gjson.GetBytes(evt.Content, "name").String())
}
