// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"

	"github.com/bureau-foundation/katrix/lib/ref"
)

// maxSyncRetries is the number of consecutive /sync failures allowed
// before Sync returns an error.
const maxSyncRetries = 5

// retryTimeout is the server-side timeout in milliseconds used after
// a /sync error. Short so the retry completes quickly.
const retryTimeout = 1000

// syncFilter limits /sync to what the reactive accessors need: the
// newest timeline event and room state per room. Older history is
// fetched on demand through RoomMessages.
const syncFilter = `{"room":{"timeline":{"limit":1},"state":{"lazy_load_members":true}},"presence":{"types":[]},"account_data":{"types":[]}}`

// Sync runs the /sync loop until ctx is cancelled, applying each
// response to the session's holders. On transient errors it drops idle
// connections, waits with exponential backoff, and retries up to
// maxSyncRetries consecutive times before giving up.
func (s *DirectSession) Sync(ctx context.Context) error {
	var syncRetries int
	longPoll := int(s.client.syncTimeout / time.Millisecond)

	for {
		timeout := longPoll
		if syncRetries > 0 {
			timeout = retryTimeout
		}

		s.mu.Lock()
		since := s.nextBatch
		s.mu.Unlock()

		response, err := s.sdk.SyncRequest(ctx, timeout, since, syncFilter, false, event.PresenceOnline)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			syncRetries++
			s.client.CloseIdleConnections()
			if syncRetries > maxSyncRetries {
				return fmt.Errorf("messaging: sync failed %d consecutive times: %w", syncRetries, translateError(err))
			}
			backoff := time.Duration(1<<(syncRetries-1)) * time.Second
			s.logger.Debug("sync error, retrying",
				"attempt", syncRetries,
				"max_attempts", maxSyncRetries,
				"backoff", backoff,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return nil
			case <-s.client.clock.After(backoff):
			}
			continue
		}
		syncRetries = 0
		s.applySync(response)
	}
}

func (s *DirectSession) applySync(response *mautrix.RespSync) {
	s.mu.Lock()
	initial := s.nextBatch == ""
	s.nextBatch = response.NextBatch
	s.mu.Unlock()

	joinedCount := 0
	for rawRoomID, joined := range response.Rooms.Join {
		roomID, err := ref.ParseRoomID(rawRoomID.String())
		if err != nil {
			continue
		}
		joinedCount++
		s.addJoined(roomID)
		state := s.room(roomID)

		for _, evt := range eventsFromSDK(joined.State.Events) {
			state.applyStateEvent(evt)
		}
		timeline := eventsFromSDK(joined.Timeline.Events)
		for _, evt := range timeline {
			if evt.IsState() {
				state.applyStateEvent(evt)
			}
		}
		if len(timeline) > 0 {
			state.latest.Set(timeline[len(timeline)-1])
		}
	}

	for rawRoomID := range response.Rooms.Leave {
		roomID, err := ref.ParseRoomID(rawRoomID.String())
		if err != nil {
			continue
		}
		s.removeJoined(roomID)
	}

	if initial {
		s.logger.Info("initial sync complete",
			"joined_rooms", joinedCount,
			"next_batch", response.NextBatch,
		)
	}
}

func (state *roomState) applyStateEvent(evt Event) {
	switch evt.Type {
	case EventTypeRoomName:
		state.applyName(evt)
	case EventTypeMember:
		state.applyMember(evt)
	}
}
