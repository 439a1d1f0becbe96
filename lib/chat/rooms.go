// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/messaging"
)

// RoomSummary is one entry of the room list.
type RoomSummary struct {
	ID   ref.RoomID
	Name string // "" when the room has no name
}

// DisplayName returns the room name, falling back to the room ID.
func (r RoomSummary) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID.String()
}

// watchRooms keeps c.rooms equal to the session's joined rooms with
// their current names. Each change of the joined set replaces the
// name derivation with one over the new set's name holders.
func (c *Client) watchRooms(ctx context.Context, session messaging.Session) {
	joined := session.Rooms().Subscribe()
	defer joined.Close()

	var (
		cancelNames context.CancelFunc
		names       *reactive.Subscription[[]RoomSummary]
		namesC      <-chan []RoomSummary
	)
	stopNames := func() {
		if cancelNames != nil {
			cancelNames()
			names.Close()
			cancelNames, names, namesC = nil, nil, nil
		}
	}
	defer stopNames()

	for {
		select {
		case <-ctx.Done():
			return
		case roomIDs, ok := <-joined.C():
			if !ok {
				return
			}
			stopNames()
			derivedCtx, cancel := context.WithCancel(ctx)
			derived := deriveSummaries(derivedCtx, session, roomIDs)
			cancelNames = cancel
			names = derived.Subscribe()
			namesC = names.C()
		case summaries, ok := <-namesC:
			if !ok || ctx.Err() != nil {
				continue
			}
			c.rooms.Set(summaries)
		}
	}
}

func deriveSummaries(ctx context.Context, session messaging.Session, roomIDs []ref.RoomID) *reactive.Derived[[]RoomSummary] {
	holders := make([]*reactive.Holder[string], len(roomIDs))
	sources := make([]reactive.Source, len(roomIDs))
	for i, roomID := range roomIDs {
		holders[i] = session.RoomName(roomID)
		sources[i] = holders[i]
	}
	return reactive.Derive(ctx, func() []RoomSummary {
		summaries := make([]RoomSummary, len(roomIDs))
		for i, roomID := range roomIDs {
			summaries[i] = RoomSummary{ID: roomID, Name: holders[i].Get()}
		}
		sortSummaries(summaries)
		return summaries
	}, sources...)
}

// sortSummaries orders rooms by display name, case-insensitively,
// then by ID.
func sortSummaries(summaries []RoomSummary) {
	slices.SortFunc(summaries, func(a, b RoomSummary) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName())),
			strings.Compare(a.ID.String(), b.ID.String()),
		)
	})
}
