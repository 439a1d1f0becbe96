// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/katrix/lib/chat"
	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/lib/timeline"
)

// Holder values delivered into the event loop.
type (
	roomsMsg      []chat.RoomSummary
	activeRoomMsg chat.ActiveRoomView
	usernameMsg   string
	feedMsg       []chat.Entry
)

// thumbnailMsg delivers a finished thumbnail request.
type thumbnailMsg struct {
	uri    ref.ContentURI
	result chat.ThumbnailResult
}

// operationDoneMsg reports the end of a network operation started by a
// command. Failures have already been posted to the feed.
type operationDoneMsg struct {
	operation string
	err       error
}

// heatTickMsg drives the new-message highlight animation.
type heatTickMsg struct{}

// subscriptions are the model's views of the client's holders. They
// live as long as the model.
type subscriptions struct {
	rooms      *reactive.Subscription[[]chat.RoomSummary]
	activeRoom *reactive.Subscription[chat.ActiveRoomView]
	username   *reactive.Subscription[string]
	feed       *reactive.Subscription[[]chat.Entry]
}

func subscribe(client *chat.Client) *subscriptions {
	return &subscriptions{
		rooms:      client.Rooms().Subscribe(),
		activeRoom: client.ActiveRoom().Subscribe(),
		username:   client.Username().Subscribe(),
		feed:       client.Feed().Entries().Subscribe(),
	}
}

func (s *subscriptions) close() {
	s.rooms.Close()
	s.activeRoom.Close()
	s.username.Close()
	s.feed.Close()
}

// listen returns a command that waits for the next value on a
// subscription and delivers it wrapped as a message. A closed
// subscription yields no message, which ends the loop.
func listen[T any, M any](subscription *reactive.Subscription[T], wrap func(T) M) tea.Cmd {
	return func() tea.Msg {
		value, ok := <-subscription.C()
		if !ok {
			return nil
		}
		return wrap(value)
	}
}

func listenRooms(s *subscriptions) tea.Cmd {
	return listen(s.rooms, func(rooms []chat.RoomSummary) roomsMsg { return roomsMsg(rooms) })
}

func listenActiveRoom(s *subscriptions) tea.Cmd {
	return listen(s.activeRoom, func(view chat.ActiveRoomView) activeRoomMsg { return activeRoomMsg(view) })
}

func listenUsername(s *subscriptions) tea.Cmd {
	return listen(s.username, func(name string) usernameMsg { return usernameMsg(name) })
}

func listenFeed(s *subscriptions) tea.Cmd {
	return listen(s.feed, func(entries []chat.Entry) feedMsg { return feedMsg(entries) })
}

// requestThumbnail starts a thumbnail fetch and returns a command that
// waits for it to finish.
func requestThumbnail(ctx context.Context, client *chat.Client, image timeline.ImageRef) tea.Cmd {
	holder := client.RequestThumbnail(ctx, image)
	return func() tea.Msg {
		subscription := holder.Subscribe()
		defer subscription.Close()
		for {
			select {
			case result := <-subscription.C():
				if result.Done {
					return thumbnailMsg{uri: image.URL, result: result}
				}
			case <-ctx.Done():
				return thumbnailMsg{uri: image.URL, result: chat.ThumbnailResult{Done: true, Err: ctx.Err()}}
			}
		}
	}
}

// runOperation runs fn as a command and reports its completion.
func runOperation(operation string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return operationDoneMsg{operation: operation, err: fn()}
	}
}

func scheduleHeatTick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return heatTickMsg{}
	})
}
