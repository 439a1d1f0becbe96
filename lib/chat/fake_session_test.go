// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/lib/secret"
	"github.com/bureau-foundation/katrix/lib/testutil"
	"github.com/bureau-foundation/katrix/messaging"
)

var (
	roomA = ref.MustParseRoomID("!a:matrix.org")
	roomB = ref.MustParseRoomID("!b:matrix.org")
)

// fakeSession is an in-memory messaging.Session. Each room's history
// is a list of text messages "<room> message <n>"; pagination tokens
// are "t<index>". Optional function fields override request methods.
type fakeSession struct {
	userID ref.UserID

	sendText   func(ctx context.Context, roomID ref.RoomID, body string) (ref.EventID, error)
	createRoom func(ctx context.Context, request messaging.CreateRoomRequest) (ref.RoomID, error)
	leaveRoom  func(ctx context.Context, roomID ref.RoomID) error
	logout     func(ctx context.Context) error
	thumbnail  func(ctx context.Context, uri ref.ContentURI, width, height int) (*messaging.Media, error)

	initialLoads atomic.Int32
	syncRunning  atomic.Int32
	closed       atomic.Bool

	mu        sync.Mutex
	histories map[ref.RoomID][]messaging.Event
	names     map[ref.RoomID]*reactive.Holder[string]
	members   map[ref.RoomID]*reactive.Holder[map[ref.UserID]messaging.UserInfo]
	latest    map[ref.RoomID]*reactive.Holder[messaging.Event]
	rooms     *reactive.Holder[[]ref.RoomID]
}

func newFakeSession(historyLength int, roomIDs ...ref.RoomID) *fakeSession {
	session := &fakeSession{
		userID:    ref.MustParseUserID("@alice:matrix.org"),
		histories: make(map[ref.RoomID][]messaging.Event),
		names:     make(map[ref.RoomID]*reactive.Holder[string]),
		members:   make(map[ref.RoomID]*reactive.Holder[map[ref.UserID]messaging.UserInfo]),
		latest:    make(map[ref.RoomID]*reactive.Holder[messaging.Event]),
		rooms:     reactive.NewHolder(roomIDs),
	}
	for _, roomID := range roomIDs {
		history := make([]messaging.Event, historyLength)
		for index := range history {
			history[index] = messaging.Event{
				EventID:   ref.MustParseEventID(fmt.Sprintf("$%s-%d:matrix.org", localpart(roomID), index)),
				Type:      messaging.EventTypeMessage,
				Sender:    session.userID,
				Timestamp: time.UnixMilli(int64(index) * 1000),
				RoomID:    roomID,
				Content:   json.RawMessage(fmt.Sprintf(`{"msgtype":"m.text","body":"%s message %d"}`, localpart(roomID), index)),
			}
		}
		session.histories[roomID] = history
		if historyLength > 0 {
			session.LatestEvent(roomID).Set(history[historyLength-1])
		}
	}
	return session
}

func localpart(roomID ref.RoomID) string {
	local, _, _ := strings.Cut(strings.TrimPrefix(roomID.String(), "!"), ":")
	return local
}

func (f *fakeSession) UserID() ref.UserID { return f.userID }

func (f *fakeSession) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeSession) Logout(ctx context.Context) error {
	if f.logout != nil {
		return f.logout(ctx)
	}
	return nil
}

func (f *fakeSession) Sync(ctx context.Context) error {
	f.syncRunning.Add(1)
	defer f.syncRunning.Add(-1)
	<-ctx.Done()
	return nil
}

func (f *fakeSession) JoinedRooms(context.Context) ([]ref.RoomID, error) {
	return f.rooms.Get(), nil
}

func (f *fakeSession) CreateRoom(ctx context.Context, request messaging.CreateRoomRequest) (ref.RoomID, error) {
	if f.createRoom != nil {
		return f.createRoom(ctx, request)
	}
	return ref.MustParseRoomID("!created:matrix.org"), nil
}

func (f *fakeSession) LeaveRoom(ctx context.Context, roomID ref.RoomID) error {
	if f.leaveRoom != nil {
		return f.leaveRoom(ctx, roomID)
	}
	return nil
}

func (f *fakeSession) SendText(ctx context.Context, roomID ref.RoomID, body string) (ref.EventID, error) {
	if f.sendText != nil {
		return f.sendText(ctx, roomID, body)
	}
	return ref.MustParseEventID("$sent:matrix.org"), nil
}

func (f *fakeSession) RoomMessages(_ context.Context, roomID ref.RoomID, options messaging.RoomMessagesOptions) (*messaging.RoomMessagesResponse, error) {
	f.mu.Lock()
	history := f.histories[roomID]
	f.mu.Unlock()

	position := len(history)
	if options.From == "" {
		f.initialLoads.Add(1)
	} else {
		parsed, err := strconv.Atoi(strings.TrimPrefix(options.From, "t"))
		if err != nil {
			return nil, fmt.Errorf("bad token %q", options.From)
		}
		position = parsed
	}

	response := &messaging.RoomMessagesResponse{Start: fmt.Sprintf("t%d", position)}
	if options.Direction == messaging.DirectionForward {
		end := min(len(history), position+options.Limit)
		response.Chunk = append(response.Chunk, history[position:end]...)
		response.End = fmt.Sprintf("t%d", end)
		return response, nil
	}
	start := max(0, position-options.Limit)
	for index := position - 1; index >= start; index-- {
		response.Chunk = append(response.Chunk, history[index])
	}
	if start > 0 {
		response.End = fmt.Sprintf("t%d", start)
	}
	return response, nil
}

func (f *fakeSession) Thumbnail(ctx context.Context, uri ref.ContentURI, width, height int) (*messaging.Media, error) {
	if f.thumbnail != nil {
		return f.thumbnail(ctx, uri, width, height)
	}
	return nil, fmt.Errorf("no thumbnail for %s", uri)
}

func (f *fakeSession) Rooms() *reactive.Holder[[]ref.RoomID] { return f.rooms }

func (f *fakeSession) RoomName(roomID ref.RoomID) *reactive.Holder[string] {
	f.mu.Lock()
	defer f.mu.Unlock()
	holder, ok := f.names[roomID]
	if !ok {
		holder = reactive.NewHolder("")
		f.names[roomID] = holder
	}
	return holder
}

func (f *fakeSession) RoomMembers(roomID ref.RoomID) *reactive.Holder[map[ref.UserID]messaging.UserInfo] {
	f.mu.Lock()
	defer f.mu.Unlock()
	holder, ok := f.members[roomID]
	if !ok {
		holder = reactive.NewHolder(map[ref.UserID]messaging.UserInfo{})
		f.members[roomID] = holder
	}
	return holder
}

func (f *fakeSession) LatestEvent(roomID ref.RoomID) *reactive.Holder[messaging.Event] {
	f.mu.Lock()
	defer f.mu.Unlock()
	holder, ok := f.latest[roomID]
	if !ok {
		holder = reactive.NewHolder(messaging.Event{})
		f.latest[roomID] = holder
	}
	return holder
}

var _ messaging.Session = (*fakeSession)(nil)

// connectTo returns a ConnectFunc handing out the given sessions in
// order, one per login.
func connectTo(sessions ...*fakeSession) ConnectFunc {
	var mu sync.Mutex
	return func(context.Context, string, string, *secret.Buffer) (messaging.Session, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(sessions) == 0 {
			return nil, fmt.Errorf("no more sessions")
		}
		next := sessions[0]
		sessions = sessions[1:]
		return next, nil
	}
}

// testPassword returns a throwaway password buffer.
func testPassword(t *testing.T) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromBytes([]byte("hunter2"))
	if err != nil {
		t.Fatalf("creating password buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

// newLoggedInClient returns a Client logged in to session.
func newLoggedInClient(t *testing.T, session *fakeSession) *Client {
	t.Helper()
	client, err := NewClient(Config{Connect: connectTo(session)})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	if err := client.Login(context.Background(), "https://matrix.org", "alice", testPassword(t)); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return client
}

// awaitView waits until the active room view satisfies predicate.
func awaitView(t *testing.T, client *Client, predicate func(ActiveRoomView) bool) ActiveRoomView {
	t.Helper()
	subscription := client.ActiveRoom().Subscribe()
	defer subscription.Close()
	for {
		view := testutil.RequireReceive(t, subscription.C(), 5*time.Second, "waiting for active room view")
		if predicate(view) {
			return view
		}
	}
}

// feedMessages returns the messages currently in the feed.
func feedMessages(client *Client) []string {
	entries := client.Feed().Entries().Get()
	messages := make([]string, len(entries))
	for i, entry := range entries {
		messages[i] = entry.Message
	}
	return messages
}
