// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/katrix/lib/chat"
	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/lib/secret"
	"github.com/bureau-foundation/katrix/lib/testutil"
	"github.com/bureau-foundation/katrix/messaging"
)

var (
	roomGeneral = ref.MustParseRoomID("!general:matrix.org")
	roomRandom  = ref.MustParseRoomID("!random:matrix.org")
)

// stubSession is an in-memory messaging.Session holding a short text
// history per room. Every history fits in one initial batch.
type stubSession struct {
	userID ref.UserID
	rooms  *reactive.Holder[[]ref.RoomID]

	mu        sync.Mutex
	histories map[ref.RoomID][]messaging.Event
	names     map[ref.RoomID]*reactive.Holder[string]
	sent      []string
	created   []string
	left      []ref.RoomID
	loggedOut bool
}

func newStubSession(names map[ref.RoomID]string) *stubSession {
	session := &stubSession{
		userID:    ref.MustParseUserID("@alice:matrix.org"),
		histories: make(map[ref.RoomID][]messaging.Event),
		names:     make(map[ref.RoomID]*reactive.Holder[string]),
	}
	var roomIDs []ref.RoomID
	for roomID, name := range names {
		roomIDs = append(roomIDs, roomID)
		session.names[roomID] = reactive.NewHolder(name)
		local, _, _ := strings.Cut(strings.TrimPrefix(roomID.String(), "!"), ":")
		history := make([]messaging.Event, 3)
		for index := range history {
			history[index] = messaging.Event{
				EventID:   ref.MustParseEventID(fmt.Sprintf("$%s-%d:matrix.org", local, index)),
				Type:      messaging.EventTypeMessage,
				Sender:    session.userID,
				Timestamp: time.UnixMilli(int64(index) * 1000),
				RoomID:    roomID,
				Content:   json.RawMessage(fmt.Sprintf(`{"msgtype":"m.text","body":"%s message %d"}`, local, index)),
			}
		}
		session.histories[roomID] = history
	}
	session.rooms = reactive.NewHolder(roomIDs)
	return session
}

func (s *stubSession) UserID() ref.UserID { return s.userID }
func (s *stubSession) Close() error       { return nil }

func (s *stubSession) Logout(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedOut = true
	return nil
}

func (s *stubSession) Sync(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *stubSession) JoinedRooms(context.Context) ([]ref.RoomID, error) {
	return s.rooms.Get(), nil
}

func (s *stubSession) CreateRoom(_ context.Context, request messaging.CreateRoomRequest) (ref.RoomID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, request.Name)
	return ref.MustParseRoomID("!created:matrix.org"), nil
}

func (s *stubSession) LeaveRoom(_ context.Context, roomID ref.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = append(s.left, roomID)
	return nil
}

func (s *stubSession) SendText(_ context.Context, _ ref.RoomID, body string) (ref.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, body)
	return ref.MustParseEventID("$sent:matrix.org"), nil
}

// RoomMessages returns the whole history for any backward request,
// newest first, with no further pages.
func (s *stubSession) RoomMessages(_ context.Context, roomID ref.RoomID, options messaging.RoomMessagesOptions) (*messaging.RoomMessagesResponse, error) {
	s.mu.Lock()
	history := s.histories[roomID]
	s.mu.Unlock()
	response := &messaging.RoomMessagesResponse{Start: "t0"}
	if options.Direction == messaging.DirectionForward {
		return response, nil
	}
	for index := len(history) - 1; index >= 0; index-- {
		response.Chunk = append(response.Chunk, history[index])
	}
	return response, nil
}

func (s *stubSession) Thumbnail(context.Context, ref.ContentURI, int, int) (*messaging.Media, error) {
	return nil, fmt.Errorf("no media")
}

func (s *stubSession) Rooms() *reactive.Holder[[]ref.RoomID] { return s.rooms }

func (s *stubSession) RoomName(roomID ref.RoomID) *reactive.Holder[string] {
	s.mu.Lock()
	defer s.mu.Unlock()
	holder, ok := s.names[roomID]
	if !ok {
		holder = reactive.NewHolder("")
		s.names[roomID] = holder
	}
	return holder
}

func (s *stubSession) RoomMembers(ref.RoomID) *reactive.Holder[map[ref.UserID]messaging.UserInfo] {
	return reactive.NewHolder(map[ref.UserID]messaging.UserInfo{
		s.userID: {DisplayName: "Alice"},
	})
}

func (s *stubSession) LatestEvent(roomID ref.RoomID) *reactive.Holder[messaging.Event] {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.histories[roomID]
	if len(history) == 0 {
		return reactive.NewHolder(messaging.Event{})
	}
	return reactive.NewHolder(history[len(history)-1])
}

var _ messaging.Session = (*stubSession)(nil)

// testHarness bundles a Model with the client and session behind it.
type testHarness struct {
	t        *testing.T
	model    Model
	client   *chat.Client
	session  *stubSession
	password string // Last password the connect function saw.
}

func newTestHarness(t *testing.T, options Options) *testHarness {
	t.Helper()
	harness := &testHarness{
		t: t,
		session: newStubSession(map[ref.RoomID]string{
			roomGeneral: "General",
			roomRandom:  "Random",
		}),
	}
	connect := func(_ context.Context, _, _ string, password *secret.Buffer) (messaging.Session, error) {
		harness.password = password.String()
		return harness.session, nil
	}
	client, err := chat.NewClient(chat.Config{Connect: connect})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	harness.client = client

	options.Profile = termenv.Ascii
	if options.Homeserver == "" {
		options.Homeserver = "https://matrix.org"
	}
	if options.Username == "" {
		options.Username = "alice"
	}
	harness.model = New(client, options)
	t.Cleanup(func() {
		harness.model.Close()
		client.Close()
	})

	harness.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return harness
}

// send routes one message through Update and returns the command.
func (h *testHarness) send(message tea.Msg) tea.Cmd {
	h.t.Helper()
	next, command := h.model.Update(message)
	h.model = next.(Model)
	return command
}

func (h *testHarness) typeText(text string) tea.Cmd {
	return h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func (h *testHarness) press(keyType tea.KeyType) tea.Cmd {
	return h.send(tea.KeyMsg{Type: keyType})
}

// run executes an operation command and returns its completion.
func (h *testHarness) run(command tea.Cmd) operationDoneMsg {
	h.t.Helper()
	if command == nil {
		h.t.Fatal("expected a command")
	}
	done, ok := command().(operationDoneMsg)
	if !ok {
		h.t.Fatal("command did not report an operation")
	}
	return done
}

// login logs the client in and feeds the resulting room list into the
// model.
func (h *testHarness) login() {
	h.t.Helper()
	password, err := secret.NewFromBytes([]byte("hunter2"))
	if err != nil {
		h.t.Fatalf("creating password: %v", err)
	}
	defer password.Close()
	if err := h.client.Login(context.Background(), "https://matrix.org", "alice", password); err != nil {
		h.t.Fatalf("Login: %v", err)
	}

	subscription := h.client.Rooms().Subscribe()
	defer subscription.Close()
	for {
		rooms := testutil.RequireReceive(h.t, subscription.C(), 5*time.Second, "waiting for room names")
		named := 0
		for _, room := range rooms {
			if room.Name != "" {
				named++
			}
		}
		if len(rooms) == 2 && named == 2 {
			h.send(roomsMsg(rooms))
			break
		}
	}
	h.send(usernameMsg(h.client.Username().Get()))
}

// selectRoom activates roomID and feeds its loaded view into the
// model.
func (h *testHarness) selectRoom(roomID ref.RoomID) chat.ActiveRoomView {
	h.t.Helper()
	subscription := h.client.ActiveRoom().Subscribe()
	defer subscription.Close()
	if err := h.client.SetActiveRoom(roomID); err != nil {
		h.t.Fatalf("SetActiveRoom: %v", err)
	}
	for {
		view := testutil.RequireReceive(h.t, subscription.C(), 5*time.Second, "waiting for room state")
		if view.RoomID == roomID && !view.Loading && len(view.State.Messages) > 0 {
			h.send(activeRoomMsg(view))
			return view
		}
	}
}

// latestFeed returns the newest feed message.
func (h *testHarness) latestFeed() string {
	entry, _ := h.client.Feed().Latest()
	return entry.Message
}
