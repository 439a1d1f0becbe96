// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/lib/testutil"
	"github.com/bureau-foundation/katrix/messaging"
)

var testRoom = ref.MustParseRoomID("!room:matrix.org")

// fakeSource serves a room history of text messages. Pagination
// tokens are "t<index>", the boundary between events[index-1] and
// events[index].
type fakeSource struct {
	mu     sync.Mutex
	events []messaging.Event
	fail   int // number of upcoming RoomMessages calls to fail

	// gate, when non-nil, must be sent on once per RoomMessages call
	// before it returns.
	gate chan struct{}

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	name    *reactive.Holder[string]
	members *reactive.Holder[map[ref.UserID]messaging.UserInfo]
	latest  *reactive.Holder[messaging.Event]
}

func newFakeSource(count int) *fakeSource {
	source := &fakeSource{
		name:    reactive.NewHolder("Lobby"),
		members: reactive.NewHolder(map[ref.UserID]messaging.UserInfo{}),
		latest:  reactive.NewHolder(messaging.Event{}),
	}
	source.append(count)
	return source
}

// append adds count messages to the end of the history and moves the
// latest-event holder to the last of them.
func (f *fakeSource) append(count int) {
	f.mu.Lock()
	for range count {
		index := len(f.events)
		f.events = append(f.events, messaging.Event{
			EventID:   ref.MustParseEventID(fmt.Sprintf("$e%d:matrix.org", index)),
			Type:      messaging.EventTypeMessage,
			Sender:    ref.MustParseUserID("@alice:matrix.org"),
			Timestamp: time.UnixMilli(int64(index) * 1000),
			Content:   json.RawMessage(fmt.Sprintf(`{"msgtype":"m.text","body":"message %d"}`, index)),
		})
	}
	var last messaging.Event
	if len(f.events) > 0 {
		last = f.events[len(f.events)-1]
	}
	f.mu.Unlock()
	if !last.EventID.IsZero() {
		f.latest.Set(last)
	}
}

func (f *fakeSource) RoomMessages(ctx context.Context, roomID ref.RoomID, options messaging.RoomMessagesOptions) (*messaging.RoomMessagesResponse, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxInFlight.Load()
		if current <= seen || f.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("homeserver unavailable")
	}

	position := len(f.events)
	if options.From != "" {
		parsed, err := strconv.Atoi(strings.TrimPrefix(options.From, "t"))
		if err != nil {
			return nil, fmt.Errorf("bad token %q", options.From)
		}
		position = parsed
	}
	limit := options.Limit
	if limit <= 0 {
		limit = 10
	}

	response := &messaging.RoomMessagesResponse{Start: fmt.Sprintf("t%d", position)}
	if options.Direction == messaging.DirectionForward {
		end := min(len(f.events), position+limit)
		response.Chunk = append(response.Chunk, f.events[position:end]...)
		response.End = fmt.Sprintf("t%d", end)
		return response, nil
	}
	start := max(0, position-limit)
	for index := position - 1; index >= start; index-- {
		response.Chunk = append(response.Chunk, f.events[index])
	}
	if start > 0 {
		response.End = fmt.Sprintf("t%d", start)
	}
	return response, nil
}

func (f *fakeSource) RoomName(ref.RoomID) *reactive.Holder[string] { return f.name }

func (f *fakeSource) RoomMembers(ref.RoomID) *reactive.Holder[map[ref.UserID]messaging.UserInfo] {
	return f.members
}

func (f *fakeSource) LatestEvent(ref.RoomID) *reactive.Holder[messaging.Event] { return f.latest }

// awaitState waits until the stream's value satisfies predicate.
func awaitState(t *testing.T, stream *RoomStateStream, predicate func(RoomViewState) bool) RoomViewState {
	t.Helper()
	subscription := stream.Subscribe()
	defer subscription.Close()
	for {
		state := testutil.RequireReceive(t, subscription.C(), 5*time.Second, "waiting for room state")
		if predicate(state) {
			return state
		}
	}
}

func getRoomState(t *testing.T, cache *Cache, roomID ref.RoomID, batch int) *RoomStateStream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	stream, err := cache.GetRoomState(ctx, roomID, batch)
	if err != nil {
		t.Fatalf("GetRoomState: %v", err)
	}
	return stream
}

func TestGetRoomStateReusesHandle(t *testing.T) {
	source := newFakeSource(30)
	cache := NewCache(source, nil)

	first := getRoomState(t, cache, testRoom, 10)
	second := getRoomState(t, cache, testRoom, 10)

	if first.Handle() != second.Handle() {
		t.Error("second GetRoomState created a new handle")
	}
	if calls := source.calls.Load(); calls != 1 {
		t.Errorf("RoomMessages called %d times, want 1 (initial load only)", calls)
	}
	if cache.Len(context.Background()) != 1 {
		t.Errorf("cache holds %d handles, want 1", cache.Len(context.Background()))
	}
}

func TestGetRoomStateConcurrentCreation(t *testing.T) {
	source := newFakeSource(30)
	cache := NewCache(source, nil)

	const callers = 8
	handles := make([]*Handle, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream, err := cache.GetRoomState(t.Context(), testRoom, 10)
			if err != nil {
				t.Errorf("GetRoomState: %v", err)
				return
			}
			handles[i] = stream.Handle()
		}()
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if handles[i] != handles[0] {
			t.Fatalf("caller %d got a different handle", i)
		}
	}
	if calls := source.calls.Load(); calls != 1 {
		t.Errorf("RoomMessages called %d times, want 1", calls)
	}
}

func TestRoomStateInitialWindow(t *testing.T) {
	source := newFakeSource(30)
	source.members.Set(map[ref.UserID]messaging.UserInfo{
		ref.MustParseUserID("@alice:matrix.org"): {DisplayName: "Alice"},
	})
	cache := NewCache(source, nil)

	state := getRoomState(t, cache, testRoom, 10).Get()
	if state.RoomID != testRoom {
		t.Errorf("RoomID = %s, want %s", state.RoomID, testRoom)
	}
	if state.Name != "Lobby" {
		t.Errorf("Name = %q, want Lobby", state.Name)
	}
	if len(state.Users) != 1 {
		t.Errorf("Users = %v, want Alice", state.Users)
	}
	if len(state.Messages) != 10 {
		t.Fatalf("got %d messages, want 10", len(state.Messages))
	}
	if state.Messages[0].Body != "message 20" || state.Messages[9].Body != "message 29" {
		t.Errorf("window = %q..%q, want message 20..message 29 (oldest first)",
			state.Messages[0].Body, state.Messages[9].Body)
	}
	if !state.CanLoadOlder {
		t.Error("CanLoadOlder = false, want true")
	}
	if state.CanLoadNewer {
		t.Error("CanLoadNewer = true at the live edge")
	}
}

func TestEmptyRoom(t *testing.T) {
	source := newFakeSource(0)
	cache := NewCache(source, nil)

	stream := getRoomState(t, cache, testRoom, 10)
	state := stream.Get()
	if len(state.Messages) != 0 {
		t.Errorf("got %d messages, want 0", len(state.Messages))
	}
	if state.CanLoadOlder || state.CanLoadNewer {
		t.Errorf("flags = older:%v newer:%v, want both false", state.CanLoadOlder, state.CanLoadNewer)
	}

	before := source.calls.Load()
	cache.LoadOlder(context.Background(), testRoom, 10)
	cache.LoadNewer(context.Background(), testRoom)
	if source.calls.Load() != before {
		t.Error("pagination on an empty room issued requests")
	}
}

func TestLoadOlderExtendsWindow(t *testing.T) {
	source := newFakeSource(25)
	cache := NewCache(source, nil)
	stream := getRoomState(t, cache, testRoom, 10)

	cache.LoadOlder(context.Background(), testRoom, 10)
	state := awaitState(t, stream, func(s RoomViewState) bool { return len(s.Messages) != 10 })
	if len(state.Messages) != 20 {
		t.Fatalf("got %d messages, want 20", len(state.Messages))
	}
	if !state.CanLoadOlder {
		t.Error("CanLoadOlder = false with 5 events left")
	}
	if state.Messages[0].Body != "message 5" {
		t.Errorf("oldest = %q, want message 5", state.Messages[0].Body)
	}

	// Only 5 remain; the boundary is reached.
	cache.LoadOlder(context.Background(), testRoom, 10)
	state = awaitState(t, stream, func(s RoomViewState) bool { return !s.CanLoadOlder })
	if len(state.Messages) != 25 {
		t.Errorf("got %d messages, want 25", len(state.Messages))
	}
	if state.Messages[0].Body != "message 0" {
		t.Errorf("oldest = %q, want message 0", state.Messages[0].Body)
	}

	// At the boundary LoadOlder is a no-op.
	before := source.calls.Load()
	cache.LoadOlder(context.Background(), testRoom, 10)
	if source.calls.Load() != before {
		t.Error("LoadOlder at the boundary issued a request")
	}
}

func TestLoadOlderWithoutHandle(t *testing.T) {
	source := newFakeSource(30)
	cache := NewCache(source, nil)

	cache.LoadOlder(context.Background(), testRoom, 10)
	cache.LoadNewer(context.Background(), testRoom)
	if source.calls.Load() != 0 {
		t.Errorf("RoomMessages called %d times for an uncached room", source.calls.Load())
	}
	if cache.Len(context.Background()) != 0 {
		t.Error("pagination created a handle")
	}
}

func TestConcurrentLoadOlderSerialized(t *testing.T) {
	source := newFakeSource(100)
	cache := NewCache(source, nil)
	stream := getRoomState(t, cache, testRoom, 10)

	source.gate = make(chan struct{})
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.LoadOlder(context.Background(), testRoom, 5)
		}()
	}
	// Each send completes only when a call is waiting at the gate;
	// the second cannot arrive until the first has finished.
	testutil.RequireSend(t, source.gate, struct{}{}, 5*time.Second, "releasing first page")
	testutil.RequireSend(t, source.gate, struct{}{}, 5*time.Second, "releasing second page")
	wg.Wait()

	if got := source.maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent RoomMessages = %d, want 1", got)
	}
	if got := stream.Handle().loadedCount(); got != 20 {
		t.Errorf("loaded %d events, want 20 (10 initial + 5 + 5)", got)
	}
	state := awaitState(t, stream, func(s RoomViewState) bool { return len(s.Messages) == 20 })
	seen := make(map[ref.EventID]bool)
	for _, message := range state.Messages {
		if seen[message.EventID] {
			t.Errorf("duplicate message %s", message.EventID)
		}
		seen[message.EventID] = true
	}
}

func TestLoadNewerCatchesUp(t *testing.T) {
	source := newFakeSource(10)
	cache := NewCache(source, nil)
	stream := getRoomState(t, cache, testRoom, 10)

	source.append(7)
	awaitState(t, stream, func(s RoomViewState) bool { return s.CanLoadNewer })

	cache.LoadNewer(context.Background(), testRoom)
	state := awaitState(t, stream, func(s RoomViewState) bool { return !s.CanLoadNewer })
	if len(state.Messages) != 17 {
		t.Fatalf("got %d messages, want 17", len(state.Messages))
	}
	if last := state.Messages[16].Body; last != "message 16" {
		t.Errorf("newest = %q, want message 16", last)
	}

	before := source.calls.Load()
	cache.LoadNewer(context.Background(), testRoom)
	if source.calls.Load() != before {
		t.Error("LoadNewer at the latest event issued a request")
	}
}

func TestLoadNewerPageLimit(t *testing.T) {
	source := newFakeSource(1)
	cache := NewCache(source, nil)
	stream := getRoomState(t, cache, testRoom, 1)

	source.append(newerPageSize*maxNewerPages + 10)
	before := source.calls.Load()
	cache.LoadNewer(context.Background(), testRoom)

	if got := source.calls.Load() - before; got != maxNewerPages {
		t.Errorf("LoadNewer issued %d requests, want %d", got, maxNewerPages)
	}
	state := awaitState(t, stream, func(s RoomViewState) bool { return len(s.Messages) > 1 })
	if !state.CanLoadNewer {
		t.Error("CanLoadNewer = false with events still unloaded")
	}
}

func TestInitialLoadFailureIsRetried(t *testing.T) {
	source := newFakeSource(30)
	source.fail = 1
	cache := NewCache(source, nil)

	first := getRoomState(t, cache, testRoom, 10)
	state := first.Get()
	if len(state.Messages) != 0 || state.CanLoadOlder {
		t.Errorf("failed load produced %d messages, CanLoadOlder=%v; want empty", len(state.Messages), state.CanLoadOlder)
	}

	second := getRoomState(t, cache, testRoom, 10)
	if second.Handle() != first.Handle() {
		t.Error("retry replaced the handle")
	}
	if got := len(second.Get().Messages); got != 10 {
		t.Errorf("after retry got %d messages, want 10", got)
	}
}

func TestLoadOlderFailureKeepsWindow(t *testing.T) {
	source := newFakeSource(30)
	cache := NewCache(source, nil)
	stream := getRoomState(t, cache, testRoom, 10)

	source.mu.Lock()
	source.fail = 1
	source.mu.Unlock()
	cache.LoadOlder(context.Background(), testRoom, 10)

	if got := stream.Handle().loadedCount(); got != 10 {
		t.Errorf("loaded %d events after failure, want 10", got)
	}
	// The token was not consumed, so the next call succeeds.
	cache.LoadOlder(context.Background(), testRoom, 10)
	if got := stream.Handle().loadedCount(); got != 20 {
		t.Errorf("loaded %d events after retry, want 20", got)
	}
}

func TestClearCreatesFreshHandle(t *testing.T) {
	source := newFakeSource(30)
	cache := NewCache(source, nil)

	before := getRoomState(t, cache, testRoom, 10)
	cache.Clear()
	if cache.Len(context.Background()) != 0 {
		t.Fatal("Clear left handles behind")
	}
	after := getRoomState(t, cache, testRoom, 10)
	if after.Handle() == before.Handle() {
		t.Error("GetRoomState after Clear returned the old handle")
	}
}

func TestRoomStateFollowsSources(t *testing.T) {
	source := newFakeSource(5)
	cache := NewCache(source, nil)
	stream := getRoomState(t, cache, testRoom, 10)

	source.name.Set("Renamed")
	state := awaitState(t, stream, func(s RoomViewState) bool { return s.Name == "Renamed" })
	if state.DisplayName() != "Renamed" {
		t.Errorf("DisplayName = %q, want Renamed", state.DisplayName())
	}

	source.name.Set("")
	state = awaitState(t, stream, func(s RoomViewState) bool { return s.Name == "" })
	if state.DisplayName() != testRoom.String() {
		t.Errorf("DisplayName = %q, want room ID fallback", state.DisplayName())
	}
}

func TestStreamStopsWithContext(t *testing.T) {
	source := newFakeSource(5)
	cache := NewCache(source, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := cache.GetRoomState(ctx, testRoom, 10)
	if err != nil {
		t.Fatalf("GetRoomState: %v", err)
	}
	cancel()
	testutil.RequireClosed(t, stream.Done(), 5*time.Second, "waiting for stream to stop")

	version := stream.Version()
	source.name.Set("ignored")
	if stream.Version() != version {
		t.Error("stream updated after its context ended")
	}
}

func TestGetRoomStateCancelledWhileWaiting(t *testing.T) {
	cache := NewCache(newFakeSource(5), nil)

	// Hold the cache lock as an in-flight pagination would.
	cache.lock <- struct{}{}
	defer cache.release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cache.GetRoomState(ctx, testRoom, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
