// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/katrix/lib/chat"
	"github.com/bureau-foundation/katrix/lib/clock"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/lib/timeline"
	"github.com/bureau-foundation/katrix/lib/tui"
)

// focusRegion identifies which pane receives keyboard input.
type focusRegion int

const (
	focusRooms focusRegion = iota
	focusInput
	focusTimeline
)

// dialogKind identifies what a submitted dialog does.
type dialogKind int

const (
	dialogLogin dialogKind = iota
	dialogAddRoom
	dialogLeaveRoom
)

// Login dialog field indices.
const (
	loginFieldHomeserver = iota
	loginFieldUsername
	loginFieldPassword
)

// Options configures a Model.
type Options struct {
	Theme   tui.Theme
	Profile termenv.Profile
	Keys    KeyMap

	// Homeserver and Username prefill the login dialog.
	Homeserver string
	Username   string

	// Clock drives the new-message highlight. Nil means the real
	// clock.
	Clock clock.Clock

	// Context bounds the network operations the model starts. Nil
	// means context.Background().
	Context context.Context
}

// Model is the bubbletea model for the chat client: a room list on the
// left, the active room's timeline and the message input on the right,
// and a notification bar at the bottom.
type Model struct {
	client   *chat.Client
	ctx      context.Context
	theme    tui.Theme
	profile  termenv.Profile
	keys     KeyMap
	clock    clock.Clock
	markdown *tui.MarkdownRenderer

	subscriptions *subscriptions

	width  int
	height int
	ready  bool
	focus  focusRegion

	homeserver string
	username   string // Prefill for the login dialog.
	loggedInAs string // Empty while logged out.

	// Room list. cursor indexes the filtered list, not rooms.
	rooms  []chat.RoomSummary
	filter *tui.Filter
	cursor int

	// Active room and its rendered timeline.
	view        chat.ActiveRoomView
	timeline    viewport.Model
	heat        *tui.HeatTracker
	thumbnails  map[ref.ContentURI]*thumbnail
	tickRunning bool

	input textinput.Model

	feed      []chat.Entry
	logRecord *logRecordMsg // Transient slog record shown over the feed.

	dialog     *tui.Dialog
	dialogKind dialogKind
}

// thumbnail is the load state of one image preview. previews caches
// rendered previews by column width.
type thumbnail struct {
	done     bool
	data     []byte
	err      error
	previews map[int]string
}

// New creates a Model observing client. The model subscribes to the
// client's holders immediately; call Close once the program exits.
func New(client *chat.Client, options Options) Model {
	if options.Keys.Quit.Keys() == nil {
		options.Keys = DefaultKeyMap
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Context == nil {
		options.Context = context.Background()
	}
	if options.Theme.NormalText == "" {
		options.Theme = tui.DarkTheme
	}

	input := textinput.New()
	input.Placeholder = "Message"
	input.Prompt = "> "

	return Model{
		client:        client,
		ctx:           options.Context,
		theme:         options.Theme,
		profile:       options.Profile,
		keys:          options.Keys,
		clock:         options.Clock,
		markdown:      tui.NewMarkdownRenderer(options.Theme, options.Profile),
		subscriptions: subscribe(client),
		homeserver:    options.Homeserver,
		username:      options.Username,
		filter:        &tui.Filter{},
		heat:          tui.NewHeatTracker(),
		thumbnails:    make(map[ref.ContentURI]*thumbnail),
		input:         input,
	}
}

// Close releases the model's subscriptions to the client.
func (model Model) Close() {
	model.subscriptions.close()
}

// Init implements tea.Model. Starts listening to the client's state
// holders; each listener re-arms itself after every delivery.
func (model Model) Init() tea.Cmd {
	return tea.Batch(
		listenRooms(model.subscriptions),
		listenActiveRoom(model.subscriptions),
		listenUsername(model.subscriptions),
		listenFeed(model.subscriptions),
	)
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.layout()
		model.refreshTimeline(false)
		return model, nil

	case tea.KeyMsg:
		return model.handleKey(message)

	case roomsMsg:
		model.rooms = message
		model.clampCursor()
		return model, listenRooms(model.subscriptions)

	case activeRoomMsg:
		command := model.applyActiveRoom(chat.ActiveRoomView(message))
		return model, tea.Batch(command, listenActiveRoom(model.subscriptions))

	case usernameMsg:
		if model.loggedInAs != string(message) {
			// Thumbnails belong to the session that fetched them.
			clear(model.thumbnails)
		}
		model.loggedInAs = string(message)
		return model, listenUsername(model.subscriptions)

	case feedMsg:
		model.feed = message
		return model, listenFeed(model.subscriptions)

	case thumbnailMsg:
		entry, ok := model.thumbnails[message.uri]
		if !ok {
			return model, nil
		}
		entry.done = true
		entry.err = message.result.Err
		if message.result.Media != nil {
			entry.data = message.result.Media.Data
		}
		model.refreshTimeline(false)
		return model, nil

	case heatTickMsg:
		model.refreshTimeline(false)
		if model.heat.HasHot(model.clock.Now()) {
			return model, scheduleHeatTick(tui.HeatTickInterval)
		}
		model.tickRunning = false
		return model, nil

	case logRecordMsg:
		model.logRecord = &message
		sequence := message.sequence
		return model, tea.Tick(logRecordFadeDelay, func(time.Time) tea.Msg {
			return logRecordFadeMsg{sequence: sequence}
		})

	case logRecordFadeMsg:
		if model.logRecord != nil && model.logRecord.sequence == message.sequence {
			model.logRecord = nil
		}
		return model, nil

	case operationDoneMsg:
		// Failures were posted to the feed by the client.
		return model, nil
	}

	if model.focus == focusInput {
		var command tea.Cmd
		model.input, command = model.input.Update(message)
		return model, command
	}
	return model, nil
}

// applyActiveRoom takes a new active room view: it re-renders the
// timeline, highlights messages that arrived since the previous view
// of the same room, and starts fetching thumbnails for new images.
func (model *Model) applyActiveRoom(view chat.ActiveRoomView) tea.Cmd {
	previous := model.view
	model.view = view

	sameRoom := previous.RoomID == view.RoomID && !previous.Loading
	if !sameRoom {
		model.heat.Reset()
		model.refreshTimeline(false)
		model.timeline.GotoBottom()
		return model.fetchThumbnails()
	}

	olderLoaded := prependedOlder(previous.State.Messages, view.State.Messages)
	var commands []tea.Cmd
	if model.igniteArrivals(previous.State.Messages, view.State.Messages) && !model.tickRunning {
		model.tickRunning = true
		commands = append(commands, scheduleHeatTick(tui.HeatTickInterval))
	}
	model.refreshTimeline(olderLoaded)
	commands = append(commands, model.fetchThumbnails())
	return tea.Batch(commands...)
}

// prependedOlder reports whether next extends previous backward.
func prependedOlder(previous, next []timeline.DisplayMessage) bool {
	if len(previous) == 0 || len(next) <= len(previous) {
		return false
	}
	return next[0].EventID != previous[0].EventID
}

// igniteArrivals marks the messages after previous's newest message as
// hot. Returns true if anything was ignited.
func (model *Model) igniteArrivals(previous, next []timeline.DisplayMessage) bool {
	if len(previous) == 0 || len(next) == 0 {
		return false
	}
	newest := previous[len(previous)-1].EventID
	if next[len(next)-1].EventID == newest {
		return false
	}
	start := len(next) - 1
	for index := len(next) - 1; index >= 0; index-- {
		if next[index].EventID == newest {
			start = index + 1
			break
		}
	}
	now := model.clock.Now()
	for _, message := range next[start:] {
		model.heat.Ignite(message.EventID.String(), now)
	}
	return true
}

// fetchThumbnails starts requests for images in the active room that
// have not been requested yet.
func (model *Model) fetchThumbnails() tea.Cmd {
	var commands []tea.Cmd
	for _, message := range model.view.State.Messages {
		if message.Image == nil {
			continue
		}
		if _, requested := model.thumbnails[message.Image.URL]; requested {
			continue
		}
		model.thumbnails[message.Image.URL] = &thumbnail{previews: make(map[int]string)}
		commands = append(commands, requestThumbnail(model.ctx, model.client, *message.Image))
	}
	return tea.Batch(commands...)
}

// handleKey routes a key press: an open dialog takes everything, then
// the global bindings, then the focused pane.
func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if model.dialog != nil {
		return model.handleDialogKeys(message)
	}
	if key.Matches(message, model.keys.ForceQuit) {
		return model, tea.Quit
	}
	if model.filter.Active {
		return model.handleFilterKeys(message)
	}

	switch {
	case key.Matches(message, model.keys.FocusNext):
		return model, model.setFocus((model.focus + 1) % 3)
	case key.Matches(message, model.keys.Login):
		return model.toggleLogin()
	case key.Matches(message, model.keys.AddRoom):
		return model.openAddRoom()
	case key.Matches(message, model.keys.LeaveRoom):
		return model.openLeaveRoom()
	case key.Matches(message, model.keys.LoadOlder):
		return model, model.loadOlder()
	case key.Matches(message, model.keys.LoadNewer):
		return model, model.loadNewer()
	}

	switch model.focus {
	case focusInput:
		return model.handleInputKeys(message)
	case focusTimeline:
		return model.handleTimelineKeys(message)
	default:
		return model.handleRoomKeys(message)
	}
}

func (model *Model) setFocus(focus focusRegion) tea.Cmd {
	model.focus = focus
	if focus == focusInput {
		return model.input.Focus()
	}
	model.input.Blur()
	return nil
}

func (model Model) handleRoomKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit
	case key.Matches(message, model.keys.Up):
		if model.cursor > 0 {
			model.cursor--
		}
	case key.Matches(message, model.keys.Down):
		if model.cursor < len(model.matches())-1 {
			model.cursor++
		}
	case key.Matches(message, model.keys.FilterActivate):
		model.filter.Active = true
	case key.Matches(message, model.keys.FilterClear):
		model.filter.Clear()
		model.clampCursor()
	case key.Matches(message, model.keys.Select):
		matches := model.matches()
		if model.cursor < len(matches) {
			// Selection is synchronous; a refusal is already in the feed.
			_ = model.client.SetActiveRoom(model.rooms[matches[model.cursor].Index].ID)
		}
	}
	return model, nil
}

// handleFilterKeys edits the room filter. Esc clears it, Enter keeps
// the query and returns to the list.
func (model Model) handleFilterKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch message.Type {
	case tea.KeyEsc:
		model.filter.Clear()
	case tea.KeyEnter:
		model.filter.Active = false
	case tea.KeyBackspace:
		if !model.filter.HandleBackspace() {
			model.filter.Active = false
		}
		model.cursor = 0
	case tea.KeyUp:
		if model.cursor > 0 {
			model.cursor--
		}
	case tea.KeyDown:
		if model.cursor < len(model.matches())-1 {
			model.cursor++
		}
	case tea.KeyRunes, tea.KeySpace:
		for _, character := range message.Runes {
			model.filter.HandleRune(character)
		}
		model.cursor = 0
	}
	model.clampCursor()
	return model, nil
}

func (model Model) handleInputKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(message, model.keys.Select) {
		return model, model.send()
	}
	var command tea.Cmd
	model.input, command = model.input.Update(message)
	return model, command
}

// send posts the input line to the active room.
func (model *Model) send() tea.Cmd {
	body := strings.TrimSpace(model.input.Value())
	if body == "" {
		return nil
	}
	if !model.view.Active() {
		model.client.Feed().Error("Select a room first!")
		return nil
	}
	model.input.SetValue("")
	client, ctx, roomID := model.client, model.ctx, model.view.RoomID
	return runOperation("send", func() error {
		return client.Send(ctx, roomID, body)
	})
}

// handleTimelineKeys scrolls the timeline. Scrolling up past the top
// pages older history in.
func (model Model) handleTimelineKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	step := 0
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit
	case key.Matches(message, model.keys.Up):
		step = -1
	case key.Matches(message, model.keys.Down):
		step = 1
	case key.Matches(message, model.keys.PageUp):
		step = -model.timeline.Height
	case key.Matches(message, model.keys.PageDown):
		step = model.timeline.Height
	default:
		return model, nil
	}
	if step < 0 && model.timeline.YOffset == 0 && model.view.State.CanLoadOlder {
		return model, model.loadOlder()
	}
	model.timeline.SetYOffset(model.timeline.YOffset + step)
	return model, nil
}

func (model *Model) loadOlder() tea.Cmd {
	if !model.view.Active() || !model.view.State.CanLoadOlder {
		return nil
	}
	client, ctx := model.client, model.ctx
	return runOperation("load older", func() error {
		client.LoadOlder(ctx)
		return nil
	})
}

func (model *Model) loadNewer() tea.Cmd {
	if !model.view.Active() || !model.view.State.CanLoadNewer {
		return nil
	}
	client, ctx := model.client, model.ctx
	return runOperation("load newer", func() error {
		client.LoadNewer(ctx)
		return nil
	})
}

// matches returns the room list filtered and ranked by the filter.
func (model Model) matches() []tui.FilterMatch {
	names := make([]string, len(model.rooms))
	for index, room := range model.rooms {
		names[index] = room.DisplayName()
	}
	return model.filter.Rank(names)
}

func (model *Model) clampCursor() {
	count := len(model.matches())
	if model.cursor >= count {
		model.cursor = count - 1
	}
	if model.cursor < 0 {
		model.cursor = 0
	}
}
