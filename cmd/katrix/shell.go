// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/bureau-foundation/katrix/lib/chat"
	"github.com/bureau-foundation/katrix/lib/config"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/lib/secret"
	"github.com/bureau-foundation/katrix/lib/timeline"
)

const shellHelp = `Commands:
  /login [homeserver] [username]  log in (prompts for the password)
  /logout                         log out
  /rooms                          list joined rooms
  /join <number|room ID>          open a room (again to close it)
  /older, /newer                  page the open room
  /create <name>                  create a public room
  /leave                          leave the open room
  /quit                           exit
Any other line is sent to the open room. Start it with // to send a
line beginning with /.`

// runShell runs the line-oriented front end. Notifications and
// messages of the open room are printed as they arrive. A non-nil
// password logs in before the first prompt.
func runShell(ctx context.Context, cfg *config.Config, password *secret.Buffer, fileHandler slog.Handler, sdkLogger *zerolog.Logger) error {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("/login"),
		readline.PcItem("/logout"),
		readline.PcItem("/rooms"),
		readline.PcItem("/join"),
		readline.PcItem("/older"),
		readline.PcItem("/newer"),
		readline.PcItem("/create"),
		readline.PcItem("/leave"),
		readline.PcItem("/help"),
		readline.PcItem("/quit"),
	)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          roomPrompt(""),
		HistoryFile:     filepath.Join(cfg.StateDir, "history"),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("starting line editor: %w", err)
	}
	defer rl.Close()

	logger := slog.New(fanoutHandler{stderrHandler(rl.Stderr(), os.Stderr), fileHandler})
	client, closeClient, err := newChatClient(ctx, cfg, logger, sdkLogger)
	if err != nil {
		return err
	}
	defer closeClient()

	sh := &shell{
		client:     client,
		out:        rl.Stdout(),
		homeserver: cfg.Homeserver,
		username:   cfg.Username,
		readPassword: func() (*secret.Buffer, error) {
			data, err := rl.ReadPassword("Password: ")
			if err != nil {
				return nil, err
			}
			return secret.NewFromBytes(data)
		},
	}
	fmt.Fprintln(sh.out, "Type /help for commands.")

	watchCtx, cancelWatch := context.WithCancel(ctx)
	var watchers sync.WaitGroup
	watchers.Add(2)
	go func() {
		defer watchers.Done()
		watchFeed(watchCtx, client, sh.out)
	}()
	go func() {
		defer watchers.Done()
		watchTimeline(watchCtx, client, sh.out, rl.SetPrompt)
	}()
	defer func() {
		cancelWatch()
		watchers.Wait()
	}()

	if password != nil {
		_ = client.Login(ctx, cfg.Homeserver, cfg.Username, password)
	}

	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			return nil
		}
		if sh.execute(ctx, line) {
			return nil
		}
	}
	return nil
}

// stderrHandler logs warnings to w: as text when stderr is a terminal,
// as JSON otherwise.
func stderrHandler(w io.Writer, stderr *os.File) slog.Handler {
	options := &slog.HandlerOptions{Level: slog.LevelWarn}
	if term.IsTerminal(int(stderr.Fd())) {
		return slog.NewTextHandler(w, options)
	}
	return slog.NewJSONHandler(w, options)
}

// shell executes REPL lines against a chat client.
type shell struct {
	client     *chat.Client
	out        io.Writer
	homeserver string
	username   string

	readPassword func() (*secret.Buffer, error)
}

// parseLine splits a line into a command name and its argument. Lines
// that are not commands have an empty name and are returned whole;
// a leading "//" escapes a literal slash.
func parseLine(line string) (name, argument string) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "//") {
		return "", line[1:]
	}
	if !strings.HasPrefix(line, "/") {
		return "", line
	}
	name, argument, _ = strings.Cut(line[1:], " ")
	return strings.ToLower(name), strings.TrimSpace(argument)
}

// execute runs one line. Returns true when the shell should exit.
// Operation failures are reported through the feed.
func (s *shell) execute(ctx context.Context, line string) bool {
	name, argument := parseLine(line)
	switch name {
	case "":
		if argument == "" {
			return false
		}
		view := s.client.ActiveRoom().Get()
		if !view.Active() {
			s.client.Feed().Error("Select a room first!")
			return false
		}
		_ = s.client.Send(ctx, view.RoomID, argument)

	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)

	case "login":
		s.login(ctx, strings.Fields(argument))

	case "logout":
		_ = s.client.Logout(ctx)

	case "rooms":
		s.listRooms()

	case "join", "j":
		roomID, err := s.resolveRoom(argument)
		if err != nil {
			fmt.Fprintln(s.out, err)
			return false
		}
		_ = s.client.SetActiveRoom(roomID)

	case "older":
		s.client.LoadOlder(ctx)

	case "newer":
		s.client.LoadNewer(ctx)

	case "create":
		if argument == "" {
			fmt.Fprintln(s.out, "usage: /create <name>")
			return false
		}
		_, _ = s.client.CreateRoom(ctx, argument)

	case "leave":
		view := s.client.ActiveRoom().Get()
		if !view.Active() {
			s.client.Feed().Error("Select a room first!")
			return false
		}
		_ = s.client.LeaveRoom(ctx, view.RoomID)

	case "quit", "q", "exit":
		return true

	default:
		fmt.Fprintf(s.out, "unknown command /%s (try /help)\n", name)
	}
	return false
}

func (s *shell) login(ctx context.Context, fields []string) {
	if len(fields) > 0 {
		s.homeserver = fields[0]
	}
	if len(fields) > 1 {
		s.username = fields[1]
	}
	if s.homeserver == "" || s.username == "" {
		fmt.Fprintln(s.out, "usage: /login <homeserver> <username>")
		return
	}
	password, err := s.readPassword()
	if err != nil {
		fmt.Fprintf(s.out, "reading password: %v\n", err)
		return
	}
	defer password.Close()
	_ = s.client.Login(ctx, s.homeserver, s.username, password)
}

func (s *shell) listRooms() {
	rooms := s.client.Rooms().Get()
	if len(rooms) == 0 {
		fmt.Fprintln(s.out, "No rooms")
		return
	}
	active := s.client.ActiveRoom().Get().RoomID
	for index, room := range rooms {
		marker := " "
		if room.ID == active {
			marker = "*"
		}
		fmt.Fprintf(s.out, "%s %2d  %s  (%s)\n", marker, index+1, room.DisplayName(), room.ID)
	}
}

// resolveRoom accepts a 1-based index into the room list or a room ID.
func (s *shell) resolveRoom(argument string) (ref.RoomID, error) {
	if argument == "" {
		return ref.RoomID{}, fmt.Errorf("usage: /join <number|room ID>")
	}
	if strings.HasPrefix(argument, "!") {
		return ref.ParseRoomID(argument)
	}
	index, err := strconv.Atoi(argument)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("not a room number or ID: %q", argument)
	}
	rooms := s.client.Rooms().Get()
	if index < 1 || index > len(rooms) {
		return ref.RoomID{}, fmt.Errorf("no room %d (see /rooms)", index)
	}
	return rooms[index-1].ID, nil
}

// watchFeed prints feed entries as they are posted.
func watchFeed(ctx context.Context, client *chat.Client, out io.Writer) {
	subscription := client.Feed().Entries().Subscribe()
	defer subscription.Close()
	var previous []chat.Entry
	for {
		select {
		case <-ctx.Done():
			return
		case entries, ok := <-subscription.C():
			if !ok {
				return
			}
			for _, entry := range newEntries(previous, entries) {
				prefix := "--"
				if entry.Level == chat.LevelError {
					prefix = "!!"
				}
				fmt.Fprintf(out, "%s %s %s\n", entry.Time.Local().Format("15:04:05"), prefix, entry.Message)
			}
			previous = entries
		}
	}
}

// newEntries returns the entries of current posted after previous was
// taken. The feed is bounded, so previous may have lost its head.
func newEntries(previous, current []chat.Entry) []chat.Entry {
	if len(previous) == 0 {
		return current
	}
	last := previous[len(previous)-1]
	for index := len(current) - 1; index >= 0; index-- {
		if current[index] == last {
			return current[index+1:]
		}
	}
	return current
}

// watchTimeline prints the open room's messages as they load and keeps
// the prompt naming the open room.
func watchTimeline(ctx context.Context, client *chat.Client, out io.Writer, setPrompt func(string)) {
	subscription := client.ActiveRoom().Subscribe()
	defer subscription.Close()
	printer := &timelinePrinter{}
	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-subscription.C():
			if !ok {
				return
			}
			for _, line := range printer.update(view) {
				fmt.Fprintln(out, line)
			}
			name := ""
			if view.Active() && !view.Loading {
				name = view.State.DisplayName()
			}
			setPrompt(roomPrompt(name))
		}
	}
}

func roomPrompt(name string) string {
	if name == "" {
		return "[no room]> "
	}
	return fmt.Sprintf("[%s]> ", name)
}

// timelinePrinter turns successive active room views into the lines
// not printed yet. Older messages paged in after the first view are
// printed too, under a marker.
type timelinePrinter struct {
	roomID  ref.RoomID
	printed map[ref.EventID]struct{}
}

func (p *timelinePrinter) update(view chat.ActiveRoomView) []string {
	if !view.Active() {
		if !p.roomID.IsZero() {
			p.roomID = ref.RoomID{}
			return []string{"(no room open)"}
		}
		return nil
	}
	if view.Loading {
		return nil
	}

	var lines []string
	if view.RoomID != p.roomID {
		p.roomID = view.RoomID
		p.printed = make(map[ref.EventID]struct{})
		lines = append(lines, fmt.Sprintf("── %s ──", view.State.DisplayName()))
	}

	var olderMarked bool
	newestPrinted := -1
	for index, message := range view.State.Messages {
		if _, done := p.printed[message.EventID]; done {
			newestPrinted = index
		}
	}
	for index, message := range view.State.Messages {
		if _, done := p.printed[message.EventID]; done {
			continue
		}
		if index < newestPrinted && !olderMarked {
			lines = append(lines, "(older)")
			olderMarked = true
		}
		p.printed[message.EventID] = struct{}{}
		lines = append(lines, formatMessage(view.State, message))
	}
	return lines
}

// formatMessage renders a message as one "15:04 <sender> body" entry.
// Continuation lines of the body are indented.
func formatMessage(state timeline.RoomViewState, message timeline.DisplayMessage) string {
	name := state.Users[message.Sender].Name(message.Sender)
	timestamp := message.Timestamp.Local().Format("15:04")
	body := message.Body
	if message.Image != nil {
		body = fmt.Sprintf("[image: %s]", message.Image.Name)
	}
	body = strings.ReplaceAll(body, "\n", "\n      ")
	if message.Emote {
		return fmt.Sprintf("%s * %s %s", timestamp, name, body)
	}
	return fmt.Sprintf("%s <%s> %s", timestamp, name, body)
}
