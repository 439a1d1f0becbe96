// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the chat TUI.
type KeyMap struct {
	// Navigation in the room list, scrolling in the timeline.
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	// FocusNext cycles rooms, input and timeline.
	FocusNext key.Binding

	// Select opens the highlighted room, or sends the input line.
	Select key.Binding

	// Pagination of the active room.
	LoadOlder key.Binding
	LoadNewer key.Binding

	// Session and room management.
	Login     key.Binding // Log in, or log out when logged in.
	AddRoom   key.Binding
	LeaveRoom key.Binding

	// Room list filter.
	FilterActivate key.Binding
	FilterClear    key.Binding

	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup", "ctrl+u"),
		key.WithHelp("PgUp", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown", "ctrl+f"),
		key.WithHelp("PgDn", "page down"),
	),
	FocusNext: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "switch pane"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "open/send"),
	),
	LoadOlder: key.NewBinding(
		key.WithKeys("ctrl+o"),
		key.WithHelp("C-o", "older"),
	),
	LoadNewer: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("C-n", "newer"),
	),
	Login: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("C-l", "log in/out"),
	),
	AddRoom: key.NewBinding(
		key.WithKeys("ctrl+a"),
		key.WithHelp("C-a", "add room"),
	),
	LeaveRoom: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("C-d", "leave"),
	),
	FilterActivate: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	FilterClear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "clear filter"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
	ForceQuit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
}
