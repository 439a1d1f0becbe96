// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// DialogOutcome is the result of routing a key to a Dialog.
type DialogOutcome int

const (
	// DialogPending means the dialog is still open.
	DialogPending DialogOutcome = iota
	// DialogSubmitted means the user confirmed.
	DialogSubmitted
	// DialogCancelled means the user dismissed the dialog.
	DialogCancelled
)

// Dialog is a modal form rendered as a centered overlay. A dialog
// without fields is a yes/no confirmation.
type Dialog struct {
	Title   string
	Message string

	fields []dialogField
	focus  int
	theme  Theme
}

type dialogField struct {
	label string
	input textinput.Model
}

// Dialog chrome: 2 columns border + 2 columns padding.
const (
	dialogChromeWidth = 4
	dialogInnerWidth  = 44
)

// NewDialog creates an empty dialog.
func NewDialog(title string, theme Theme) *Dialog {
	return &Dialog{Title: title, theme: theme}
}

// AddField appends a text field. A masked field echoes bullets.
func (dialog *Dialog) AddField(label, placeholder, value string, masked bool) {
	input := textinput.New()
	input.Placeholder = placeholder
	input.SetValue(value)
	input.Prompt = ""
	input.Width = dialogInnerWidth - ansi.StringWidth(label) - 3
	if masked {
		input.EchoMode = textinput.EchoPassword
		input.EchoCharacter = '•'
	}
	if len(dialog.fields) == 0 {
		input.Focus()
	}
	dialog.fields = append(dialog.fields, dialogField{label: label, input: input})
}

// Value returns the text of field index.
func (dialog *Dialog) Value(index int) string {
	if index < 0 || index >= len(dialog.fields) {
		return ""
	}
	return dialog.fields[index].input.Value()
}

// FocusField moves keyboard focus to field index.
func (dialog *Dialog) FocusField(index int) tea.Cmd {
	if index < 0 || index >= len(dialog.fields) {
		return nil
	}
	dialog.fields[dialog.focus].input.Blur()
	dialog.focus = index
	return dialog.fields[index].input.Focus()
}

// Update routes a key press. Enter advances through the fields and
// submits on the last one; tab and shift+tab cycle; esc cancels.
// Confirmations also accept y and n.
func (dialog *Dialog) Update(message tea.KeyMsg) (DialogOutcome, tea.Cmd) {
	if len(dialog.fields) == 0 {
		switch message.String() {
		case "enter", "y", "Y":
			return DialogSubmitted, nil
		case "esc", "n", "N", "q":
			return DialogCancelled, nil
		}
		return DialogPending, nil
	}

	switch message.String() {
	case "esc":
		return DialogCancelled, nil
	case "enter":
		if dialog.focus == len(dialog.fields)-1 {
			return DialogSubmitted, nil
		}
		return DialogPending, dialog.FocusField(dialog.focus + 1)
	case "tab", "down":
		return DialogPending, dialog.FocusField((dialog.focus + 1) % len(dialog.fields))
	case "shift+tab", "up":
		return DialogPending, dialog.FocusField((dialog.focus + len(dialog.fields) - 1) % len(dialog.fields))
	}

	var command tea.Cmd
	dialog.fields[dialog.focus].input, command = dialog.fields[dialog.focus].input.Update(message)
	return DialogPending, command
}

// Render draws the bordered dialog box for a screen of the given
// width. Place it with Overlay.
func (dialog *Dialog) Render(screenWidth int) string {
	innerWidth := min(dialogInnerWidth, max(screenWidth-dialogChromeWidth, 10))

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(dialog.theme.HeaderForeground)
	labelStyle := lipgloss.NewStyle().Foreground(dialog.theme.FaintText)
	focusedLabelStyle := lipgloss.NewStyle().Foreground(dialog.theme.FocusColor)
	footerStyle := lipgloss.NewStyle().Foreground(dialog.theme.HelpText)

	lines := []string{titleStyle.Render(dialog.Title)}
	if dialog.Message != "" {
		lines = append(lines, "")
		lines = append(lines, strings.Split(ansi.Wrap(dialog.Message, innerWidth, " "), "\n")...)
	}
	if len(dialog.fields) > 0 {
		lines = append(lines, "")
	}
	for index, field := range dialog.fields {
		style := labelStyle
		if index == dialog.focus {
			style = focusedLabelStyle
		}
		lines = append(lines, style.Render(field.label+": ")+field.input.View())
	}
	lines = append(lines, "")
	if len(dialog.fields) == 0 {
		lines = append(lines, footerStyle.Render("Enter/y confirm  Esc/n cancel"))
	} else {
		lines = append(lines, footerStyle.Render("Enter next/submit  Tab switch  Esc cancel"))
	}

	for index, line := range lines {
		lines[index] = ansi.Truncate(line, innerWidth, "…")
	}

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dialog.theme.FocusColor).
		Padding(0, 1).
		Width(innerWidth + 2)
	return borderStyle.Render(strings.Join(lines, "\n"))
}
