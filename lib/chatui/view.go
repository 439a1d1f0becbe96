// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/katrix/lib/chat"
	"github.com/bureau-foundation/katrix/lib/timeline"
	"github.com/bureau-foundation/katrix/lib/tui"
)

// Layout constants.
const (
	maxRoomsWidth = 30
	// Rows below the content area: notification bar and help line.
	footerHeight = 2
	// Rows of the timeline pane outside the viewport: room header,
	// separator, and input line.
	timelineChrome = 3
	// Image previews are at most this many cells.
	previewColumns = 48
	previewRows    = 12
)

func (model Model) roomsWidth() int {
	return min(maxRoomsWidth, model.width/3)
}

// timelineWidth is the width of the message viewport, excluding the
// divider and the scrollbar column.
func (model Model) timelineWidth() int {
	return max(model.width-model.roomsWidth()-2, 1)
}

func (model Model) contentHeight() int {
	return max(model.height-footerHeight, 1)
}

// layout sizes the viewport and the input after a resize.
func (model *Model) layout() {
	model.timeline.Width = model.timelineWidth()
	model.timeline.Height = max(model.contentHeight()-timelineChrome, 1)
	model.input.Width = max(model.timelineWidth()-ansi.StringWidth(model.input.Prompt)-1, 1)
}

// refreshTimeline re-renders the active room into the viewport. A
// viewport at the bottom stays there. When keepAnchor is set, older
// messages were prepended and the offset shifts by the added lines so
// the visible messages stay put.
func (model *Model) refreshTimeline(keepAnchor bool) {
	atBottom := model.timeline.AtBottom()
	previousTotal := model.timeline.TotalLineCount()
	previousOffset := model.timeline.YOffset

	model.timeline.SetContent(model.renderMessages(model.timelineWidth()))

	switch {
	case atBottom && !keepAnchor:
		model.timeline.GotoBottom()
	case keepAnchor:
		model.timeline.SetYOffset(previousOffset + model.timeline.TotalLineCount() - previousTotal)
	default:
		model.timeline.SetYOffset(previousOffset)
	}
}

// renderMessages renders the active room's timeline at width columns.
func (model Model) renderMessages(width int) string {
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	switch {
	case !model.view.Active():
		return faint.Render("No room selected")
	case model.view.Loading:
		return faint.Render("Loading...")
	}

	state := model.view.State
	var lines []string
	if state.CanLoadOlder {
		hint := fmt.Sprintf("── %s loads older messages ──", model.keys.LoadOlder.Help().Key)
		lines = append(lines, faint.Render(hint))
	}
	if len(state.Messages) == 0 {
		lines = append(lines, faint.Render("No messages"))
	}
	now := model.clock.Now()
	for _, message := range state.Messages {
		lines = append(lines, model.renderMessage(state, message, width, model.heat.Heat(message.EventID.String(), now)))
	}
	if state.CanLoadNewer {
		hint := fmt.Sprintf("── %s loads newer messages ──", model.keys.LoadNewer.Help().Key)
		lines = append(lines, faint.Render(hint))
	}
	return strings.Join(lines, "\n")
}

// renderMessage renders one message: a gutter that glows while the
// message is new, a "15:04 sender" header, and the indented body.
func (model Model) renderMessage(state timeline.RoomViewState, message timeline.DisplayMessage, width int, heat float64) string {
	gutter := " "
	if heat > 0 {
		gutter = lipgloss.NewStyle().Foreground(model.theme.HotAccent).Render("▌")
	}
	name := state.Users[message.Sender].Name(message.Sender)
	senderStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.SenderColor(message.Sender.String()))
	timeStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	bodyWidth := max(width-2, 1)
	var body string
	switch {
	case message.Emote:
		body = lipgloss.NewStyle().Italic(true).Render(
			ansi.Wrap("* "+name+" "+message.Body, bodyWidth, " "))
	case message.Image != nil:
		body = model.renderImage(*message.Image, bodyWidth)
	default:
		body = model.markdown.Render(message.Body, bodyWidth)
	}

	lines := []string{gutter + timeStyle.Render(message.Timestamp.Local().Format("15:04")) + " " + senderStyle.Render(name)}
	for _, line := range strings.Split(body, "\n") {
		lines = append(lines, gutter+" "+line)
	}
	return strings.Join(lines, "\n")
}

// renderImage renders an image label followed by its preview once the
// thumbnail has arrived. A thumbnail failure only affects this label.
func (model Model) renderImage(image timeline.ImageRef, width int) string {
	label := lipgloss.NewStyle().Foreground(model.theme.LinkForeground).
		Render(fmt.Sprintf("[image: %s]", image.Name))

	entry, ok := model.thumbnails[image.URL]
	if !ok || !entry.done {
		return label
	}
	if entry.err != nil {
		return label + lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(" (thumbnail unavailable)")
	}
	columns := min(width, previewColumns)
	preview, cached := entry.previews[columns]
	if !cached {
		rendered, err := tui.RenderImagePreview(entry.data, columns, previewRows, model.profile)
		if err != nil {
			// No preview on this terminal; the label stands alone.
			rendered = ""
		}
		entry.previews[columns] = rendered
		preview = rendered
	}
	if preview == "" {
		return label
	}
	return label + "\n" + preview
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}

	divider := lipgloss.NewStyle().Foreground(model.theme.BorderColor).
		Render(strings.TrimSuffix(strings.Repeat("│\n", model.contentHeight()), "\n"))
	content := lipgloss.JoinHorizontal(lipgloss.Top,
		model.renderRoomsPane(), divider, model.renderTimelinePane())

	output := strings.Join([]string{
		content,
		model.renderNotification(),
		model.renderHelp(),
	}, "\n")

	if model.dialog != nil {
		output = tui.Overlay(output, model.dialog.Render(model.width))
	}
	return output
}

// renderRoomsPane renders the header (or the filter query) and the
// filtered room list. The active room is marked with a dot.
func (model Model) renderRoomsPane() string {
	width := model.roomsWidth()
	height := model.contentHeight()
	if width <= 0 {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground)
	if model.focus == focusRooms {
		headerStyle = headerStyle.Foreground(model.theme.FocusColor)
	}
	header := headerStyle.Render("Rooms")
	if model.filter.Active || model.filter.Input != "" {
		cursor := ""
		if model.filter.Active {
			cursor = "▏"
		}
		header = headerStyle.Render("/") + model.filter.Input + cursor
	}
	lines := []string{ansi.Truncate(header, width, "…")}

	matches := model.matches()
	visible := max(height-1, 0)
	offset := max(0, model.cursor-visible+1)
	baseStyle := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	matchStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.MatchForeground)
	for index := offset; index < len(matches) && index < offset+visible; index++ {
		room := model.rooms[matches[index].Index]
		marker := "  "
		if room.ID == model.view.RoomID {
			marker = lipgloss.NewStyle().Foreground(model.theme.FocusColor).Render("● ")
		}
		name := tui.HighlightPositions(room.DisplayName(), matches[index].Positions, baseStyle, matchStyle)
		row := ansi.Truncate(marker+name, width, "…")
		if index == model.cursor && model.focus == focusRooms {
			row = lipgloss.NewStyle().
				Background(model.theme.SelectedBackground).
				Foreground(model.theme.SelectedForeground).
				Width(width).
				Render(ansi.Strip(row))
		}
		lines = append(lines, row)
	}
	if len(model.rooms) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("No rooms"))
	}

	return lipgloss.NewStyle().Width(width).Height(height).MaxHeight(height).
		Render(strings.Join(lines, "\n"))
}

// renderTimelinePane renders the room header, the viewport with its
// scrollbar, and the input line.
func (model Model) renderTimelinePane() string {
	width := model.timelineWidth() + 1

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground)
	if model.focus == focusTimeline {
		headerStyle = headerStyle.Foreground(model.theme.FocusColor)
	}
	header := headerStyle.Render("Timeline")
	if model.view.Active() {
		header = headerStyle.Render(model.activeRoomName())
		if members := len(model.view.State.Users); members > 0 {
			header += lipgloss.NewStyle().Foreground(model.theme.FaintText).
				Render(fmt.Sprintf(" · %d members", members))
		}
	}

	scrollbar := tui.RenderScrollbar(model.theme, model.timeline.Height, tui.ScrollState{
		Total:   model.timeline.TotalLineCount(),
		Visible: model.timeline.Height,
		Offset:  model.timeline.YOffset,
	}, model.focus == focusTimeline)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(model.timeline.Width).Render(model.timeline.View()), scrollbar)

	separator := lipgloss.NewStyle().Foreground(model.theme.BorderColor).
		Render(strings.Repeat("─", width))

	return strings.Join([]string{
		ansi.Truncate(header, width, "…"),
		body,
		separator,
		model.input.View(),
	}, "\n")
}

// activeRoomName names the active room, from the room list while its
// state is still loading.
func (model Model) activeRoomName() string {
	if !model.view.Loading {
		return model.view.State.DisplayName()
	}
	for _, room := range model.rooms {
		if room.ID == model.view.RoomID {
			return room.DisplayName()
		}
	}
	return model.view.RoomID.String()
}

// renderNotification shows the newest log record while it is fresh,
// otherwise the newest feed entry.
func (model Model) renderNotification() string {
	if model.logRecord != nil {
		style := lipgloss.NewStyle().Foreground(model.theme.InfoForeground)
		if model.logRecord.Level >= slog.LevelWarn {
			style = style.Foreground(model.theme.ErrorForeground)
		}
		return ansi.Truncate(style.Render(model.logRecord.Summary), model.width, "…")
	}
	if len(model.feed) == 0 {
		return ""
	}
	entry := model.feed[len(model.feed)-1]
	style := lipgloss.NewStyle().Foreground(model.theme.InfoForeground)
	if entry.Level == chat.LevelError {
		style = style.Foreground(model.theme.ErrorForeground)
	}
	timestamp := lipgloss.NewStyle().Foreground(model.theme.FaintText).
		Render(entry.Time.Local().Format("15:04:05"))
	return ansi.Truncate(timestamp+" "+style.Render(entry.Message), model.width, "…")
}

// renderHelp renders the key hints with the login state on the right.
func (model Model) renderHelp() string {
	bindings := []helpBinding{
		{model.keys.FocusNext.Help().Key, model.keys.FocusNext.Help().Desc},
		{model.keys.Select.Help().Key, model.keys.Select.Help().Desc},
		{model.keys.LoadOlder.Help().Key, model.keys.LoadOlder.Help().Desc},
		{model.keys.Login.Help().Key, model.keys.Login.Help().Desc},
		{model.keys.AddRoom.Help().Key, model.keys.AddRoom.Help().Desc},
		{model.keys.LeaveRoom.Help().Key, model.keys.LeaveRoom.Help().Desc},
		{model.keys.FilterActivate.Help().Key, model.keys.FilterActivate.Help().Desc},
		{model.keys.Quit.Help().Key, model.keys.Quit.Help().Desc},
	}
	keyStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HelpText)
	descStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	parts := make([]string, len(bindings))
	for index, binding := range bindings {
		parts[index] = keyStyle.Render(binding.key) + " " + descStyle.Render(binding.description)
	}
	help := strings.Join(parts, "  ")

	status := "not logged in"
	if model.loggedInAs != "" {
		status = model.loggedInAs
	}
	status = lipgloss.NewStyle().Foreground(model.theme.HeaderForeground).Render(status)

	gap := model.width - ansi.StringWidth(help) - ansi.StringWidth(status)
	if gap < 2 {
		help = ansi.Truncate(help, max(model.width-ansi.StringWidth(status)-2, 0), "…")
		gap = max(model.width-ansi.StringWidth(help)-ansi.StringWidth(status), 0)
	}
	return help + strings.Repeat(" ", gap) + status
}

type helpBinding struct {
	key         string
	description string
}
