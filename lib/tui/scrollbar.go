// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ScrollState describes a viewport over Total lines, Visible of which
// are shown starting at Offset.
type ScrollState struct {
	Total   int
	Visible int
	Offset  int
}

// overflows reports whether any line is hidden.
func (state ScrollState) overflows() bool {
	return state.Visible > 0 && state.Total > state.Visible
}

// thumb returns the first row and the row count of the thumb on a
// track of the given height.
func (state ScrollState) thumb(height int) (start, size int) {
	size = min(max(height*state.Visible/state.Total, 1), height)
	hidden := state.Total - state.Visible
	offset := min(max(state.Offset, 0), hidden)
	start = (height - size) * offset / hidden
	return start, size
}

// RenderScrollbar renders a one-column scrollbar of the given height.
// Content that fits renders as a blank column so the layout does not
// shift when the bar appears.
func RenderScrollbar(theme Theme, height int, state ScrollState, focused bool) string {
	if height <= 0 {
		return ""
	}
	rows := make([]string, height)
	if !state.overflows() {
		for index := range rows {
			rows[index] = " "
		}
		return strings.Join(rows, "\n")
	}

	thumbColor := theme.BorderColor
	if focused {
		thumbColor = theme.FocusColor
	}
	track := lipgloss.NewStyle().Foreground(theme.BorderColor).Render("│")
	thumb := lipgloss.NewStyle().Foreground(thumbColor).Render("┃")

	start, size := state.thumb(height)
	for index := range rows {
		rows[index] = track
		if index >= start && index < start+size {
			rows[index] = thumb
		}
	}
	return strings.Join(rows, "\n")
}
