// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const resetStyle = "\x1b[m"

// Overlay draws box over the middle of view. Styling in view is kept
// on both sides of the box; rows of the box that fall below the view
// are dropped.
func Overlay(view, box string) string {
	if box == "" {
		return view
	}
	rows := strings.Split(view, "\n")
	boxRows := strings.Split(box, "\n")

	viewWidth := 0
	for _, row := range rows {
		viewWidth = max(viewWidth, ansi.StringWidth(row))
	}
	boxWidth := 0
	for _, row := range boxRows {
		boxWidth = max(boxWidth, ansi.StringWidth(row))
	}

	left := max((viewWidth-boxWidth)/2, 0)
	top := max((len(rows)-len(boxRows))/2, 0)
	for offset, boxRow := range boxRows {
		target := top + offset
		if target >= len(rows) {
			break
		}
		rows[target] = placeAt(rows[target], boxRow, left, boxWidth)
	}
	return strings.Join(rows, "\n")
}

// placeAt replaces width columns of row starting at column with cell,
// padding whichever of them is short.
func placeAt(row, cell string, column, width int) string {
	var builder strings.Builder
	head := ansi.Truncate(row, column, "")
	builder.WriteString(head)
	builder.WriteString(strings.Repeat(" ", column-ansi.StringWidth(head)))

	builder.WriteString(resetStyle)
	builder.WriteString(cell)
	builder.WriteString(strings.Repeat(" ", max(width-ansi.StringWidth(cell), 0)))
	builder.WriteString(resetStyle)

	if ansi.StringWidth(row) > column+width {
		builder.WriteString(ansi.TruncateLeft(row, column+width, ""))
	}
	return builder.String()
}
