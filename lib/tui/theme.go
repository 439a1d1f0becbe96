// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for the katrix terminal UI. All
// colors use lipgloss ANSI 256-color codes for broad terminal
// compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	FocusColor       lipgloss.Color // Border and scrollbar thumb of the focused pane.
	HelpText         lipgloss.Color

	// Notification levels.
	InfoForeground  lipgloss.Color
	ErrorForeground lipgloss.Color

	// SenderColors is the palette message senders are hashed into.
	SenderColors [6]lipgloss.Color

	// Background tint for messages that just arrived.
	HotAccent lipgloss.Color

	// Filter match highlighting.
	MatchForeground lipgloss.Color

	// Markdown.
	LinkForeground  lipgloss.Color
	CodeForeground  lipgloss.Color
	QuoteForeground lipgloss.Color

	// CodeStyle is the chroma style for fenced code blocks.
	CodeStyle string
}

// SenderColor returns a stable color for a sender ID.
func (theme Theme) SenderColor(senderID string) lipgloss.Color {
	hash := fnv.New32a()
	hash.Write([]byte(senderID))
	return theme.SenderColors[hash.Sum32()%uint32(len(theme.SenderColors))]
}

// DarkTheme is the default scheme for dark-background terminals.
var DarkTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	FocusColor:       lipgloss.Color("220"), // amber
	HelpText:         lipgloss.Color("241"),

	InfoForeground:  lipgloss.Color("114"), // green
	ErrorForeground: lipgloss.Color("203"), // soft red

	SenderColors: [6]lipgloss.Color{
		lipgloss.Color("75"),  // blue
		lipgloss.Color("114"), // green
		lipgloss.Color("141"), // purple
		lipgloss.Color("208"), // orange
		lipgloss.Color("80"),  // teal
		lipgloss.Color("211"), // pink
	},

	HotAccent: lipgloss.Color("58"), // dark amber background tint

	MatchForeground: lipgloss.Color("220"),

	LinkForeground:  lipgloss.Color("75"),
	CodeForeground:  lipgloss.Color("180"),
	QuoteForeground: lipgloss.Color("245"),

	CodeStyle: "monokai",
}

// LightTheme is for light-background terminals.
var LightTheme = Theme{
	NormalText: lipgloss.Color("235"),
	FaintText:  lipgloss.Color("243"),

	SelectedBackground: lipgloss.Color("254"),
	SelectedForeground: lipgloss.Color("232"),

	HeaderForeground: lipgloss.Color("232"),
	BorderColor:      lipgloss.Color("248"),
	FocusColor:       lipgloss.Color("130"), // dark orange
	HelpText:         lipgloss.Color("244"),

	InfoForeground:  lipgloss.Color("28"),
	ErrorForeground: lipgloss.Color("160"),

	SenderColors: [6]lipgloss.Color{
		lipgloss.Color("25"),
		lipgloss.Color("28"),
		lipgloss.Color("91"),
		lipgloss.Color("166"),
		lipgloss.Color("30"),
		lipgloss.Color("162"),
	},

	HotAccent: lipgloss.Color("230"), // pale yellow

	MatchForeground: lipgloss.Color("166"),

	LinkForeground:  lipgloss.Color("25"),
	CodeForeground:  lipgloss.Color("94"),
	QuoteForeground: lipgloss.Color("243"),

	CodeStyle: "github",
}

// ThemeByName returns the theme for a configuration value.
func ThemeByName(name string) (Theme, error) {
	switch name {
	case "", "dark":
		return DarkTheme, nil
	case "light":
		return LightTheme, nil
	default:
		return Theme{}, fmt.Errorf("unknown theme %q", name)
	}
}
