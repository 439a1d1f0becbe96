// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui provides terminal rendering pieces for katrix: the color
// theme, fzf-backed fuzzy matching for list filters, a goldmark
// markdown renderer for message bodies, half-block image previews,
// dialog overlays, scrollbars and change highlighting.
//
// Nothing here knows about Matrix. The chat presentation in
// lib/chatui composes these pieces around the state published by
// lib/chat.
package tui
