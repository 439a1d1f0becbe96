// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult is the outcome of matching one text against a pattern.
// A zero Score means no match.
type FuzzyResult struct {
	Score int
	// Positions are the rune indexes in the text that matched, in
	// ascending order.
	Positions []int
}

var fzfInitOnce sync.Once

// FuzzyMatch scores text against pattern with fzf's V2 algorithm.
// Matching is case-insensitive: both sides are lowercased. A nil slab
// allocates per call; list filters pass one slab and reuse it.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 || text == "" {
		return FuzzyResult{}
	}
	fzfInitOnce.Do(func() { algo.Init("default") })

	lowered := make([]rune, len(pattern))
	for index, character := range pattern {
		lowered[index] = unicode.ToLower(character)
	}
	chars := util.ToChars([]byte(strings.ToLower(text)))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Start < 0 || result.Score <= 0 {
		return FuzzyResult{}
	}

	var sorted []int
	if positions != nil {
		sorted = slices.Clone(*positions)
		slices.Sort(sorted)
	}
	return FuzzyResult{Score: result.Score, Positions: sorted}
}

// Filter is an fzf-style query over a list of strings. The model that
// owns it routes keystrokes to HandleRune and HandleBackspace while
// Active.
type Filter struct {
	// Input is the current query text.
	Input string

	// Active is true while the query has keyboard focus.
	Active bool

	slab *util.Slab
}

// FilterMatch is one candidate that survived the filter.
type FilterMatch struct {
	// Index is the candidate's position in the slice given to Rank.
	Index     int
	Score     int
	Positions []int
}

// Rank returns the candidates matching the query, best first. Ties
// keep candidate order. An empty query matches everything in order.
func (filter *Filter) Rank(candidates []string) []FilterMatch {
	matches := make([]FilterMatch, 0, len(candidates))
	if filter.Input == "" {
		for index := range candidates {
			matches = append(matches, FilterMatch{Index: index})
		}
		return matches
	}

	if filter.slab == nil {
		filter.slab = util.MakeSlab(100*1024, 2048)
	}
	pattern := []rune(filter.Input)
	for index, candidate := range candidates {
		result := FuzzyMatch(candidate, pattern, filter.slab)
		if result.Score == 0 {
			continue
		}
		matches = append(matches, FilterMatch{Index: index, Score: result.Score, Positions: result.Positions})
	}
	slices.SortStableFunc(matches, func(a, b FilterMatch) int {
		return b.Score - a.Score
	})
	return matches
}

// HandleRune appends a typed character to the query.
func (filter *Filter) HandleRune(character rune) {
	filter.Input += string(character)
}

// HandleBackspace removes the last character of the query. Returns
// false if the query was already empty.
func (filter *Filter) HandleBackspace() bool {
	if filter.Input == "" {
		return false
	}
	runes := []rune(filter.Input)
	filter.Input = string(runes[:len(runes)-1])
	return true
}

// Clear resets the query and deactivates the filter.
func (filter *Filter) Clear() {
	filter.Input = ""
	filter.Active = false
}

// HighlightPositions renders text with the runes at positions in
// matchStyle and the rest in baseStyle.
func HighlightPositions(text string, positions []int, baseStyle, matchStyle lipgloss.Style) string {
	if len(positions) == 0 {
		return baseStyle.Render(text)
	}
	var (
		builder strings.Builder
		run     []rune
		inMatch bool
	)
	flush := func() {
		if len(run) == 0 {
			return
		}
		if inMatch {
			builder.WriteString(matchStyle.Render(string(run)))
		} else {
			builder.WriteString(baseStyle.Render(string(run)))
		}
		run = run[:0]
	}
	next := 0
	for index, character := range []rune(text) {
		matched := next < len(positions) && positions[next] == index
		if matched {
			next++
		}
		if matched != inMatch {
			flush()
			inMatch = matched
		}
		run = append(run, character)
	}
	flush()
	return builder.String()
}
