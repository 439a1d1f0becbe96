// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reactive provides the observable state containers that
// connect the Matrix session, the timeline core, and the terminal UI.
//
// A [Holder] stores one value. It has a single writer and any number
// of readers: readers either poll with [Holder.Get] or call
// [Holder.Subscribe] and receive values on a channel. Subscription
// channels hold at most one pending value, so a slow reader skips
// intermediate states and always observes the latest one; a writer
// never blocks on a reader.
//
// [Derive] is the combinator: it recomputes a value from any number
// of source holders whenever one of them changes, and publishes the
// result through its own Holder. Its lifetime is bound to a
// context.Context; cancelling the context detaches it from its
// sources and closes [Derived.Done].
package reactive
