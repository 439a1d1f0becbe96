// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package timeline materializes per-room message timelines for
// display.
//
// [Transform] turns a raw [messaging.Event] into a [DisplayMessage],
// filtering out everything that is not a text or image message.
//
// A [Handle] is the paginating cursor for one room: it remembers the
// pagination tokens on both ends of the loaded window and publishes
// the transformed messages through a [reactive.Holder].
//
// [Cache] owns at most one Handle per room for the lifetime of a
// session. Every operation that touches handles (lookup, creation,
// the initial load, and each load-older/load-newer call) runs under a
// single context-aware lock, so pagination tokens are never advanced
// by two callers at once. [Cache.GetRoomState] combines a handle with
// the session's name, member, and latest-event holders into one
// [RoomViewState] stream that is recomputed whenever any input
// changes.
//
// Pagination failures are logged and otherwise ignored: the view
// keeps what it had, and the caller can try again.
package timeline
