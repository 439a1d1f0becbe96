// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat is the view-model layer between a Matrix session and a
// presentation (the bubbletea UI or the line-mode shell).
//
// [Client] is the facade the presentation drives: login and logout,
// the joined room list, room creation and leaving, sending, paging the
// active room, and thumbnail requests. Operations that need a session
// fail with [ErrNotLoggedIn] when there is none; every outcome the
// user should see is also posted to the [Feed].
//
// [Controller] owns the active room. Selecting a room cancels the
// previous room's subscription job and waits for it to exit before the
// next one starts, so the [ActiveRoomView] holder never carries an
// update for a room the user has switched away from.
//
// All state reaches the presentation through [reactive.Holder] values;
// nothing in this package calls back into the UI.
package chat
