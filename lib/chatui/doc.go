// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui implements the katrix terminal interface. Built on
// bubbletea (Elm architecture), it shows the joined rooms on the left,
// the active room's timeline on the right with an input line beneath
// it, and a notification bar at the bottom.
//
// The model owns no chat state. Everything it draws comes from the
// reactive holders of a [chat.Client]: each holder is bridged into
// the event loop by a command that blocks on a subscription and
// delivers the value as a message, then re-arms. Operations that touch
// the network (login, send, create, leave, pagination) run as
// commands so the event loop never blocks on I/O. Their failures
// reach the user through the client's notification feed.
//
// Data flow:
//
//	[chat.Client holders]
//	        | (Subscription -> tea.Msg)
//	    [Model] <- bubbletea event loop
//	        |
//	  [terminal output]
package chatui
