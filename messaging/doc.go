// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is katrix's seam to the Matrix homeserver.
//
// [Client] is unauthenticated: it holds the homeserver URL, the HTTP
// transport, and loggers, and produces a [DirectSession] from a
// password login or a stored access token. Protocol work (request
// construction, retries on rate limits, JSON decoding) is delegated to
// maunium.net/go/mautrix; this package converts between mautrix types
// and katrix's own ([Event], lib/ref identifiers) and translates
// homeserver failures into [*MatrixError].
//
// [Session] is the interface the chat core is written against. Besides
// request methods (send, create and leave rooms, paginate history,
// fetch thumbnails) it exposes reactive holders for the room list,
// room names, members, and the newest event per room. [DirectSession]
// fills those holders lazily on first access and keeps them current
// from a long-polling /sync loop ([DirectSession.Sync]).
//
// The mautrix client logs through zerolog; the SDK logger is supplied
// in [ClientConfig] so it can be routed to a file, separately from
// katrix's own slog output.
package messaging
