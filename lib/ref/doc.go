// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref holds the Matrix identifiers katrix passes between
// layers: [RoomID], [UserID], [EventID] and [ContentURI].
//
// Each is a comparable value wrapping a validated string, parsed once
// where it enters from the homeserver or the user. The zero value
// means unset. Text marshaling uses the Matrix string form, so the
// types work as JSON fields and as CBOR text in lib/codec.
package ref
