// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite databases behind katrix's
// on-disk caches.
//
// A [Pool] wraps zombiezen.com/go/sqlite's sqlitex.Pool. Every
// connection runs in WAL mode with synchronous=NORMAL and a five
// second busy timeout; cached data can always be fetched again, so
// losing the last transactions to a power cut is acceptable.
//
// Schemas are versioned through PRAGMA user_version: Open runs the
// [Config.Migrations] the file has not seen yet, all in one
// transaction. Use [Pool.Do] for reads and [Pool.Write] for anything
// that must commit atomically.
package sqlitepool
