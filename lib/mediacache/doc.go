// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mediacache caches downloaded thumbnails in two tiers: an
// in-memory TTL cache for the images currently on screen and a SQLite
// file that survives restarts.
//
// Entries are addressed by a BLAKE3 keyed hash of the content URI and
// the requested size. On disk each entry is a CBOR record holding the
// (possibly compressed) bytes and their content type. Already
// compressed image formats are stored as-is; everything else is
// compressed with zstd or, when configured for speed, LZ4.
//
// [Cache.Get] consults memory, then disk, then the caller's fetch
// function. Concurrent requests for the same entry share one fetch.
// Disk errors are logged and treated as misses: a broken cache file
// degrades to refetching, never to a failed thumbnail.
package mediacache
