// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mediacache

import (
	"encoding/hex"
	"strconv"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/katrix/lib/ref"
)

// Key identifies one cached thumbnail: a media item at one size.
type Key [32]byte

// thumbnailDomainKey separates thumbnail keys from any other BLAKE3
// use. Changing it orphans every existing disk entry.
var thumbnailDomainKey = [32]byte{
	'k', 'a', 't', 'r', 'i', 'x', '.', 'm', 'e', 'd', 'i', 'a', '.',
	't', 'h', 'u', 'm', 'b', 'n', 'a', 'i', 'l', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// KeyFor returns the cache key for uri scaled to width x height.
func KeyFor(uri ref.ContentURI, width, height int) Key {
	hasher, err := blake3.NewKeyed(thumbnailDomainKey[:])
	if err != nil {
		panic("mediacache: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(uri.String() + "|" + strconv.Itoa(width) + "|" + strconv.Itoa(height)))
	var key Key
	copy(key[:], hasher.Sum(nil))
	return key
}

// String returns the key as lowercase hex.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}
