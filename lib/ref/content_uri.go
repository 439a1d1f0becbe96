// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

const contentURIScheme = "mxc://"

// ContentURI is a validated Matrix content URI
// (e.g., "mxc://matrix.org/SEsfnsuifSDFSSEF"), the handle for a file
// held in a homeserver's media repository.
//
// The server and media ID are kept separately because every media
// endpoint addresses them as distinct path segments.
type ContentURI struct {
	server  string
	mediaID string
}

// ParseContentURI validates an mxc:// URI. Both the server name and
// the media ID must be non-empty, and the media ID may not contain '/'.
func ParseContentURI(raw string) (ContentURI, error) {
	if raw == "" {
		return ContentURI{}, fmt.Errorf("empty content URI")
	}
	if !strings.HasPrefix(raw, contentURIScheme) {
		return ContentURI{}, fmt.Errorf("content URI must start with %q: %q", contentURIScheme, raw)
	}
	rest := raw[len(contentURIScheme):]
	server, mediaID, found := strings.Cut(rest, "/")
	if !found {
		return ContentURI{}, fmt.Errorf("content URI missing media ID: %q", raw)
	}
	if server == "" {
		return ContentURI{}, fmt.Errorf("content URI has empty server name: %q", raw)
	}
	if mediaID == "" || strings.ContainsRune(mediaID, '/') {
		return ContentURI{}, fmt.Errorf("content URI has invalid media ID: %q", raw)
	}
	return ContentURI{server: server, mediaID: mediaID}, nil
}

// MustParseContentURI is like ParseContentURI but panics on error.
func MustParseContentURI(raw string) ContentURI {
	c, err := ParseContentURI(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseContentURI(%q): %v", raw, err))
	}
	return c
}

// Server returns the origin server of the media.
func (c ContentURI) Server() string { return c.server }

// MediaID returns the server-local media identifier.
func (c ContentURI) MediaID() string { return c.mediaID }

// IsZero reports whether the ContentURI is the zero value.
func (c ContentURI) IsZero() bool { return c.server == "" && c.mediaID == "" }

// String returns the mxc:// form, or "" for the zero value.
func (c ContentURI) String() string {
	if c.IsZero() {
		return ""
	}
	return contentURIScheme + c.server + "/" + c.mediaID
}

// MarshalText implements encoding.TextMarshaler.
func (c ContentURI) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value.
func (c *ContentURI) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*c = ContentURI{}
		return nil
	}
	parsed, err := ParseContentURI(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
