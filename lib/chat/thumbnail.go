// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/katrix/lib/reactive"
	"github.com/bureau-foundation/katrix/lib/timeline"
	"github.com/bureau-foundation/katrix/messaging"
)

// ThumbnailResult is the state of one thumbnail request. Exactly one
// of Media and Err is set once Done.
type ThumbnailResult struct {
	Done  bool
	Media *messaging.Media
	Err   error
}

// RequestThumbnail starts fetching a thumbnail of image and returns a
// holder that completes with the bytes or the failure. Failures stay
// with the requester; nothing is posted to the feed.
func (c *Client) RequestThumbnail(ctx context.Context, image timeline.ImageRef) *reactive.Holder[ThumbnailResult] {
	result := reactive.NewHolder(ThumbnailResult{})
	active := c.current()
	if active == nil {
		result.Set(ThumbnailResult{Done: true, Err: ErrNotLoggedIn})
		return result
	}

	width := min(image.Width, c.thumbnailWidth)
	height := min(image.Height, c.thumbnailHeight)
	fetch := func(ctx context.Context) (*messaging.Media, error) {
		return active.session.Thumbnail(ctx, image.URL, width, height)
	}

	go func() {
		var (
			media *messaging.Media
			err   error
		)
		if c.media != nil {
			media, err = c.media.Get(ctx, image.URL, width, height, fetch)
		} else {
			media, err = fetch(ctx)
		}
		if err != nil {
			result.Set(ThumbnailResult{Done: true, Err: fmt.Errorf("chat: thumbnail %s: %w", image.URL, err)})
			return
		}
		result.Set(ThumbnailResult{Done: true, Media: media})
	}()
	return result
}
