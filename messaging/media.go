// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"maunium.net/go/mautrix"

	"github.com/bureau-foundation/katrix/lib/ref"
)

// maxThumbnailBytes bounds a thumbnail download. Server-scaled
// thumbnails at preview sizes are far below this.
const maxThumbnailBytes = 16 << 20

// Thumbnail fetches a server-scaled thumbnail of the media at uri.
// The authenticated media endpoint (Matrix v1.11) is tried first; a
// 404 or M_UNRECOGNIZED from an older homeserver falls back to the
// legacy unauthenticated endpoint.
func (s *DirectSession) Thumbnail(ctx context.Context, uri ref.ContentURI, width, height int) (*Media, error) {
	if uri.IsZero() {
		return nil, fmt.Errorf("messaging: thumbnail requires a content URI")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("messaging: thumbnail size must be positive, got %dx%d", width, height)
	}
	query := map[string]string{
		"width":  strconv.Itoa(width),
		"height": strconv.Itoa(height),
		"method": "scale",
	}

	authenticated := s.sdk.BuildURLWithQuery(
		mautrix.ClientURLPath{"v1", "media", "thumbnail", uri.Server(), uri.MediaID()}, query)
	media, err := s.downloadMedia(ctx, authenticated, true)
	if err == nil {
		return media, nil
	}
	if !IsMatrixError(err, ErrCodeNotFound) && !IsMatrixError(err, ErrCodeUnrecognized) {
		return nil, err
	}

	legacy := s.sdk.BuildURLWithQuery(
		mautrix.MediaURLPath{"v3", "thumbnail", uri.Server(), uri.MediaID()}, query)
	return s.downloadMedia(ctx, legacy, false)
}

func (s *DirectSession) downloadMedia(ctx context.Context, requestURL string, authenticated bool) (*Media, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: building media request: %w", err)
	}
	if authenticated {
		request.Header.Set("Authorization", "Bearer "+s.sdk.AccessToken)
	}

	response, err := s.client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: media request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxThumbnailBytes+1))
	if err != nil {
		return nil, fmt.Errorf("messaging: reading media response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		// Synapse answers unknown endpoints with a bare 404.
		matrixErr := decodeErrorBody(response.StatusCode, body)
		if response.StatusCode == http.StatusNotFound && matrixErr.Code == ErrCodeUnknown {
			matrixErr.Code = ErrCodeNotFound
		}
		return nil, matrixErr
	}
	if len(body) > maxThumbnailBytes {
		return nil, fmt.Errorf("messaging: media exceeds %d bytes", maxThumbnailBytes)
	}
	return &Media{
		ContentType: response.Header.Get("Content-Type"),
		Data:        body,
	}, nil
}
