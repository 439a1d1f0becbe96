// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/muesli/termenv"
)

// RenderImagePreview decodes a PNG, JPEG or GIF image and renders it
// with upper-half-block characters, two pixel rows per terminal row,
// scaled to fit within maxColumns x maxRows cells. The aspect ratio is
// kept and the image is never scaled up.
func RenderImagePreview(data []byte, maxColumns, maxRows int, profile termenv.Profile) (string, error) {
	if maxColumns <= 0 || maxRows <= 0 {
		return "", fmt.Errorf("preview area %dx%d is empty", maxColumns, maxRows)
	}
	if profile == termenv.Ascii {
		return "", fmt.Errorf("terminal has no color support")
	}
	source, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}

	bounds := source.Bounds()
	columns, pixelRows := fitPreview(bounds.Dx(), bounds.Dy(), maxColumns, maxRows*2)
	if columns == 0 || pixelRows == 0 {
		return "", fmt.Errorf("image has no pixels")
	}

	sample := func(x, y int) color.Color {
		sourceX := bounds.Min.X + x*bounds.Dx()/columns
		sourceY := bounds.Min.Y + y*bounds.Dy()/pixelRows
		return source.At(sourceX, sourceY)
	}

	var builder strings.Builder
	for y := 0; y < pixelRows; y += 2 {
		if y > 0 {
			builder.WriteByte('\n')
		}
		for x := 0; x < columns; x++ {
			cell := profile.String("▀").Foreground(profile.FromColor(sample(x, y)))
			if y+1 < pixelRows {
				cell = cell.Background(profile.FromColor(sample(x, y+1)))
			}
			builder.WriteString(cell.String())
		}
	}
	return builder.String(), nil
}

// fitPreview scales width x height down to fit within maxWidth x
// maxHeight, keeping the aspect ratio.
func fitPreview(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}
	// Compare width/maxWidth against height/maxHeight without floats.
	if width*maxHeight >= height*maxWidth {
		return maxWidth, max(1, height*maxWidth/width)
	}
	return max(1, width*maxHeight/height), maxHeight
}
