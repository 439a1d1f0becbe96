// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mediacache

import (
	"fmt"
	"mime"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the algorithm a disk record's data was stored with.
// The numeric values are persisted.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
	CompressionLZ4  Compression = 2
)

var compressionNames = map[Compression]string{
	CompressionNone: "none",
	CompressionZstd: "zstd",
	CompressionLZ4:  "lz4",
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// ParseCompression maps a configuration name to its Compression. An
// empty name means zstd.
func ParseCompression(name string) (Compression, error) {
	if name == "" {
		return CompressionZstd, nil
	}
	for compression, known := range compressionNames {
		if known == name {
			return compression, nil
		}
	}
	return 0, fmt.Errorf("mediacache: unknown compression %q (want none, zstd or lz4)", name)
}

// algorithm compresses and restores one Compression's payloads.
// shrink returns nil when the output would not be smaller than the
// input.
type algorithm struct {
	shrink  func(data []byte) ([]byte, error)
	restore func(data []byte, size int) ([]byte, error)
}

var algorithms = map[Compression]algorithm{
	CompressionZstd: {shrink: shrinkZstd, restore: restoreZstd},
	CompressionLZ4:  {shrink: shrinkLZ4, restore: restoreLZ4},
}

// chooseCompression returns preferred, except for image formats whose
// payload is already entropy coded.
func chooseCompression(contentType string, preferred Compression) Compression {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return CompressionNone
	}
	return preferred
}

// compress encodes data with preferred and reports the algorithm the
// output is actually in: CompressionNone when nothing was gained.
func compress(data []byte, preferred Compression) ([]byte, Compression, error) {
	if preferred == CompressionNone {
		return data, CompressionNone, nil
	}
	c, ok := algorithms[preferred]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported compression %v", preferred)
	}
	shrunk, err := c.shrink(data)
	switch {
	case err != nil:
		return nil, 0, err
	case shrunk == nil:
		return data, CompressionNone, nil
	default:
		return shrunk, preferred, nil
	}
}

// decompress restores data written by compress. size is the length of
// the original and is checked.
func decompress(data []byte, compression Compression, size int) ([]byte, error) {
	restored := data
	if compression != CompressionNone {
		c, ok := algorithms[compression]
		if !ok {
			return nil, fmt.Errorf("unsupported compression %v", compression)
		}
		var err error
		if restored, err = c.restore(data, size); err != nil {
			return nil, fmt.Errorf("%v: %w", compression, err)
		}
	}
	if len(restored) != size {
		return nil, fmt.Errorf("%v: restored %d bytes, record says %d", compression, len(restored), size)
	}
	return restored, nil
}

// The zstd encoder and decoder are safe for concurrent use and costly
// to build, so one of each is shared.
var (
	zstdEncoder = sync.OnceValue(func() *zstd.Encoder {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("mediacache: zstd encoder: %v", err))
		}
		return encoder
	})
	zstdDecoder = sync.OnceValue(func() *zstd.Decoder {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if err != nil {
			panic(fmt.Sprintf("mediacache: zstd decoder: %v", err))
		}
		return decoder
	})
)

func shrinkZstd(data []byte) ([]byte, error) {
	encoded := zstdEncoder().EncodeAll(data, nil)
	if len(encoded) >= len(data) {
		return nil, nil
	}
	return encoded, nil
}

func restoreZstd(data []byte, size int) ([]byte, error) {
	return zstdDecoder().DecodeAll(data, make([]byte, 0, size))
}

func shrinkLZ4(data []byte) ([]byte, error) {
	encoded := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, encoded, nil)
	if err != nil {
		return nil, err
	}
	// Zero written bytes means the block did not compress.
	if written == 0 || written >= len(data) {
		return nil, nil
	}
	return encoded[:written], nil
}

func restoreLZ4(data []byte, size int) ([]byte, error) {
	restored := make([]byte, size)
	read, err := lz4.UncompressBlock(data, restored)
	if err != nil {
		return nil, err
	}
	return restored[:read], nil
}
