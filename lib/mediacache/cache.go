// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mediacache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/katrix/lib/clock"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/lib/sqlitepool"
	"github.com/bureau-foundation/katrix/messaging"
)

// Defaults for Config.
const (
	defaultMemoryTTL      = 10 * time.Minute
	defaultMemoryCapacity = 256
	defaultDiskEntries    = 4096
)

// Config holds the parameters for opening a Cache.
type Config struct {
	// Path is the SQLite file for the disk tier. Empty disables the
	// disk tier.
	Path string

	// Logger receives disk-tier failures. If nil, slog.Default() is used.
	Logger *slog.Logger

	// MemoryTTL is how long a thumbnail stays in memory after it was
	// last stored. Defaults to 10 minutes.
	MemoryTTL time.Duration

	// MemoryCapacity bounds the in-memory entry count. Defaults to 256.
	MemoryCapacity uint64

	// DiskEntries bounds the disk entry count; least recently used
	// entries are evicted first. Defaults to 4096.
	DiskEntries int

	// Compression names the preferred algorithm for compressible
	// content: "zstd" (the default), "lz4", or "none".
	Compression string

	// Clock stamps disk entries. If nil, clock.Real() is used.
	Clock clock.Clock
}

// FetchFunc downloads a thumbnail on a cache miss.
type FetchFunc func(ctx context.Context) (*messaging.Media, error)

// Cache is a two-tier thumbnail cache. It is safe for concurrent use.
type Cache struct {
	memory      *ttlcache.Cache[Key, *messaging.Media]
	disk        *store
	group       singleflight.Group
	logger      *slog.Logger
	compression Compression
	clock       clock.Clock
}

// Open creates a Cache, opening the disk tier if cfg.Path is set. The
// caller must call Close when done.
func Open(ctx context.Context, cfg Config) (*Cache, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.MemoryTTL
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	capacity := cfg.MemoryCapacity
	if capacity == 0 {
		capacity = defaultMemoryCapacity
	}
	diskEntries := cfg.DiskEntries
	if diskEntries <= 0 {
		diskEntries = defaultDiskEntries
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	compression, err := ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	cache := &Cache{
		memory: ttlcache.New[Key, *messaging.Media](
			ttlcache.WithTTL[Key, *messaging.Media](ttl),
			ttlcache.WithCapacity[Key, *messaging.Media](capacity),
			ttlcache.WithDisableTouchOnHit[Key, *messaging.Media](),
		),
		logger:      logger,
		compression: compression,
		clock:       clk,
	}

	if cfg.Path != "" {
		disk, err := openStore(ctx, sqlitepool.Config{
			Path:   cfg.Path,
			Logger: logger,
		}, diskEntries)
		if err != nil {
			return nil, fmt.Errorf("mediacache: %w", err)
		}
		cache.disk = disk
	}

	go cache.memory.Start()
	return cache, nil
}

// Close stops expiry and closes the disk tier.
func (c *Cache) Close() error {
	c.memory.Stop()
	if c.disk != nil {
		return c.disk.close()
	}
	return nil
}

// Get returns the thumbnail of uri at width x height, calling fetch
// only when neither tier has it. Concurrent Gets for the same key
// share one lookup; a caller whose ctx ends stops waiting without
// cancelling the shared fetch for the others.
func (c *Cache) Get(ctx context.Context, uri ref.ContentURI, width, height int, fetch FetchFunc) (*messaging.Media, error) {
	key := KeyFor(uri, width, height)
	if item := c.memory.Get(key); item != nil {
		return item.Value(), nil
	}

	result := c.group.DoChan(key.String(), func() (any, error) {
		return c.load(context.WithoutCancel(ctx), key, uri, fetch)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case outcome := <-result:
		if outcome.Err != nil {
			return nil, outcome.Err
		}
		return outcome.Val.(*messaging.Media), nil
	}
}

func (c *Cache) load(ctx context.Context, key Key, uri ref.ContentURI, fetch FetchFunc) (*messaging.Media, error) {
	if media := c.readDisk(ctx, key); media != nil {
		c.memory.Set(key, media, ttlcache.DefaultTTL)
		return media, nil
	}

	media, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.memory.Set(key, media, ttlcache.DefaultTTL)
	c.writeDisk(ctx, key, uri, media)
	return media, nil
}

func (c *Cache) readDisk(ctx context.Context, key Key) *messaging.Media {
	if c.disk == nil {
		return nil
	}
	stored, err := c.disk.get(ctx, key, c.clock.Now())
	if err != nil {
		c.logger.Warn("thumbnail disk cache read failed", "key", key.String(), "error", err)
		return nil
	}
	if stored == nil {
		return nil
	}
	data, err := decompress(stored.Data, stored.Compression, stored.Size)
	if err != nil {
		c.logger.Warn("thumbnail disk cache entry corrupt", "key", key.String(), "error", err)
		return nil
	}
	return &messaging.Media{ContentType: stored.ContentType, Data: data}
}

func (c *Cache) writeDisk(ctx context.Context, key Key, uri ref.ContentURI, media *messaging.Media) {
	if c.disk == nil {
		return
	}
	data, compression, err := compress(media.Data, chooseCompression(media.ContentType, c.compression))
	if err != nil {
		c.logger.Warn("thumbnail compression failed", "uri", uri.String(), "error", err)
		return
	}
	now := c.clock.Now()
	err = c.disk.put(ctx, key, record{
		ContentType: media.ContentType,
		Compression: compression,
		Size:        len(media.Data),
		FetchedAt:   now.UnixMilli(),
		Data:        data,
	}, now)
	if err != nil {
		c.logger.Warn("thumbnail disk cache write failed", "uri", uri.String(), "error", err)
	}
}
