// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds a password outside the Go heap, in memory that is
// locked against swapping and left out of core dumps. Reads after
// Close panic. A Buffer must not be copied.
type Buffer struct {
	mu     sync.Mutex
	region []byte // whole pages from mmap
	size   int    // secret length within region
}

// NewFromBytes moves source into a new Buffer: the bytes are copied
// into locked memory and source is zeroed. An empty source is an
// error.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, errors.New("secret: empty secret")
	}
	region, err := lockedRegion(len(source))
	if err != nil {
		Zero(source)
		return nil, err
	}
	copy(region, source)
	Zero(source)
	return &Buffer{region: region, size: len(source)}, nil
}

// lockedRegion maps whole pages covering size bytes and locks them.
// Core-dump exclusion is best effort: some kernels lack
// MADV_DONTDUMP.
func lockedRegion(size int) ([]byte, error) {
	pageSize := unix.Getpagesize()
	length := (size + pageSize - 1) / pageSize * pageSize

	region, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	_ = unix.Madvise(region, unix.MADV_DONTDUMP)
	return region, nil
}

// String returns a heap copy of the secret for APIs that take a
// string, such as the login request body.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.region == nil {
		panic("secret: read from closed buffer")
	}
	return string(b.region[:b.size])
}

// Close zeroes, unlocks and unmaps the memory. It is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.region == nil {
		return nil
	}
	region := b.region
	b.region, b.size = nil, 0

	Zero(region)
	return errors.Join(
		wrap("munlock", unix.Munlock(region)),
		wrap("munmap", unix.Munmap(region)),
	)
}

func wrap(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("secret: %s: %w", operation, err)
}

// Zero overwrites data with zeros. Use it on heap copies of a secret
// (terminal reads, dialog field values) once they are in a Buffer.
func Zero(data []byte) {
	clear(data)
}
