// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mediacache

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/katrix/lib/codec"
	"github.com/bureau-foundation/katrix/lib/sqlitepool"
)

// migrations is the disk schema. Append only.
var migrations = []string{
	`CREATE TABLE thumbnails (
		key         BLOB PRIMARY KEY,
		record      BLOB NOT NULL,
		accessed_at INTEGER NOT NULL
	) WITHOUT ROWID;
	CREATE INDEX thumbnails_accessed_at ON thumbnails (accessed_at);`,
}

// record is the CBOR value stored per thumbnail.
type record struct {
	ContentType string      `cbor:"1,keyasint"`
	Compression Compression `cbor:"2,keyasint"`
	Size        int         `cbor:"3,keyasint"`
	FetchedAt   int64       `cbor:"4,keyasint"`
	Data        []byte      `cbor:"5,keyasint"`
}

// store is the SQLite tier.
type store struct {
	pool       *sqlitepool.Pool
	maxEntries int
}

func openStore(ctx context.Context, config sqlitepool.Config, maxEntries int) (*store, error) {
	config.Migrations = migrations
	pool, err := sqlitepool.Open(ctx, config)
	if err != nil {
		return nil, err
	}
	return &store{pool: pool, maxEntries: maxEntries}, nil
}

func (s *store) close() error {
	return s.pool.Close()
}

// get returns the record for key, or nil when absent. A hit refreshes
// the entry's access time.
func (s *store) get(ctx context.Context, key Key, now time.Time) (*record, error) {
	var encoded []byte
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "SELECT record FROM thumbnails WHERE key = ?", &sqlitex.ExecOptions{
			Args: []any{key[:]},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				encoded = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, encoded)
				return nil
			},
		})
		if err != nil || encoded == nil {
			return err
		}
		return sqlitex.Execute(conn, "UPDATE thumbnails SET accessed_at = ? WHERE key = ?", &sqlitex.ExecOptions{
			Args: []any{now.UnixMilli(), key[:]},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("mediacache: reading %s: %w", key, err)
	}
	if encoded == nil {
		return nil, nil
	}
	var stored record
	if err := codec.Unmarshal(encoded, &stored); err != nil {
		return nil, fmt.Errorf("mediacache: decoding %s: %w", key, err)
	}
	return &stored, nil
}

// put writes the record for key and evicts the least recently used
// entries beyond maxEntries.
func (s *store) put(ctx context.Context, key Key, stored record, now time.Time) error {
	encoded, err := codec.Marshal(stored)
	if err != nil {
		return fmt.Errorf("mediacache: encoding %s: %w", key, err)
	}
	return s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"INSERT OR REPLACE INTO thumbnails (key, record, accessed_at) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{key[:], encoded, now.UnixMilli()}})
		if err != nil {
			return fmt.Errorf("mediacache: writing %s: %w", key, err)
		}
		if s.maxEntries <= 0 {
			return nil
		}
		err = sqlitex.Execute(conn,
			`DELETE FROM thumbnails WHERE key IN (
				SELECT key FROM thumbnails ORDER BY accessed_at DESC LIMIT -1 OFFSET ?
			)`,
			&sqlitex.ExecOptions{Args: []any{s.maxEntries}})
		if err != nil {
			return fmt.Errorf("mediacache: evicting: %w", err)
		}
		return nil
	})
}

// count returns the number of stored entries.
func (s *store) count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT count(*) FROM thumbnails", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	return count, err
}
