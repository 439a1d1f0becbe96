// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// connectionPragmas run on every connection before its first use.
var connectionPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA cache_size=-4096",
	"PRAGMA temp_store=MEMORY",
}

// Config describes a database to open. Only Path is required.
type Config struct {
	// Path names the database file. Its directory must exist.
	Path string

	// PoolSize defaults to 2: the UI reads while a background
	// fetch writes.
	PoolSize int

	// Logger defaults to discarding.
	Logger *slog.Logger

	// Migrations are schema scripts. Script i moves the database from
	// PRAGMA user_version i to i+1. Only append to a released list.
	Migrations []string
}

// Pool hands out SQLite connections. The pool is safe for concurrent
// use; a borrowed *sqlite.Conn belongs to one goroutine until it is
// returned.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open opens the database at cfg.Path and brings its schema up to
// date. A database migrated by a newer binary is refused.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = 2
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: size,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range connectionPragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}
	pool := &Pool{inner: inner, logger: logger, path: cfg.Path}

	from, to, err := pool.migrate(ctx, cfg.Migrations)
	if err != nil {
		inner.Close()
		return nil, err
	}
	if from != to {
		logger.Info("sqlite schema migrated", "path", cfg.Path, "from", from, "to", to)
	}
	logger.Debug("sqlite pool opened", "path", cfg.Path, "pool_size", size)
	return pool, nil
}

// Take borrows a connection, waiting for one to come free until ctx
// is done. Return it with Put.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: %s: %w", p.path, err)
	}
	return conn, nil
}

// Put returns a borrowed connection. Put(nil) is a no-op.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Do runs fn on a borrowed connection.
func (p *Pool) Do(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := p.Take(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)
	return fn(conn)
}

// Write runs fn inside an immediate transaction, which commits when
// fn returns nil and rolls back otherwise.
func (p *Pool) Write(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	return p.Do(ctx, func(conn *sqlite.Conn) (err error) {
		end, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("sqlitepool: begin: %w", err)
		}
		defer end(&err)
		return fn(conn)
	})
}

// Close waits for borrowed connections to come back and closes them.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Warn("closing sqlite pool", "path", p.path, "error", err)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	return nil
}

// migrate runs the scripts past the stored user_version and returns
// the version before and after.
func (p *Pool) migrate(ctx context.Context, migrations []string) (from, to int, err error) {
	if len(migrations) == 0 {
		return 0, 0, nil
	}
	err = p.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.ExecuteTransient(conn, "PRAGMA user_version", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				from = stmt.ColumnInt(0)
				return nil
			},
		})
		if err != nil {
			return fmt.Errorf("sqlitepool: reading user_version: %w", err)
		}
		if from > len(migrations) {
			return fmt.Errorf("sqlitepool: %s is at schema version %d but only %d migrations are known",
				p.path, from, len(migrations))
		}
		for version := from; version < len(migrations); version++ {
			if err := sqlitex.ExecuteScript(conn, migrations[version], nil); err != nil {
				return fmt.Errorf("sqlitepool: migration %d: %w", version+1, err)
			}
		}
		if from == len(migrations) {
			return nil
		}
		// PRAGMA takes no bound parameters.
		return sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA user_version = %d", len(migrations)), nil)
	})
	if err != nil {
		return from, from, err
	}
	return from, len(migrations), nil
}
