// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE NEXT TO MONGODB?
// Production runs against MongoDB (see repository/mongodb). SQLite is the
// embedded backend: no server to install, and ":memory:" gives every test
// its own throwaway database. Select it with DATABASE_URI=sqlite://<path>.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code, so no C compiler is needed.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// The blank import registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/event-rsvp/internal/repository"
)

// compile-time check that *DB satisfies everything the server needs from a store
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/rsvp.db"  → file-based database (persistent)
//   - ":memory:"      → in-memory database (great for tests, lost on close)
//
// ONE CONNECTION:
// SQLite serialises writers anyway, and every new connection to ":memory:"
// opens a brand-new empty database. Capping the pool at one connection keeps
// the in-memory case correct and costs nothing for the file case.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Ping forces a real connection so a bad path fails here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Healthy pings the database with a short timeout.
func (db *DB) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.conn.PingContext(ctx) == nil
}

// migrate creates the users table and its indexes.
//
// CREATE ... IF NOT EXISTS makes every statement safe to re-run on startup.
//
// UNIQUENESS RULES:
//   - email is UNIQUE with NOCASE collation, so "Jo@Doe.com" and "jo@doe.com"
//     collide even if a caller forgets to lower-case.
//   - google_id is nullable. The partial unique index only covers non-NULL
//     values, so any number of users can have no Google account linked.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name  TEXT NOT NULL,
			email      TEXT NOT NULL UNIQUE COLLATE NOCASE,
			phone      TEXT NOT NULL DEFAULT '',
			google_id  TEXT,
			picture    TEXT NOT NULL DEFAULT '',
			has_rsvpd  INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_google_id
			ON users(google_id) WHERE google_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_users_name ON users(first_name, last_name);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating users indexes: %w", err)
	}

	return nil
}
