// Package store manages the SQLite database that mirrors the remote book
// review collections on the local device. It is the source of truth for every
// read the rest of the application performs.
//
// Only this package may open or query the database. All other packages
// receive a [*DB] and use the typed sub-stores hanging off it.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
    id          TEXT    PRIMARY KEY,
    owner_id    TEXT    NOT NULL,
    owner_name  TEXT    NOT NULL DEFAULT '',
    title       TEXT    NOT NULL,
    author      TEXT    NOT NULL,
    review      TEXT    NOT NULL,
    rating      REAL    NOT NULL DEFAULT 0,
    image_kind  TEXT    NOT NULL DEFAULT '',
    image_value TEXT    NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_owner   ON posts (owner_id);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts (created_at DESC);

CREATE TABLE IF NOT EXISTS profiles (
    id          TEXT    PRIMARY KEY,
    email       TEXT    NOT NULL,
    name        TEXT    NOT NULL,
    image_kind  TEXT    NOT NULL DEFAULT '',
    image_value TEXT    NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity      TEXT    NOT NULL,
    op          TEXT    NOT NULL,
    entity_id   TEXT    NOT NULL,
    payload     TEXT    NOT NULL DEFAULT '',
    attempts    INTEGER NOT NULL DEFAULT 0,
    enqueued_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outbox_enqueued ON outbox (enqueued_at);
`

// DB is the shared handle to the local mirror. Construct one with [Open] at
// process start and pass it to every component that needs local state.
type DB struct {
	sql *sql.DB

	// Posts mirrors the remote "posts" collection.
	Posts *PostStore
	// Profiles mirrors the remote "users" collection.
	Profiles *ProfileStore
	// Outbox holds remote mirror operations that have not succeeded yet.
	Outbox *Outbox
}

// DefaultPath returns the default database location:
// ~/.local/share/bookboard/bookboard.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "bookboard", "bookboard.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema,
// and configures WAL mode for better concurrent read performance.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	d := &DB{sql: db}
	d.Posts = &PostStore{db: db}
	d.Profiles = &ProfileStore{db: db}
	d.Outbox = &Outbox{db: db}
	return d, nil
}

// Close releases the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// scanner matches both *sql.Row and *sql.Rows so the scan helpers can be
// shared between point lookups and list queries.
type scanner interface {
	Scan(dest ...any) error
}
