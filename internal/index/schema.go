// Package index mirrors the vault into SQLite: current bags, recipes and
// tiddlers, every stored tiddler revision, and full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS bags (
	name     TEXT PRIMARY KEY,
	desc     TEXT NOT NULL DEFAULT '',
	policy   TEXT NOT NULL DEFAULT '{}',
	checksum TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS recipes (
	name     TEXT PRIMARY KEY,
	desc     TEXT NOT NULL DEFAULT '',
	policy   TEXT NOT NULL DEFAULT '{}',
	lines    TEXT NOT NULL DEFAULT '[]',
	checksum TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS revisions (
	bag      TEXT NOT NULL,
	title    TEXT NOT NULL,
	revision INTEGER NOT NULL,
	type     TEXT NOT NULL DEFAULT '',
	tags     TEXT NOT NULL DEFAULT '[]',
	fields   TEXT NOT NULL DEFAULT '{}',
	creator  TEXT NOT NULL DEFAULT '',
	modifier TEXT NOT NULL DEFAULT '',
	created  TEXT NOT NULL DEFAULT '',
	modified TEXT NOT NULL DEFAULT '',
	text     BLOB,
	PRIMARY KEY (bag, title, revision)
);

CREATE TABLE IF NOT EXISTS tiddlers (
	bag      TEXT NOT NULL,
	title    TEXT NOT NULL,
	revision INTEGER NOT NULL,
	checksum TEXT NOT NULL DEFAULT '',
	path     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (bag, title)
);

CREATE INDEX IF NOT EXISTS idx_tiddlers_path ON tiddlers(path);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
