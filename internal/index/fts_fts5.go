//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/tiddlyhal/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS tiddlers_fts USING fts5(
			bag UNINDEXED,
			title,
			text,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, bag, title, text string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM tiddlers_fts WHERE bag = ? AND title = ?`, bag, title)
	_, err := tx.Exec(`INSERT INTO tiddlers_fts (bag, title, text, tags) VALUES (?, ?, ?, ?)`,
		bag, title, text, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, bag, title string) {
	_, _ = tx.Exec(`DELETE FROM tiddlers_fts WHERE bag = ? AND title = ?`, bag, title)
}

// Search runs an FTS5 query and returns the current version of every
// matching tiddler, best match first.
func (db *DB) Search(query string, limit int) ([]models.Tiddler, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT `+tiddlerColumns+`
		FROM tiddlers_fts f
		JOIN tiddlers t ON t.bag = f.bag AND t.title = f.title
		JOIN revisions r ON r.bag = t.bag AND r.title = t.title AND r.revision = t.revision
		WHERE tiddlers_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanTiddlers(rows)
}
