//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/tiddlyhal/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search falls back to LIKE over the revisions table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error {
	return nil
}

func ftsDelete(_ *sql.Tx, _, _ string) {}

// Search performs a LIKE-based search over the current version of every
// tiddler (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]models.Tiddler, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT `+tiddlerColumns+`
		FROM tiddlers t JOIN revisions r
		  ON r.bag = t.bag AND r.title = t.title AND r.revision = t.revision
		WHERE r.title LIKE ? OR r.tags LIKE ? OR CAST(r.text AS TEXT) LIKE ?
		ORDER BY t.bag, t.title
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanTiddlers(rows)
}
