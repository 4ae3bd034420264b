package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/tiddlyhal/internal/apperr"
	"github.com/starford/tiddlyhal/internal/models"
	"github.com/starford/tiddlyhal/internal/storage"
)

// UpsertBag inserts or replaces a bag definition.
func (db *DB) UpsertBag(b models.Bag, checksum string) error {
	policy, err := json.Marshal(b.Policy)
	if err != nil {
		return fmt.Errorf("index: encode policy: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO bags (name, desc, policy, checksum)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			desc     = excluded.desc,
			policy   = excluded.policy,
			checksum = excluded.checksum
	`, b.Name, b.Desc, string(policy), checksum)
	if err != nil {
		return fmt.Errorf("index: upsert bag: %w", err)
	}
	return nil
}

// GetBag returns one bag or apperr.ErrNotFound.
func (db *DB) GetBag(name string) (models.Bag, error) {
	var b models.Bag
	var policy string
	err := db.conn.QueryRow(`SELECT name, desc, policy FROM bags WHERE name = ?`, name).
		Scan(&b.Name, &b.Desc, &policy)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bag{}, fmt.Errorf("index: bag %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Bag{}, fmt.Errorf("index: get bag: %w", err)
	}
	_ = json.Unmarshal([]byte(policy), &b.Policy)
	return b, nil
}

// ListBags returns every bag ordered by name.
func (db *DB) ListBags() ([]models.Bag, error) {
	rows, err := db.conn.Query(`SELECT name, desc, policy FROM bags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("index: list bags: %w", err)
	}
	defer rows.Close()

	var out []models.Bag
	for rows.Next() {
		var b models.Bag
		var policy string
		if err := rows.Scan(&b.Name, &b.Desc, &policy); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(policy), &b.Policy)
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBag removes a bag definition. Its tiddlers are removed separately.
func (db *DB) DeleteBag(name string) error {
	if _, err := db.conn.Exec(`DELETE FROM bags WHERE name = ?`, name); err != nil {
		return fmt.Errorf("index: delete bag: %w", err)
	}
	return nil
}

// UpsertRecipe inserts or replaces a recipe definition.
func (db *DB) UpsertRecipe(rc models.Recipe, checksum string) error {
	policy, err := json.Marshal(rc.Policy)
	if err != nil {
		return fmt.Errorf("index: encode policy: %w", err)
	}
	lines := rc.Lines
	if lines == nil {
		lines = []models.RecipeLine{}
	}
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("index: encode recipe lines: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO recipes (name, desc, policy, lines, checksum)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			desc     = excluded.desc,
			policy   = excluded.policy,
			lines    = excluded.lines,
			checksum = excluded.checksum
	`, rc.Name, rc.Desc, string(policy), string(linesJSON), checksum)
	if err != nil {
		return fmt.Errorf("index: upsert recipe: %w", err)
	}
	return nil
}

// GetRecipe returns one recipe or apperr.ErrNotFound.
func (db *DB) GetRecipe(name string) (models.Recipe, error) {
	var rc models.Recipe
	var policy, lines string
	err := db.conn.QueryRow(`SELECT name, desc, policy, lines FROM recipes WHERE name = ?`, name).
		Scan(&rc.Name, &rc.Desc, &policy, &lines)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Recipe{}, fmt.Errorf("index: recipe %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Recipe{}, fmt.Errorf("index: get recipe: %w", err)
	}
	_ = json.Unmarshal([]byte(policy), &rc.Policy)
	_ = json.Unmarshal([]byte(lines), &rc.Lines)
	return rc, nil
}

// ListRecipes returns every recipe ordered by name.
func (db *DB) ListRecipes() ([]models.Recipe, error) {
	rows, err := db.conn.Query(`SELECT name, desc, policy, lines FROM recipes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("index: list recipes: %w", err)
	}
	defer rows.Close()

	var out []models.Recipe
	for rows.Next() {
		var rc models.Recipe
		var policy, lines string
		if err := rows.Scan(&rc.Name, &rc.Desc, &policy, &lines); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(policy), &rc.Policy)
		_ = json.Unmarshal([]byte(lines), &rc.Lines)
		out = append(out, rc)
	}
	return out, rows.Err()
}

// DeleteRecipe removes a recipe definition.
func (db *DB) DeleteRecipe(name string) error {
	if _, err := db.conn.Exec(`DELETE FROM recipes WHERE name = ?`, name); err != nil {
		return fmt.Errorf("index: delete recipe: %w", err)
	}
	return nil
}

// PutTiddler stores t as the current version of (t.Bag, t.Title) and returns
// its revision id. A new revision is recorded only when checksum differs from
// the current one; otherwise the existing revision id is returned.
func (db *DB) PutTiddler(t models.Tiddler, checksum, path string) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current int
	var currentSum string
	err = tx.QueryRow(`SELECT revision, checksum FROM tiddlers WHERE bag = ? AND title = ?`, t.Bag, t.Title).
		Scan(&current, &currentSum)
	switch {
	case err == nil && currentSum == checksum:
		if _, err := tx.Exec(`UPDATE tiddlers SET path = ? WHERE bag = ? AND title = ?`, path, t.Bag, t.Title); err != nil {
			return 0, fmt.Errorf("index: update path: %w", err)
		}
		return current, tx.Commit()
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("index: current revision: %w", err)
	}

	var latest int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(revision), 0) FROM revisions WHERE bag = ? AND title = ?`, t.Bag, t.Title).
		Scan(&latest); err != nil {
		return 0, fmt.Errorf("index: latest revision: %w", err)
	}
	rev := latest + 1

	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	fields := t.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	fieldsJSON, _ := json.Marshal(fields)

	_, err = tx.Exec(`
		INSERT INTO revisions (bag, title, revision, type, tags, fields, creator, modifier, created, modified, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Bag, t.Title, rev, t.Type, string(tagsJSON), string(fieldsJSON),
		t.Creator, t.Modifier, models.FormatTimestamp(t.Created), models.FormatTimestamp(t.Modified), t.Text)
	if err != nil {
		return 0, fmt.Errorf("index: insert revision: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO tiddlers (bag, title, revision, checksum, path)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(bag, title) DO UPDATE SET
			revision = excluded.revision,
			checksum = excluded.checksum,
			path     = excluded.path
	`, t.Bag, t.Title, rev, checksum, path)
	if err != nil {
		return 0, fmt.Errorf("index: upsert tiddler: %w", err)
	}

	body := ""
	if models.EncodingForType(t.Type) == models.EncodingText {
		body = string(t.Text)
	}
	if err := ftsUpsert(tx, t.Bag, t.Title, body, tags); err != nil {
		return 0, err
	}

	return rev, tx.Commit()
}

const tiddlerColumns = `r.bag, r.title, r.revision, r.type, r.tags, r.fields,
	r.creator, r.modifier, r.created, r.modified, r.text`

// GetTiddler returns the current version of a tiddler.
func (db *DB) GetTiddler(bag, title string) (models.Tiddler, error) {
	row := db.conn.QueryRow(`
		SELECT `+tiddlerColumns+`
		FROM tiddlers t JOIN revisions r
		  ON r.bag = t.bag AND r.title = t.title AND r.revision = t.revision
		WHERE t.bag = ? AND t.title = ?
	`, bag, title)
	td, err := scanTiddler(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Tiddler{}, fmt.Errorf("index: tiddler %q in bag %q: %w", title, bag, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Tiddler{}, fmt.Errorf("index: get tiddler: %w", err)
	}
	return td, nil
}

// GetRevision returns one stored revision of a tiddler.
func (db *DB) GetRevision(bag, title string, revision int) (models.Tiddler, error) {
	row := db.conn.QueryRow(`
		SELECT `+tiddlerColumns+`
		FROM revisions r
		WHERE r.bag = ? AND r.title = ? AND r.revision = ?
	`, bag, title, revision)
	td, err := scanTiddler(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Tiddler{}, fmt.Errorf("index: revision %d of %q: %w", revision, title, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Tiddler{}, fmt.Errorf("index: get revision: %w", err)
	}
	return td, nil
}

// ListRevisions returns every stored revision of a tiddler, newest first.
// A tiddler with no revisions yields apperr.ErrNotFound.
func (db *DB) ListRevisions(bag, title string) ([]models.Tiddler, error) {
	rows, err := db.conn.Query(`
		SELECT `+tiddlerColumns+`
		FROM revisions r
		WHERE r.bag = ? AND r.title = ?
		ORDER BY r.revision DESC
	`, bag, title)
	if err != nil {
		return nil, fmt.Errorf("index: list revisions: %w", err)
	}
	out, err := scanTiddlers(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("index: revisions of %q: %w", title, apperr.ErrNotFound)
	}
	return out, nil
}

// BagTiddlers returns the current version of every tiddler in a bag, ordered
// by title.
func (db *DB) BagTiddlers(bag string) ([]models.Tiddler, error) {
	rows, err := db.conn.Query(`
		SELECT `+tiddlerColumns+`
		FROM tiddlers t JOIN revisions r
		  ON r.bag = t.bag AND r.title = t.title AND r.revision = t.revision
		WHERE t.bag = ?
		ORDER BY t.title
	`, bag)
	if err != nil {
		return nil, fmt.Errorf("index: bag tiddlers: %w", err)
	}
	return scanTiddlers(rows)
}

// DeleteTiddler removes a tiddler together with its revision history.
func (db *DB) DeleteTiddler(bag, title string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM tiddlers WHERE bag = ? AND title = ?`, bag, title); err != nil {
		return fmt.Errorf("index: delete tiddler: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM revisions WHERE bag = ? AND title = ?`, bag, title); err != nil {
		return fmt.Errorf("index: delete revisions: %w", err)
	}
	ftsDelete(tx, bag, title)
	return tx.Commit()
}

// AllChecksums returns the stored checksum of every indexed vault file,
// keyed by vault path.
func (db *DB) AllChecksums() (map[string]string, error) {
	m := make(map[string]string)

	rows, err := db.conn.Query(`SELECT name, checksum FROM bags`)
	if err != nil {
		return nil, fmt.Errorf("index: bag checksums: %w", err)
	}
	if err := collectChecksums(rows, m, storage.BagPath); err != nil {
		return nil, err
	}

	rows, err = db.conn.Query(`SELECT name, checksum FROM recipes`)
	if err != nil {
		return nil, fmt.Errorf("index: recipe checksums: %w", err)
	}
	if err := collectChecksums(rows, m, storage.RecipePath); err != nil {
		return nil, err
	}

	rows, err = db.conn.Query(`SELECT path, checksum FROM tiddlers`)
	if err != nil {
		return nil, fmt.Errorf("index: tiddler checksums: %w", err)
	}
	if err := collectChecksums(rows, m, func(p string) string { return p }); err != nil {
		return nil, err
	}
	return m, nil
}

func collectChecksums(rows *sql.Rows, m map[string]string, pathOf func(string) string) error {
	defer rows.Close()
	for rows.Next() {
		var key, cs string
		if err := rows.Scan(&key, &cs); err != nil {
			return err
		}
		m[pathOf(key)] = cs
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTiddler(row rowScanner) (models.Tiddler, error) {
	var t models.Tiddler
	var tags, fields, created, modified string
	err := row.Scan(&t.Bag, &t.Title, &t.Revision, &t.Type, &tags, &fields,
		&t.Creator, &t.Modifier, &created, &modified, &t.Text)
	if err != nil {
		return models.Tiddler{}, err
	}
	_ = json.Unmarshal([]byte(tags), &t.Tags)
	_ = json.Unmarshal([]byte(fields), &t.Fields)
	t.Created, _ = models.ParseTimestamp(created)
	t.Modified, _ = models.ParseTimestamp(modified)
	t.Encoding = models.EncodingForType(t.Type)
	return t, nil
}

func scanTiddlers(rows *sql.Rows) ([]models.Tiddler, error) {
	defer rows.Close()
	var out []models.Tiddler
	for rows.Next() {
		t, err := scanTiddler(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
