package index

import (
	"log/slog"
	"mime"
	"path"

	"github.com/starford/tiddlyhal/internal/checksum"
	"github.com/starford/tiddlyhal/internal/models"
	"github.com/starford/tiddlyhal/internal/parser"
	"github.com/starford/tiddlyhal/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		e, err := indexFile(db, m.Path, data)
		switch {
		case err != nil:
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		case e.Kind == storage.EntryUnknown:
			logger.Debug("sync: skipped", slog.String("path", m.Path))
		default:
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if _, err := removeFile(db, p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile parses the vault file at p and upserts the entity it holds.
// Paths outside the vault layout are ignored and reported as EntryUnknown.
func indexFile(db *DB, p string, data []byte) (storage.Entry, error) {
	e := storage.Classify(p)
	cs := checksum.Sum(data)

	switch e.Kind {
	case storage.EntryBag:
		b, err := parser.ParseBag(e.Bag, data)
		if err != nil {
			return e, err
		}
		return e, db.UpsertBag(b, cs)

	case storage.EntryRecipe:
		rc, err := parser.ParseRecipe(e.Name, data)
		if err != nil {
			return e, err
		}
		return e, db.UpsertRecipe(rc, cs)

	case storage.EntryTiddler:
		t, err := parser.ParseTiddler(data)
		if err != nil {
			return e, err
		}
		// The file name is authoritative so the tiddler stays addressable
		// at the path it was found under.
		t.Title = e.Name
		t.Bag = e.Bag
		_, err = db.PutTiddler(t, cs, p)
		return e, err

	case storage.EntryBinaryTiddler:
		_, err := db.PutTiddler(binaryTiddler(e, data), cs, p)
		return e, err
	}
	return e, nil
}

// removeFile drops the entity stored at vault path p from the index.
func removeFile(db *DB, p string) (storage.Entry, error) {
	e := storage.Classify(p)
	switch e.Kind {
	case storage.EntryBag:
		return e, db.DeleteBag(e.Bag)
	case storage.EntryRecipe:
		return e, db.DeleteRecipe(e.Name)
	case storage.EntryTiddler, storage.EntryBinaryTiddler:
		return e, db.DeleteTiddler(e.Bag, e.Name)
	}
	return e, nil
}

func binaryTiddler(e storage.Entry, data []byte) models.Tiddler {
	ct := mime.TypeByExtension(path.Ext(e.Name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return models.Tiddler{
		Title:    e.Name,
		Bag:      e.Bag,
		Type:     ct,
		Text:     data,
		Encoding: models.EncodingForType(ct),
	}
}
