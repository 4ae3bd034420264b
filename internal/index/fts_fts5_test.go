//go:build sqlite_fts5

package index

import (
	"testing"

	"github.com/starford/tiddlyhal/internal/models"
)

func TestFTS5_MatchesTagsAndReplacesOnUpdate(t *testing.T) {
	db := testDB(t)
	td := models.Tiddler{Title: "Plan", Bag: "work", Tags: []string{"roadmap"}, Text: []byte("quarterly goals")}
	if _, err := db.PutTiddler(td, "1", "p"); err != nil {
		t.Fatal(err)
	}

	res, err := db.Search("roadmap", 10)
	if err != nil || len(res) != 1 {
		t.Fatalf("tag search = %+v, %v", res, err)
	}

	td.Text = []byte("annual targets")
	if _, err := db.PutTiddler(td, "2", "p"); err != nil {
		t.Fatal(err)
	}
	res, _ = db.Search("quarterly", 10)
	if len(res) != 0 {
		t.Errorf("stale fts row still matches: %+v", res)
	}
	res, _ = db.Search("annual", 10)
	if len(res) != 1 || res[0].Revision != 2 {
		t.Errorf("updated text search = %+v", res)
	}
}
