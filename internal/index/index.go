package index

import "github.com/starford/tiddlyhal/internal/models"

// Store is the read/write surface the service layer depends on.
type Store interface {
	UpsertBag(b models.Bag, checksum string) error
	GetBag(name string) (models.Bag, error)
	ListBags() ([]models.Bag, error)
	DeleteBag(name string) error

	UpsertRecipe(rc models.Recipe, checksum string) error
	GetRecipe(name string) (models.Recipe, error)
	ListRecipes() ([]models.Recipe, error)
	DeleteRecipe(name string) error

	PutTiddler(t models.Tiddler, checksum, path string) (int, error)
	GetTiddler(bag, title string) (models.Tiddler, error)
	GetRevision(bag, title string, revision int) (models.Tiddler, error)
	ListRevisions(bag, title string) ([]models.Tiddler, error)
	BagTiddlers(bag string) ([]models.Tiddler, error)
	DeleteTiddler(bag, title string) error

	Search(query string, limit int) ([]models.Tiddler, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
