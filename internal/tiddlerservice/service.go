// Package tiddlerservice retrieves and stores bags, recipes and tiddlers for
// the host. Reads go through the SQLite index; writes go to the vault first
// and are then indexed.
package tiddlerservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/starford/tiddlyhal/internal/apperr"
	"github.com/starford/tiddlyhal/internal/checksum"
	"github.com/starford/tiddlyhal/internal/filter"
	"github.com/starford/tiddlyhal/internal/index"
	"github.com/starford/tiddlyhal/internal/models"
	"github.com/starford/tiddlyhal/internal/parser"
	"github.com/starford/tiddlyhal/internal/render"
	"github.com/starford/tiddlyhal/internal/storage"
)

// Service coordinates storage and index operations.
type Service struct {
	store storage.Provider
	db    index.Store
	now   func() time.Time
}

// NewService creates a new tiddler service.
func NewService(store storage.Provider, db index.Store) *Service {
	return &Service{store: store, db: db, now: time.Now}
}

// ListBags returns every bag ordered by name.
func (s *Service) ListBags(_ context.Context) ([]models.Bag, error) {
	return s.db.ListBags()
}

// GetBag returns one bag.
func (s *Service) GetBag(_ context.Context, name string) (models.Bag, error) {
	if err := validateName("bag", name); err != nil {
		return models.Bag{}, err
	}
	return s.db.GetBag(name)
}

// PutBag creates or replaces a bag definition. It reports whether the bag
// was newly created.
func (s *Service) PutBag(_ context.Context, b models.Bag) (bool, error) {
	if err := validateName("bag", b.Name); err != nil {
		return false, err
	}
	_, getErr := s.db.GetBag(b.Name)
	created, err := missing(getErr)
	if err != nil {
		return false, err
	}

	data, err := parser.FormatBag(b)
	if err != nil {
		return false, err
	}
	if err := s.store.Write(storage.BagPath(b.Name), data); err != nil {
		return false, err
	}
	return created, s.db.UpsertBag(b, checksum.Sum(data))
}

// missing reports whether a lookup failed only because the entity does not
// exist yet. Any other failure is returned.
func missing(lookupErr error) (bool, error) {
	switch {
	case lookupErr == nil:
		return false, nil
	case errors.Is(lookupErr, apperr.ErrNotFound):
		return true, nil
	}
	return false, lookupErr
}

// ListRecipes returns every recipe ordered by name.
func (s *Service) ListRecipes(_ context.Context) ([]models.Recipe, error) {
	return s.db.ListRecipes()
}

// GetRecipe returns one recipe.
func (s *Service) GetRecipe(_ context.Context, name string) (models.Recipe, error) {
	if err := validateName("recipe", name); err != nil {
		return models.Recipe{}, err
	}
	return s.db.GetRecipe(name)
}

// PutRecipe creates or replaces a recipe definition. Every line must name a
// valid bag and carry a filter that compiles.
func (s *Service) PutRecipe(_ context.Context, rc models.Recipe) (bool, error) {
	if err := validateRecipe(rc); err != nil {
		return false, err
	}
	_, getErr := s.db.GetRecipe(rc.Name)
	created, err := missing(getErr)
	if err != nil {
		return false, err
	}

	data, err := parser.FormatRecipe(rc)
	if err != nil {
		return false, err
	}
	if err := s.store.Write(storage.RecipePath(rc.Name), data); err != nil {
		return false, err
	}
	return created, s.db.UpsertRecipe(rc, checksum.Sum(data))
}

// Tiddlers lists the tiddlers of a bag or recipe.
func (s *Service) Tiddlers(ctx context.Context, ref render.ContainerRef) ([]models.Tiddler, error) {
	if ref.Kind == render.KindRecipe {
		return s.RecipeTiddlers(ctx, ref.Name)
	}
	return s.BagTiddlers(ctx, ref.Name)
}

// BagTiddlers lists the current version of every tiddler in a bag.
func (s *Service) BagTiddlers(ctx context.Context, bag string) ([]models.Tiddler, error) {
	if _, err := s.GetBag(ctx, bag); err != nil {
		return nil, err
	}
	return s.db.BagTiddlers(bag)
}

// RecipeTiddlers composes a recipe: each line contributes its bag's tiddlers
// passing the line filter, and a later line overrides an earlier one with the
// same title. Results are ordered by title and carry the recipe name.
func (s *Service) RecipeTiddlers(ctx context.Context, recipe string) ([]models.Tiddler, error) {
	rc, err := s.GetRecipe(ctx, recipe)
	if err != nil {
		return nil, err
	}
	byTitle := make(map[string]models.Tiddler)
	for _, line := range rc.Lines {
		f, err := filter.Compile(line.Filter)
		if err != nil {
			return nil, fmt.Errorf("tiddlerservice: recipe %q: %w", recipe, err)
		}
		tiddlers, err := s.db.BagTiddlers(line.Bag)
		if err != nil {
			return nil, err
		}
		for _, t := range filter.Apply(f, tiddlers) {
			t.Recipe = recipe
			byTitle[t.Title] = t
		}
	}
	out := make([]models.Tiddler, 0, len(byTitle))
	for _, t := range byTitle {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// Tiddler returns the current version of one tiddler. Through a recipe the
// last line whose bag holds a matching tiddler wins.
func (s *Service) Tiddler(ctx context.Context, ref render.ContainerRef, title string) (models.Tiddler, error) {
	if err := validateName("tiddler", title); err != nil {
		return models.Tiddler{}, err
	}
	if ref.Kind == render.KindBag {
		if _, err := s.GetBag(ctx, ref.Name); err != nil {
			return models.Tiddler{}, err
		}
		return s.db.GetTiddler(ref.Name, title)
	}

	rc, err := s.GetRecipe(ctx, ref.Name)
	if err != nil {
		return models.Tiddler{}, err
	}
	for i := len(rc.Lines) - 1; i >= 0; i-- {
		line := rc.Lines[i]
		t, err := s.db.GetTiddler(line.Bag, title)
		if err != nil {
			continue
		}
		f, err := filter.Compile(line.Filter)
		if err != nil {
			return models.Tiddler{}, fmt.Errorf("tiddlerservice: recipe %q: %w", rc.Name, err)
		}
		if f(t) {
			t.Recipe = rc.Name
			return t, nil
		}
	}
	return models.Tiddler{}, fmt.Errorf("tiddlerservice: tiddler %q in recipe %q: %w", title, rc.Name, apperr.ErrNotFound)
}

// Revisions lists every stored revision of a tiddler, newest first.
func (s *Service) Revisions(ctx context.Context, ref render.ContainerRef, title string) ([]models.Tiddler, error) {
	cur, err := s.Tiddler(ctx, ref, title)
	if err != nil {
		return nil, err
	}
	revs, err := s.db.ListRevisions(cur.Bag, title)
	if err != nil {
		return nil, err
	}
	for i := range revs {
		revs[i].Recipe = cur.Recipe
	}
	return revs, nil
}

// Revision returns one stored revision of a tiddler.
func (s *Service) Revision(ctx context.Context, ref render.ContainerRef, title string, revision int) (models.Tiddler, error) {
	if revision < 1 {
		return models.Tiddler{}, fmt.Errorf("tiddlerservice: revision %d: %w", revision, apperr.ErrInvalidInput)
	}
	cur, err := s.Tiddler(ctx, ref, title)
	if err != nil {
		return models.Tiddler{}, err
	}
	t, err := s.db.GetRevision(cur.Bag, title, revision)
	if err != nil {
		return models.Tiddler{}, err
	}
	t.Recipe = cur.Recipe
	return t, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]models.Tiddler, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	return s.db.Search(query, limit)
}

// PutTiddler stores t in a bag, or through a recipe in the last bag whose
// line filter accepts it. Created and creator carry over from the current
// version; modified is stamped now. It returns the stored tiddler with its
// new revision id.
func (s *Service) PutTiddler(ctx context.Context, ref render.ContainerRef, t models.Tiddler) (models.Tiddler, error) {
	if err := validateName("tiddler", t.Title); err != nil {
		return models.Tiddler{}, err
	}
	bag, err := s.targetBag(ctx, ref, t)
	if err != nil {
		return models.Tiddler{}, err
	}
	t.Bag = bag
	t.Recipe = ""
	t.Encoding = models.EncodingForType(t.Type)

	now := s.now().UTC().Truncate(time.Second)
	t.Modified = now
	if prev, err := s.db.GetTiddler(bag, t.Title); err == nil {
		t.Created = prev.Created
		if t.Creator == "" {
			t.Creator = prev.Creator
		}
	}
	if t.Created.IsZero() {
		t.Created = now
	}
	if t.Creator == "" {
		t.Creator = t.Modifier
	}

	data := parser.FormatTiddler(t)
	p := storage.TiddlerPath(bag, t.Title)
	if err := s.store.Write(p, data); err != nil {
		return models.Tiddler{}, err
	}
	if _, err := s.db.PutTiddler(t, checksum.Sum(data), p); err != nil {
		return models.Tiddler{}, err
	}
	stored, err := s.db.GetTiddler(bag, t.Title)
	if err != nil {
		return models.Tiddler{}, err
	}
	if ref.Kind == render.KindRecipe {
		stored.Recipe = ref.Name
	}
	return stored, nil
}

func (s *Service) targetBag(ctx context.Context, ref render.ContainerRef, t models.Tiddler) (string, error) {
	if ref.Kind == render.KindBag {
		if _, err := s.GetBag(ctx, ref.Name); err != nil {
			return "", err
		}
		return ref.Name, nil
	}
	rc, err := s.GetRecipe(ctx, ref.Name)
	if err != nil {
		return "", err
	}
	for i := len(rc.Lines) - 1; i >= 0; i-- {
		f, err := filter.Compile(rc.Lines[i].Filter)
		if err != nil {
			return "", fmt.Errorf("tiddlerservice: recipe %q: %w", rc.Name, err)
		}
		if f(t) {
			if _, err := s.db.GetBag(rc.Lines[i].Bag); err != nil {
				return "", err
			}
			return rc.Lines[i].Bag, nil
		}
	}
	return "", fmt.Errorf("tiddlerservice: no bag in recipe %q accepts %q: %w", rc.Name, t.Title, apperr.ErrConflict)
}
