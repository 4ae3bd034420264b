// Package serializer connects entity renderers to the HTTP host. Each
// content type is served by a Serializer built per request from a Factory;
// the Registry maps media types and file extensions to factories.
package serializer

import (
	"log/slog"

	"github.com/starford/tiddlyhal/internal/models"
	"github.com/starford/tiddlyhal/internal/render"
)

// Env is the request context a serializer is built with.
type Env struct {
	// BaseURI prefixes every link, either absolute or path-only.
	BaseURI string
	// Listing describes the tiddler collection being served, if any.
	Listing render.ListContext
	// Revision is set when a single historical revision was requested.
	Revision bool
	Logger   *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Serializer renders entities the host has already fetched and authorized.
type Serializer interface {
	ListBags(bags []models.Bag) ([]byte, error)
	ListRecipes(recipes []models.Recipe) ([]byte, error)
	ListTiddlers(tiddlers []models.Tiddler) ([]byte, error)
	Bag(bag models.Bag) ([]byte, error)
	Recipe(recipe models.Recipe) ([]byte, error)
	Tiddler(tiddler models.Tiddler) ([]byte, error)
}

// RootSerializer is implemented by serializers that can render the service
// root. The host falls back to its own root page for the others.
type RootSerializer interface {
	Root() ([]byte, error)
}

// Factory builds a Serializer for one request.
type Factory func(env Env) Serializer
