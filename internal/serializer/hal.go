package serializer

import (
	"github.com/starford/tiddlyhal/internal/hal"
	"github.com/starford/tiddlyhal/internal/models"
	"github.com/starford/tiddlyhal/internal/render"
)

// HAL media types and extension.
const (
	HALType         = "application/hal+json"
	HALResponseType = "application/hal+json; charset=UTF-8"
	HALExtension    = "hal"
)

// HAL serializes entities as HAL documents.
type HAL struct {
	renderer *render.Renderer
	env      Env
}

var (
	_ Serializer     = (*HAL)(nil)
	_ RootSerializer = (*HAL)(nil)
)

// NewHAL is the Factory for HAL.
func NewHAL(env Env) Serializer {
	return &HAL{
		renderer: render.New(env.BaseURI, render.WithLogger(env.logger())),
		env:      env,
	}
}

// RegisterHAL installs the HAL serializer and its extension in r.
func RegisterHAL(r *Registry) {
	r.Register(HALType, HALResponseType, NewHAL)
	r.RegisterExtension(HALExtension, HALType)
}

func encode(doc *hal.Document, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	return doc.JSON()
}

// Root renders the service root.
func (h *HAL) Root() ([]byte, error) {
	return encode(h.renderer.Root())
}

// ListBags renders the bag collection.
func (h *HAL) ListBags(bags []models.Bag) ([]byte, error) {
	return encode(h.renderer.Bags(bags))
}

// ListRecipes renders the recipe collection.
func (h *HAL) ListRecipes(recipes []models.Recipe) ([]byte, error) {
	return encode(h.renderer.Recipes(recipes))
}

// ListTiddlers renders a tiddler collection using the env's listing context.
func (h *HAL) ListTiddlers(tiddlers []models.Tiddler) ([]byte, error) {
	return encode(h.renderer.Tiddlers(tiddlers, h.env.Listing))
}

// Bag renders one bag.
func (h *HAL) Bag(bag models.Bag) ([]byte, error) {
	return encode(h.renderer.Bag(bag))
}

// Recipe renders one recipe.
func (h *HAL) Recipe(recipe models.Recipe) ([]byte, error) {
	return encode(h.renderer.Recipe(recipe))
}

// Tiddler renders one tiddler, as a revision when the env says so.
func (h *HAL) Tiddler(tiddler models.Tiddler) ([]byte, error) {
	return encode(h.renderer.Tiddler(tiddler, h.env.Revision))
}
