package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/starford/tiddlyhal/internal/apperr"
	"github.com/starford/tiddlyhal/internal/models"
)

// Plain JSON media types and extension.
const (
	JSONType         = "application/json"
	JSONResponseType = "application/json; charset=UTF-8"
	JSONExtension    = "json"
)

// JSON renders entities as flat attribute mappings without links.
type JSON struct{}

var _ Serializer = JSON{}

// NewJSON is the Factory for JSON.
func NewJSON(Env) Serializer { return JSON{} }

// RegisterJSON installs the plain JSON serializer and its extension in r.
func RegisterJSON(r *Registry) {
	r.Register(JSONType, JSONResponseType, NewJSON)
	r.RegisterExtension(JSONExtension, JSONType)
}

func marshal(v any) ([]byte, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serializer: %w: %v", apperr.ErrSerialization, err)
	}
	return out, nil
}

// ListBags renders bag names.
func (JSON) ListBags(bags []models.Bag) ([]byte, error) {
	names := make([]string, len(bags))
	for i, b := range bags {
		names[i] = b.Name
	}
	return marshal(names)
}

// ListRecipes renders recipe names.
func (JSON) ListRecipes(recipes []models.Recipe) ([]byte, error) {
	names := make([]string, len(recipes))
	for i, rc := range recipes {
		names[i] = rc.Name
	}
	return marshal(names)
}

// ListTiddlers renders tiddler attributes without text.
func (JSON) ListTiddlers(tiddlers []models.Tiddler) ([]byte, error) {
	out := make([]map[string]any, len(tiddlers))
	for i, t := range tiddlers {
		out[i] = t.Attributes()
	}
	return marshal(out)
}

// Bag renders one bag.
func (JSON) Bag(bag models.Bag) ([]byte, error) {
	return marshal(map[string]any{
		"name":   bag.Name,
		"desc":   bag.Desc,
		"policy": bag.Policy.Attributes(),
	})
}

// Recipe renders one recipe.
func (JSON) Recipe(recipe models.Recipe) ([]byte, error) {
	lines := recipe.Lines
	if lines == nil {
		lines = []models.RecipeLine{}
	}
	return marshal(map[string]any{
		"name":   recipe.Name,
		"desc":   recipe.Desc,
		"policy": recipe.Policy.Attributes(),
		"recipe": lines,
	})
}

// Tiddler renders one tiddler with its text.
func (JSON) Tiddler(tiddler models.Tiddler) ([]byte, error) {
	attrs := tiddler.Attributes()
	attrs["text"] = tiddler.RenderedText()
	return marshal(attrs)
}
