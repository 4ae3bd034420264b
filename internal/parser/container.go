package parser

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/starford/tiddlyhal/internal/models"
)

// ParseBag reads a bag definition (desc, policy). The name comes from the
// vault path, not the file.
func ParseBag(name string, data []byte) (models.Bag, error) {
	var b models.Bag
	if err := yaml.Unmarshal(data, &b); err != nil {
		return models.Bag{}, fmt.Errorf("parser: bag %s: %w", name, err)
	}
	b.Name = name
	return b, nil
}

// ParseRecipe reads a recipe definition (desc, policy, recipe lines).
func ParseRecipe(name string, data []byte) (models.Recipe, error) {
	var rc models.Recipe
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return models.Recipe{}, fmt.Errorf("parser: recipe %s: %w", name, err)
	}
	rc.Name = name
	return rc, nil
}

// FormatBag renders a bag definition as YAML.
func FormatBag(b models.Bag) ([]byte, error) {
	return yaml.Marshal(b)
}

// FormatRecipe renders a recipe definition as YAML.
func FormatRecipe(rc models.Recipe) ([]byte, error) {
	return yaml.Marshal(rc)
}
