// Package models defines the domain types served by tiddlyhal.
package models

// Bag is a simple container: an unordered collection of tiddlers.
type Bag struct {
	Name   string `json:"name" yaml:"-"`
	Desc   string `json:"desc" yaml:"desc"`
	Policy Policy `json:"policy" yaml:"policy"`
}

// Recipe is a composed container: an ordered list of bags, each narrowed by
// a filter expression. Tiddlers from later lines override earlier ones with
// the same title.
type Recipe struct {
	Name   string       `json:"name" yaml:"-"`
	Desc   string       `json:"desc" yaml:"desc"`
	Policy Policy       `json:"policy" yaml:"policy"`
	Lines  []RecipeLine `json:"recipe" yaml:"recipe"`
}

// RecipeLine is one (bag, filter) pair of a recipe. An empty filter selects
// every tiddler in the bag.
type RecipeLine struct {
	Bag    string `yaml:"bag"`
	Filter string `yaml:"filter"`
}

// MarshalJSON renders the line as a two-element array, the form TiddlyWeb
// clients expect.
func (l RecipeLine) MarshalJSON() ([]byte, error) {
	return marshalPair(l.Bag, l.Filter)
}

// UnmarshalJSON accepts the two-element array form.
func (l *RecipeLine) UnmarshalJSON(data []byte) error {
	bag, filter, err := unmarshalPair(data)
	if err != nil {
		return err
	}
	l.Bag, l.Filter = bag, filter
	return nil
}
