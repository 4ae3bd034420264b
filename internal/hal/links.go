package hal

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// LinkSet is the _links section of a document. Relations keep the order in
// which they were first added. A relation added once serializes as a single
// link object; added again it becomes an array of link objects in insertion
// order.
type LinkSet struct {
	rels *orderedmap.OrderedMap[string, []Link]
}

// NewLinkSet returns an empty link set.
func NewLinkSet() *LinkSet {
	return &LinkSet{rels: orderedmap.New[string, []Link]()}
}

// Add appends a link under its relation.
func (s *LinkSet) Add(link Link) {
	existing, _ := s.rels.Get(link.Rel())
	s.rels.Set(link.Rel(), append(existing, link))
}

// Get returns every link stored under rel, in insertion order.
func (s *LinkSet) Get(rel string) []Link {
	links, _ := s.rels.Get(rel)
	return links
}

// First returns the first link stored under rel.
func (s *LinkSet) First(rel string) (Link, bool) {
	links := s.Get(rel)
	if len(links) == 0 {
		return Link{}, false
	}
	return links[0], true
}

// Has reports whether rel has at least one link.
func (s *LinkSet) Has(rel string) bool {
	_, ok := s.rels.Get(rel)
	return ok
}

// Rels returns the relation names in first-insertion order.
func (s *LinkSet) Rels() []string {
	out := make([]string, 0, s.rels.Len())
	for pair := s.rels.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Len returns the number of distinct relations.
func (s *LinkSet) Len() int {
	return s.rels.Len()
}

// object builds the _links JSON object.
func (s *LinkSet) object() *orderedmap.OrderedMap[string, any] {
	obj := orderedmap.New[string, any]()
	for pair := s.rels.Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value) == 1 {
			obj.Set(pair.Key, pair.Value[0].object())
			continue
		}
		arr := make([]*orderedmap.OrderedMap[string, any], len(pair.Value))
		for i, l := range pair.Value {
			arr[i] = l.object()
		}
		obj.Set(pair.Key, arr)
	}
	return obj
}

// MarshalJSON implements json.Marshaler.
func (s *LinkSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.object())
}
