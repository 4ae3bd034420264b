package hal

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/starford/tiddlyhal/internal/apperr"
)

// Reserved document keys.
const (
	LinksKey    = "_links"
	EmbeddedKey = "_embedded"
)

// Document is a HAL resource: a flat data payload plus _links and an
// optional _embedded section. Data must not use the reserved keys.
type Document struct {
	Data     map[string]any
	Links    *LinkSet
	embedded *orderedmap.OrderedMap[string, []*Document]
}

// NewDocument returns a document over data with the given links. A nil
// data map is treated as empty; a nil links set as an empty one.
func NewDocument(data map[string]any, links *LinkSet) *Document {
	if data == nil {
		data = map[string]any{}
	}
	if links == nil {
		links = NewLinkSet()
	}
	return &Document{Data: data, Links: links}
}

// Embed appends docs under rel in _embedded. Calling Embed with no docs
// still registers rel, so it serializes as an empty array.
func (d *Document) Embed(rel string, docs ...*Document) {
	if d.embedded == nil {
		d.embedded = orderedmap.New[string, []*Document]()
	}
	existing, ok := d.embedded.Get(rel)
	if !ok {
		existing = []*Document{}
	}
	d.embedded.Set(rel, append(existing, docs...))
}

// Embedded returns the documents embedded under rel.
func (d *Document) Embedded(rel string) ([]*Document, bool) {
	if d.embedded == nil {
		return nil, false
	}
	return d.embedded.Get(rel)
}

// HasEmbedded reports whether the document has an _embedded section.
func (d *Document) HasEmbedded() bool {
	return d.embedded != nil && d.embedded.Len() > 0
}

// object builds the document's JSON object: data keys in sorted order,
// then _links, then _embedded when present.
func (d *Document) object() *orderedmap.OrderedMap[string, any] {
	obj := orderedmap.New[string, any]()
	for _, key := range slices.Sorted(maps.Keys(d.Data)) {
		obj.Set(key, d.Data[key])
	}
	links := d.Links
	if links == nil {
		links = NewLinkSet()
	}
	obj.Set(LinksKey, links.object())
	if d.HasEmbedded() {
		emb := orderedmap.New[string, any]()
		for pair := d.embedded.Oldest(); pair != nil; pair = pair.Next() {
			nested := make([]*orderedmap.OrderedMap[string, any], len(pair.Value))
			for i, doc := range pair.Value {
				nested[i] = doc.object()
			}
			emb.Set(pair.Key, nested)
		}
		obj.Set(EmbeddedKey, emb)
	}
	return obj
}

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.object())
}

// JSON serializes the document. Values without a JSON representation
// produce an error wrapping apperr.ErrSerialization.
func (d *Document) JSON() ([]byte, error) {
	out, err := json.Marshal(d.object())
	if err != nil {
		return nil, fmt.Errorf("hal: %w: %v", apperr.ErrSerialization, err)
	}
	return out, nil
}
