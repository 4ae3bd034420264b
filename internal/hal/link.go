// Package hal models HAL (Hypertext Application Language) documents: links,
// link sets keyed by relation, and documents carrying data, _links and
// _embedded sections.
package hal

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/yosida95/uritemplate/v3"

	"github.com/starford/tiddlyhal/internal/apperr"
)

// LinkAttributes lists the link attribute keys that are serialized, in
// emission order. Any other key given to NewLink is dropped.
var LinkAttributes = []string{"templated", "type", "name", "profile", "title", "hreflang"}

// Attrs holds optional link attributes keyed by attribute name.
type Attrs map[string]any

// Link is a single HAL link. The zero value is not valid; use NewLink.
type Link struct {
	rel   string
	href  string
	attrs Attrs
}

// NewLink builds a link from a relation, a target and optional attributes.
// Attributes outside LinkAttributes are dropped. A link flagged templated
// must carry a parseable RFC 6570 template.
func NewLink(rel, href string, attrs Attrs) (Link, error) {
	if rel == "" {
		return Link{}, fmt.Errorf("hal: %w: relation is empty", apperr.ErrInvalidLink)
	}
	if href == "" {
		return Link{}, fmt.Errorf("hal: %w: target for %q is empty", apperr.ErrInvalidLink, rel)
	}

	kept := make(Attrs, len(attrs))
	for _, key := range LinkAttributes {
		if v, ok := attrs[key]; ok {
			kept[key] = v
		}
	}

	l := Link{rel: rel, href: href, attrs: kept}
	if l.Templated() {
		if _, err := uritemplate.New(href); err != nil {
			return Link{}, fmt.Errorf("hal: %w: template %q: %v", apperr.ErrInvalidLink, href, err)
		}
	}
	return l, nil
}

// MustLink is like NewLink but panics on error. It is meant for package-level
// links whose arguments are constants.
func MustLink(rel, href string, attrs Attrs) Link {
	l, err := NewLink(rel, href, attrs)
	if err != nil {
		panic(err)
	}
	return l
}

// Rel returns the link relation.
func (l Link) Rel() string { return l.rel }

// Href returns the link target, which may be a URI template.
func (l Link) Href() string { return l.href }

// Attr returns a single attribute value.
func (l Link) Attr(key string) (any, bool) {
	v, ok := l.attrs[key]
	return v, ok
}

// Templated reports whether the target is a URI template.
func (l Link) Templated() bool {
	t, _ := l.attrs["templated"].(bool)
	return t
}

// Expand resolves a templated target with vars. Targets that are not
// templated are returned unchanged.
func (l Link) Expand(vars map[string]string) (string, error) {
	if !l.Templated() {
		return l.href, nil
	}
	tmpl, err := uritemplate.New(l.href)
	if err != nil {
		return "", fmt.Errorf("hal: %w: template %q: %v", apperr.ErrInvalidLink, l.href, err)
	}
	values := uritemplate.Values{}
	for k, v := range vars {
		values.Set(k, uritemplate.String(v))
	}
	return tmpl.Expand(values)
}

// object returns the link's JSON object: href first, then attributes in
// LinkAttributes order.
func (l Link) object() *orderedmap.OrderedMap[string, any] {
	obj := orderedmap.New[string, any]()
	obj.Set("href", l.href)
	for _, key := range LinkAttributes {
		if v, ok := l.attrs[key]; ok {
			obj.Set(key, v)
		}
	}
	return obj
}
