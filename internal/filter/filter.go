// Package filter compiles the recipe filter expressions understood by
// tiddlyhal: ";"- or "&"-separated terms of the form "field:value" or
// "field:!value", each optionally written as "select=field:value". All terms
// must match.
package filter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/starford/tiddlyhal/internal/apperr"
	"github.com/starford/tiddlyhal/internal/models"
)

// Func reports whether a tiddler passes a filter.
type Func func(models.Tiddler) bool

// All passes every tiddler.
func All(models.Tiddler) bool { return true }

// Compile parses expr into a Func. An empty expression selects everything.
func Compile(expr string) (Func, error) {
	var preds []Func
	for _, term := range strings.FieldsFunc(expr, func(r rune) bool { return r == ';' || r == '&' }) {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		p, err := compileTerm(term)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) == 0 {
		return All, nil
	}
	return func(t models.Tiddler) bool {
		for _, p := range preds {
			if !p(t) {
				return false
			}
		}
		return true
	}, nil
}

// Apply returns the tiddlers passing f, preserving order.
func Apply(f Func, tiddlers []models.Tiddler) []models.Tiddler {
	out := make([]models.Tiddler, 0, len(tiddlers))
	for _, t := range tiddlers {
		if f(t) {
			out = append(out, t)
		}
	}
	return out
}

func compileTerm(term string) (Func, error) {
	if key, rest, ok := strings.Cut(term, "="); ok {
		if key != "select" {
			return nil, fmt.Errorf("filter: unsupported operator %q: %w", key, apperr.ErrInvalidInput)
		}
		term = rest
	}
	field, value, ok := strings.Cut(term, ":")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return nil, fmt.Errorf("filter: malformed term %q: %w", term, apperr.ErrInvalidInput)
	}
	negate := strings.HasPrefix(value, "!")
	if negate {
		value = value[1:]
	}
	match := matcher(field, value)
	if negate {
		return func(t models.Tiddler) bool { return !match(t) }, nil
	}
	return match, nil
}

func matcher(field, value string) Func {
	switch field {
	case "tag":
		return func(t models.Tiddler) bool { return slices.Contains(t.Tags, value) }
	case "title":
		return func(t models.Tiddler) bool { return t.Title == value }
	case "bag":
		return func(t models.Tiddler) bool { return t.Bag == value }
	case "type":
		return func(t models.Tiddler) bool { return t.Type == value }
	case "creator":
		return func(t models.Tiddler) bool { return t.Creator == value }
	case "modifier":
		return func(t models.Tiddler) bool { return t.Modifier == value }
	}
	return func(t models.Tiddler) bool { return t.Fields[field] == value }
}
