package render

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/starford/tiddlyhal/internal/models"
)

// ContainerKind distinguishes bags from recipes.
type ContainerKind int

const (
	KindBag ContainerKind = iota
	KindRecipe
)

// Collection returns the URI segment and relation name of the kind's
// collection ("bags", "recipes").
func (k ContainerKind) Collection() string {
	if k == KindRecipe {
		return "recipes"
	}
	return "bags"
}

// Singular returns the relation name of one container ("bag", "recipe").
func (k ContainerKind) Singular() string {
	if k == KindRecipe {
		return "recipe"
	}
	return "bag"
}

func (k ContainerKind) String() string { return k.Singular() }

// ContainerRef names one bag or recipe.
type ContainerRef struct {
	Kind ContainerKind
	Name string
}

// BagRef returns a reference to the named bag.
func BagRef(name string) ContainerRef { return ContainerRef{Kind: KindBag, Name: name} }

// RecipeRef returns a reference to the named recipe.
func RecipeRef(name string) ContainerRef { return ContainerRef{Kind: KindRecipe, Name: name} }

// ContainerOf returns the container a tiddler was reached through: its
// recipe when set, otherwise its bag. ok is false when neither is known.
func ContainerOf(t models.Tiddler) (ref ContainerRef, ok bool) {
	switch {
	case t.Recipe != "":
		return RecipeRef(t.Recipe), true
	case t.Bag != "":
		return BagRef(t.Bag), true
	}
	return ContainerRef{}, false
}

// URIs builds resource URIs under one base. The base is either absolute
// (scheme://host/prefix) or a path prefix; every URI built from the same
// value has the same form.
type URIs struct {
	base string
}

// NewURIs returns a URI builder for base. A trailing slash is ignored.
func NewURIs(base string) URIs {
	return URIs{base: strings.TrimRight(base, "/")}
}

// Base returns the base without a trailing slash.
func (u URIs) Base() string { return u.base }

// Root is the service root.
func (u URIs) Root() string { return u.base + "/" }

// Search is the templated search URI.
func (u URIs) Search() string { return u.base + "/search{?q}" }

// Collection is the listing of all containers of a kind.
func (u URIs) Collection(kind ContainerKind) string {
	return u.base + "/" + kind.Collection()
}

// ContainerTemplate is the templated URI of one container of a kind, with
// the variable named after the kind ({bag} or {recipe}).
func (u URIs) ContainerTemplate(kind ContainerKind) string {
	return u.Collection(kind) + "/{" + kind.Singular() + "}"
}

// Container is the URI of one bag or recipe.
func (u URIs) Container(ref ContainerRef) string {
	return u.Collection(ref.Kind) + "/" + EncodeName(ref.Name)
}

// Tiddlers is the tiddler collection of a container.
func (u URIs) Tiddlers(ref ContainerRef) string {
	return u.Container(ref) + "/tiddlers"
}

// TiddlerTemplate is the templated URI of a tiddler in a container.
func (u URIs) TiddlerTemplate(ref ContainerRef) string {
	return u.Tiddlers(ref) + "/{tiddler}"
}

// Tiddler is the URI of the current version of a tiddler.
func (u URIs) Tiddler(ref ContainerRef, title string) string {
	return u.Tiddlers(ref) + "/" + EncodeName(title)
}

// Revisions is the revision history of a tiddler.
func (u URIs) Revisions(ref ContainerRef, title string) string {
	return u.Tiddler(ref, title) + "/revisions"
}

// Revision is one stored revision of a tiddler.
func (u URIs) Revision(ref ContainerRef, title string, revision int) string {
	return u.Revisions(ref, title) + "/" + strconv.Itoa(revision)
}

// EncodeName escapes an entity name for use as a single path segment.
func EncodeName(name string) string {
	return url.PathEscape(name)
}
