// Package render turns bags, recipes and tiddlers into HAL documents. A
// Renderer is built per request around the request's base URI; rendering
// is pure and does no I/O.
package render

import (
	"fmt"
	"log/slog"

	"github.com/starford/tiddlyhal/internal/apperr"
	"github.com/starford/tiddlyhal/internal/hal"
	"github.com/starford/tiddlyhal/internal/models"
)

// ListingMode selects the link set of a tiddler collection.
type ListingMode int

const (
	// ListingPlain is the tiddlers of one bag or recipe.
	ListingPlain ListingMode = iota
	// ListingSearch is a search result; it has no owning container.
	ListingSearch
	// ListingRevisions is the revision history of one tiddler.
	ListingRevisions
)

func (m ListingMode) String() string {
	switch m {
	case ListingSearch:
		return "search"
	case ListingRevisions:
		return "revisions"
	}
	return "plain"
}

// ListContext describes the collection being rendered. Container and Title
// are optional; when absent they are inferred from the last tiddler in the
// list.
type ListContext struct {
	Mode      ListingMode
	Container *ContainerRef
	Title     string
}

// Renderer builds HAL documents for one base URI.
type Renderer struct {
	uris   URIs
	logger *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used to report omitted context links.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// New returns a renderer whose links are built under base.
func New(base string, opts ...Option) *Renderer {
	r := &Renderer{uris: NewURIs(base), logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// URIs returns the renderer's URI builder.
func (r *Renderer) URIs() URIs { return r.uris }

// links accumulates links and keeps the first construction error.
type links struct {
	set *hal.LinkSet
	err error
}

func newLinks() *links {
	return &links{set: hal.NewLinkSet()}
}

func (l *links) add(rel, href string) {
	l.addAttrs(rel, href, nil)
}

func (l *links) addAttrs(rel, href string, attrs hal.Attrs) {
	if l.err != nil {
		return
	}
	link, err := hal.NewLink(rel, href, attrs)
	if err != nil {
		l.err = err
		return
	}
	l.set.Add(link)
}

func (l *links) curie() {
	if l.err == nil {
		l.set.Add(hal.Curie)
	}
}

var templated = hal.Attrs{"templated": true}

// Root renders the service root: the entry point linking to every
// top-level collection and the search template.
func (r *Renderer) Root() (*hal.Document, error) {
	l := newLinks()
	l.add("self", r.uris.Root())
	l.addAttrs("alternate", r.uris.Root(), hal.Attrs{"type": "text/html"})
	l.add(hal.Rel("bags"), r.uris.Collection(KindBag))
	l.add(hal.Rel("recipes"), r.uris.Collection(KindRecipe))
	l.addAttrs(hal.Rel("search"), r.uris.Search(), templated)
	l.curie()
	if l.err != nil {
		return nil, l.err
	}
	return hal.NewDocument(nil, l.set), nil
}

// Bags renders the bag collection.
func (r *Renderer) Bags(bags []models.Bag) (*hal.Document, error) {
	names := make([]string, len(bags))
	for i, b := range bags {
		names[i] = b.Name
	}
	return r.ContainerList(KindBag, names)
}

// Recipes renders the recipe collection.
func (r *Renderer) Recipes(recipes []models.Recipe) (*hal.Document, error) {
	names := make([]string, len(recipes))
	for i, rc := range recipes {
		names[i] = rc.Name
	}
	return r.ContainerList(KindRecipe, names)
}

// ContainerList renders a collection of containers of one kind. Each member
// is embedded as {name} plus a self link, in input order.
func (r *Renderer) ContainerList(kind ContainerKind, names []string) (*hal.Document, error) {
	members := make([]*hal.Document, 0, len(names))
	for _, name := range names {
		l := newLinks()
		l.add("self", r.uris.Container(ContainerRef{Kind: kind, Name: name}))
		if l.err != nil {
			return nil, l.err
		}
		members = append(members, hal.NewDocument(map[string]any{"name": name}, l.set))
	}

	l := newLinks()
	l.add("self", r.uris.Collection(kind))
	l.addAttrs(hal.Rel(kind.Singular()), r.uris.ContainerTemplate(kind), templated)
	l.curie()
	if l.err != nil {
		return nil, l.err
	}
	doc := hal.NewDocument(nil, l.set)
	doc.Embed(hal.Rel(kind.Singular()), members...)
	return doc, nil
}

// Bag renders a single bag.
func (r *Renderer) Bag(b models.Bag) (*hal.Document, error) {
	data := map[string]any{
		"name":   b.Name,
		"desc":   b.Desc,
		"policy": b.Policy.Attributes(),
	}
	return r.container(BagRef(b.Name), data)
}

// Recipe renders a single recipe. The recipe lines are carried in order as
// [bag, filter] pairs.
func (r *Renderer) Recipe(rc models.Recipe) (*hal.Document, error) {
	lines := rc.Lines
	if lines == nil {
		lines = []models.RecipeLine{}
	}
	data := map[string]any{
		"name":   rc.Name,
		"desc":   rc.Desc,
		"policy": rc.Policy.Attributes(),
		"recipe": lines,
	}
	return r.container(RecipeRef(rc.Name), data)
}

func (r *Renderer) container(ref ContainerRef, data map[string]any) (*hal.Document, error) {
	self := r.uris.Container(ref)
	l := newLinks()
	l.curie()
	l.add(hal.Rel(ref.Kind.Collection()), r.uris.Collection(ref.Kind))
	l.add(hal.Rel("tiddlers"), r.uris.Tiddlers(ref))
	l.add("self", self)
	if l.err != nil {
		return nil, l.err
	}
	return hal.NewDocument(data, l.set), nil
}

// Tiddlers renders a tiddler collection. The context's mode decides the
// collection links; when its container cannot be determined those links are
// left out and the rest of the document is still returned.
func (r *Renderer) Tiddlers(tiddlers []models.Tiddler, lc ListContext) (*hal.Document, error) {
	embedRel := hal.Rel("tiddler")
	if lc.Mode == ListingRevisions {
		embedRel = hal.Rel("revision")
	}

	members := make([]*hal.Document, 0, len(tiddlers))
	for _, t := range tiddlers {
		l := newLinks()
		if ref, ok := ContainerOf(t); ok {
			if lc.Mode == ListingRevisions {
				l.add("self", r.uris.Revision(ref, t.Title, t.Revision))
			} else {
				l.add("self", r.uris.Tiddler(ref, t.Title))
			}
		} else {
			r.contextMissing("tiddler has neither bag nor recipe", slog.String("title", t.Title))
		}
		if l.err != nil {
			return nil, l.err
		}
		members = append(members, hal.NewDocument(t.Attributes(), l.set))
	}

	l := newLinks()
	switch lc.Mode {
	case ListingPlain:
		if ref, ok := r.listContainer(tiddlers, lc); ok {
			l.add("self", r.uris.Tiddlers(ref))
			l.add(hal.Rel(ref.Kind.Singular()), r.uris.Container(ref))
			l.addAttrs(hal.Rel("tiddler"), r.uris.TiddlerTemplate(ref), templated)
		}
	case ListingRevisions:
		ref, ok := r.listContainer(tiddlers, lc)
		title := lc.Title
		if title == "" && len(tiddlers) > 0 {
			title = tiddlers[len(tiddlers)-1].Title
		}
		if ok && title != "" {
			l.add("self", r.uris.Revisions(ref, title))
			l.add(hal.Rel("tiddler"), r.uris.Tiddler(ref, title))
		} else if ok {
			r.contextMissing("revision list has no tiddler title")
		}
	case ListingSearch:
		// Search results span containers; there is no collection to link.
	}
	l.curie()
	if l.err != nil {
		return nil, l.err
	}

	doc := hal.NewDocument(nil, l.set)
	doc.Embed(embedRel, members...)
	return doc, nil
}

// listContainer resolves the container owning a collection: the explicit
// context when given, otherwise the last tiddler's container.
func (r *Renderer) listContainer(tiddlers []models.Tiddler, lc ListContext) (ContainerRef, bool) {
	var inferred ContainerRef
	var haveInferred bool
	if len(tiddlers) > 0 {
		inferred, haveInferred = ContainerOf(tiddlers[len(tiddlers)-1])
	}

	if lc.Container != nil {
		if haveInferred && inferred != *lc.Container {
			r.logger.Debug("render: explicit container differs from last tiddler",
				slog.String("explicit", lc.Container.Kind.String()+":"+lc.Container.Name),
				slog.String("inferred", inferred.Kind.String()+":"+inferred.Name))
		}
		return *lc.Container, true
	}
	if haveInferred {
		return inferred, true
	}
	if len(tiddlers) > 0 {
		r.contextMissing("last tiddler has neither bag nor recipe", slog.String("mode", lc.Mode.String()))
	}
	return ContainerRef{}, false
}

// Tiddler renders a single tiddler. A revision request links back to the
// live tiddler and the revision history instead of the container.
func (r *Renderer) Tiddler(t models.Tiddler, isRevision bool) (*hal.Document, error) {
	data := t.Attributes()
	data["text"] = t.RenderedText()

	l := newLinks()
	l.curie()
	ref, ok := ContainerOf(t)
	switch {
	case !ok:
		r.contextMissing("tiddler has neither bag nor recipe", slog.String("title", t.Title))
	case isRevision:
		live := r.uris.Tiddler(ref, t.Title)
		revisions := r.uris.Revisions(ref, t.Title)
		l.add("latest-version", live)
		l.add(hal.Rel("tiddler"), live)
		l.add("collection", revisions)
		l.add(hal.Rel("revisions"), revisions)
	default:
		collection := r.uris.Tiddlers(ref)
		l.add(hal.Rel("tiddlers"), collection)
		l.add("collection", collection)
		l.add(hal.Rel(ref.Kind.Singular()), r.uris.Container(ref))
		l.add("self", r.uris.Tiddler(ref, t.Title))
	}
	if l.err != nil {
		return nil, l.err
	}
	return hal.NewDocument(data, l.set), nil
}

func (r *Renderer) contextMissing(reason string, attrs ...any) {
	err := fmt.Errorf("render: %w: %s", apperr.ErrContextResolution, reason)
	r.logger.Warn("render: context links omitted", append([]any{slog.String("error", err.Error())}, attrs...)...)
}
