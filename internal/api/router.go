package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tiddlyhal/internal/render"
	"github.com/starford/tiddlyhal/internal/serializer"
	"github.com/starford/tiddlyhal/internal/tiddlerservice"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AuthEnabled bool
	Token       string
	Links       LinkBase
	// Root serves GET /; nil uses NewRootHandler with the landing page.
	Root http.Handler
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	Logger *slog.Logger
}

// NewRouter creates a chi router with all routes mounted. Every route accepts
// an optional registered extension (.hal, .json) selecting the serializer.
func NewRouter(svc *tiddlerservice.Service, reg *serializer.Registry, opts RouterOptions) chi.Router {
	h := NewHandler(svc, reg, opts.Links, opts.Logger)
	root := opts.Root
	if root == nil {
		root = NewRootHandler(reg, opts.Links, LandingPage(opts.Links), h.logger)
	}

	r := chi.NewRouter()
	r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))
	r.Use(NegotiateMiddleware(reg))

	r.Method(http.MethodGet, "/", root)
	r.Get("/bags", h.ListBags)
	r.Get("/recipes", h.ListRecipes)
	r.Get("/search", h.Search)

	for _, kind := range []render.ContainerKind{render.KindBag, render.KindRecipe} {
		base := "/" + kind.Collection() + "/{container}"
		r.Get(base, h.GetContainer(kind))
		r.Put(base, h.PutContainer(kind))
		r.Get(base+"/tiddlers", h.ListTiddlers(kind))
		r.Get(base+"/tiddlers/{title}", h.GetTiddler(kind))
		r.Put(base+"/tiddlers/{title}", h.PutTiddler(kind))
		r.Get(base+"/tiddlers/{title}/revisions", h.ListRevisions(kind))
		r.Get(base+"/tiddlers/{title}/revisions/{revision}", h.GetRevision(kind))
	}

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}

	return r
}
