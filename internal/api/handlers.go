package api

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tiddlyhal/internal/apperr"
	"github.com/starford/tiddlyhal/internal/checksum"
	"github.com/starford/tiddlyhal/internal/models"
	"github.com/starford/tiddlyhal/internal/render"
	"github.com/starford/tiddlyhal/internal/serializer"
	"github.com/starford/tiddlyhal/internal/tiddlerservice"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc    *tiddlerservice.Service
	reg    *serializer.Registry
	links  LinkBase
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *tiddlerservice.Service, reg *serializer.Registry, links LinkBase, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, reg: reg, links: links, logger: logger}
}

// LinkBase decides how link targets are prefixed.
type LinkBase struct {
	// Prefix is the path the API is mounted under, e.g. "/wiki".
	Prefix string
	// Absolute adds scheme and host taken from the request.
	Absolute bool
}

// For returns the base URI for links in the response to r. One base is
// computed per request so every link in a document agrees.
func (b LinkBase) For(r *http.Request) string {
	prefix := strings.TrimSuffix(b.Prefix, "/")
	if !b.Absolute {
		return prefix
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		switch p := strings.ToLower(strings.TrimSpace(strings.Split(fwd, ",")[0])); p {
		case "http", "https":
			scheme = p
		}
	}
	return scheme + "://" + r.Host + prefix
}

// urlParam returns a decoded path parameter. chi yields the raw segment
// when the request path carries escapes such as %2F.
func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

func (h *Handler) match(r *http.Request) serializer.Match {
	if m, ok := MatchFrom(r.Context()); ok {
		return m
	}
	return h.reg.Negotiate(r.Header.Get("Accept"), "")
}

func (h *Handler) env(r *http.Request) serializer.Env {
	return serializer.Env{BaseURI: h.links.For(r), Logger: h.logger}
}

// respond writes a serialized body with its negotiated content type and a
// content ETag, answering 304 when the client already holds it.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, m serializer.Match, op string, body []byte, err error) {
	if err != nil {
		writeError(w, h.logger, op, err)
		return
	}
	h.respondTagged(w, r, m, checksum.ETag(body), body)
}

// respondTagged writes body under a caller-chosen ETag.
func (h *Handler) respondTagged(w http.ResponseWriter, r *http.Request, m serializer.Match, etag string, body []byte) {
	w.Header().Set("ETag", etag)
	w.Header().Set("Vary", "Accept")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", m.ResponseType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ListBags handles GET /bags.
func (h *Handler) ListBags(w http.ResponseWriter, r *http.Request) {
	bags, err := h.svc.ListBags(r.Context())
	if err != nil {
		writeError(w, h.logger, "list bags", err)
		return
	}
	m := h.match(r)
	body, err := m.New(h.env(r)).ListBags(bags)
	h.respond(w, r, m, "list bags", body, err)
}

// ListRecipes handles GET /recipes.
func (h *Handler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.svc.ListRecipes(r.Context())
	if err != nil {
		writeError(w, h.logger, "list recipes", err)
		return
	}
	m := h.match(r)
	body, err := m.New(h.env(r)).ListRecipes(recipes)
	h.respond(w, r, m, "list recipes", body, err)
}

// GetContainer handles GET /bags/{container} and GET /recipes/{container}.
func (h *Handler) GetContainer(kind render.ContainerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := urlParam(r, "container")
		m := h.match(r)
		s := m.New(h.env(r))
		if kind == render.KindRecipe {
			rc, err := h.svc.GetRecipe(r.Context(), name)
			if err != nil {
				writeError(w, h.logger, "get recipe", err)
				return
			}
			body, err := s.Recipe(rc)
			h.respond(w, r, m, "get recipe", body, err)
			return
		}
		b, err := h.svc.GetBag(r.Context(), name)
		if err != nil {
			writeError(w, h.logger, "get bag", err)
			return
		}
		body, err := s.Bag(b)
		h.respond(w, r, m, "get bag", body, err)
	}
}

type containerRequest struct {
	Desc   string              `json:"desc"`
	Policy models.Policy       `json:"policy"`
	Recipe []models.RecipeLine `json:"recipe"`
}

// PutContainer handles PUT /bags/{container} and PUT /recipes/{container}.
func (h *Handler) PutContainer(kind render.ContainerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		name := urlParam(r, "container")
		var req containerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}

		var created bool
		var err error
		if kind == render.KindRecipe {
			created, err = h.svc.PutRecipe(r.Context(), models.Recipe{Name: name, Desc: req.Desc, Policy: req.Policy, Lines: req.Recipe})
		} else {
			created, err = h.svc.PutBag(r.Context(), models.Bag{Name: name, Desc: req.Desc, Policy: req.Policy})
		}
		if err != nil {
			writeError(w, h.logger, "put "+kind.Singular(), err)
			return
		}

		ref := render.ContainerRef{Kind: kind, Name: name}
		w.Header().Set("Location", render.NewURIs(h.links.For(r)).Container(ref))
		if created {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListTiddlers handles GET /{bags|recipes}/{container}/tiddlers.
func (h *Handler) ListTiddlers(kind render.ContainerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := render.ContainerRef{Kind: kind, Name: urlParam(r, "container")}
		tiddlers, err := h.svc.Tiddlers(r.Context(), ref)
		if err != nil {
			writeError(w, h.logger, "list tiddlers", err)
			return
		}
		env := h.env(r)
		env.Listing = render.ListContext{Mode: render.ListingPlain, Container: &ref}
		m := h.match(r)
		body, err := m.New(env).ListTiddlers(tiddlers)
		h.respond(w, r, m, "list tiddlers", body, err)
	}
}

// GetTiddler handles GET /{bags|recipes}/{container}/tiddlers/{title}.
func (h *Handler) GetTiddler(kind render.ContainerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := render.ContainerRef{Kind: kind, Name: urlParam(r, "container")}
		t, err := h.svc.Tiddler(r.Context(), ref, urlParam(r, "title"))
		if err != nil {
			writeError(w, h.logger, "get tiddler", err)
			return
		}
		m := h.match(r)
		env := h.env(r)
		body, err := m.New(env).Tiddler(t)
		if err != nil {
			writeError(w, h.logger, "get tiddler", err)
			return
		}
		h.respondTagged(w, r, m, tiddlerETag(env.BaseURI, ref, t, m.ResponseType), body)
	}
}

type tiddlerRequest struct {
	Type     string            `json:"type"`
	Tags     []string          `json:"tags"`
	Fields   map[string]string `json:"fields"`
	Creator  string            `json:"creator"`
	Modifier string            `json:"modifier"`
	Text     string            `json:"text"`
}

// PutTiddler handles PUT /{bags|recipes}/{container}/tiddlers/{title}.
// The body is the JSON form of a tiddler; binary text is base64.
func (h *Handler) PutTiddler(kind render.ContainerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		ref := render.ContainerRef{Kind: kind, Name: urlParam(r, "container")}
		title := urlParam(r, "title")

		var req tiddlerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
		t := models.Tiddler{
			Title:    title,
			Type:     req.Type,
			Tags:     req.Tags,
			Fields:   req.Fields,
			Creator:  req.Creator,
			Modifier: req.Modifier,
			Text:     []byte(req.Text),
		}
		if models.EncodingForType(req.Type) == models.EncodingBinary {
			raw, err := base64.StdEncoding.DecodeString(req.Text)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody("binary text must be base64"))
				return
			}
			t.Text = raw
		}

		stored, err := h.svc.PutTiddler(r.Context(), ref, t)
		if err != nil {
			writeError(w, h.logger, "put tiddler", err)
			return
		}
		base := h.links.For(r)
		w.Header().Set("Location", render.NewURIs(base).Tiddler(ref, stored.Title))
		w.Header().Set("ETag", tiddlerETag(base, ref, stored, h.match(r).ResponseType))
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListRevisions handles GET .../tiddlers/{title}/revisions.
func (h *Handler) ListRevisions(kind render.ContainerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := render.ContainerRef{Kind: kind, Name: urlParam(r, "container")}
		title := urlParam(r, "title")
		revs, err := h.svc.Revisions(r.Context(), ref, title)
		if err != nil {
			writeError(w, h.logger, "list revisions", err)
			return
		}
		env := h.env(r)
		env.Listing = render.ListContext{Mode: render.ListingRevisions, Container: &ref, Title: title}
		m := h.match(r)
		body, err := m.New(env).ListTiddlers(revs)
		h.respond(w, r, m, "list revisions", body, err)
	}
}

// GetRevision handles GET .../tiddlers/{title}/revisions/{revision}.
func (h *Handler) GetRevision(kind render.ContainerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := render.ContainerRef{Kind: kind, Name: urlParam(r, "container")}
		rev, err := strconv.Atoi(chi.URLParam(r, "revision"))
		if err != nil {
			writeError(w, h.logger, "get revision", apperr.ErrInvalidInput)
			return
		}
		t, err := h.svc.Revision(r.Context(), ref, urlParam(r, "title"), rev)
		if err != nil {
			writeError(w, h.logger, "get revision", err)
			return
		}
		env := h.env(r)
		env.Revision = true
		m := h.match(r)
		body, err := m.New(env).Tiddler(t)
		h.respond(w, r, m, "get revision", body, err)
	}
}

// Search handles GET /search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, h.logger, "search", err)
		return
	}
	env := h.env(r)
	env.Listing = render.ListContext{Mode: render.ListingSearch}
	m := h.match(r)
	body, err := m.New(env).ListTiddlers(results)
	h.respond(w, r, m, "search", body, err)
}
