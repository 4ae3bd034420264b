package api

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/starford/tiddlyhal/internal/serializer"
)

// NewRootHandler serves GET /. When the negotiated serializer can render the
// root it does; any other request is passed to fallback.
func NewRootHandler(reg *serializer.Registry, links LinkBase, fallback http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{reg: reg, links: links, logger: logger}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := h.match(r)
		rs, ok := m.New(h.env(r)).(serializer.RootSerializer)
		if !ok {
			fallback.ServeHTTP(w, r)
			return
		}
		body, err := rs.Root()
		h.respond(w, r, m, "root", body, err)
	})
}

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>tiddlyhal</title></head>
<body>
<h1>tiddlyhal</h1>
<ul>
<li><a href="{{.Base}}/bags">bags</a></li>
<li><a href="{{.Base}}/recipes">recipes</a></li>
</ul>
<p>Request <code>application/hal+json</code> for a navigable HAL root.</p>
</body>
</html>
`))

// LandingPage is the fallback root: a small HTML page linking the collections.
func LandingPage(links LinkBase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Vary", "Accept")
		if err := landingTemplate.Execute(w, struct{ Base string }{links.For(r)}); err != nil {
			slog.Error("landing page failed", slog.String("error", err.Error()))
		}
	})
}
