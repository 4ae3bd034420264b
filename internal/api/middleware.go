// Package api implements the tiddlyhal HTTP host using chi: content
// negotiation, authentication, and handlers that hand fetched entities to a
// negotiated serializer.
package api

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tiddlyhal/internal/serializer"
)

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type matchKey struct{}

// NegotiateMiddleware picks the serializer for each request. A registered
// extension on the last path segment wins and is stripped before routing;
// otherwise the Accept header decides; otherwise the registry default.
func NegotiateMiddleware(reg *serializer.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ext := registeredExtension(reg, r.URL.Path)
			if ext != "" {
				r = stripSuffix(r, "."+ext)
			}
			m := reg.Negotiate(r.Header.Get("Accept"), ext)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), matchKey{}, m)))
		})
	}
}

// MatchFrom returns the serializer negotiated for the request.
func MatchFrom(ctx context.Context) (serializer.Match, bool) {
	m, ok := ctx.Value(matchKey{}).(serializer.Match)
	return m, ok
}

func registeredExtension(reg *serializer.Registry, p string) string {
	last := path.Base(p)
	i := strings.LastIndexByte(last, '.')
	if i <= 0 || i == len(last)-1 {
		return ""
	}
	ext := last[i+1:]
	if _, ok := reg.ExtensionType(ext); !ok {
		return ""
	}
	return ext
}

func stripSuffix(r *http.Request, suffix string) *http.Request {
	r2 := r.Clone(r.Context())
	r2.URL.Path = strings.TrimSuffix(r.URL.Path, suffix)
	if r.URL.RawPath != "" {
		r2.URL.RawPath = strings.TrimSuffix(r.URL.RawPath, suffix)
	}
	if rctx := chi.RouteContext(r2.Context()); rctx != nil && rctx.RoutePath != "" {
		rctx.RoutePath = strings.TrimSuffix(rctx.RoutePath, suffix)
	}
	return r2
}
