package serializer

import (
	"mime"
	"sort"
	"strconv"
	"strings"
)

// Registry maps media types and file extensions to serializer factories.
// It is populated at startup and read-only afterwards.
type Registry struct {
	entries     map[string]entry
	extensions  map[string]string
	defaultType string
}

type entry struct {
	factory      Factory
	responseType string
}

// Match is the outcome of content negotiation.
type Match struct {
	// MediaType is the registered media type, e.g. "application/hal+json".
	MediaType string
	// ResponseType is the Content-Type header value to send.
	ResponseType string
	factory      Factory
}

// New builds the serializer for env.
func (m Match) New(env Env) Serializer {
	return m.factory(env)
}

// NewRegistry returns an empty registry. defaultType is used when neither an
// extension nor the Accept header selects a registered type; it must be
// registered before Negotiate is called.
func NewRegistry(defaultType string) *Registry {
	return &Registry{
		entries:     make(map[string]entry),
		extensions:  make(map[string]string),
		defaultType: defaultType,
	}
}

// Register installs a factory for mediaType. responseType is the full
// Content-Type sent with responses (usually mediaType plus a charset).
func (r *Registry) Register(mediaType, responseType string, f Factory) {
	r.entries[strings.ToLower(mediaType)] = entry{factory: f, responseType: responseType}
}

// RegisterExtension maps a file extension (without the dot) to a media type.
func (r *Registry) RegisterExtension(ext, mediaType string) {
	r.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = strings.ToLower(mediaType)
}

// ExtensionType returns the media type registered for ext.
func (r *Registry) ExtensionType(ext string) (string, bool) {
	mt, ok := r.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return mt, ok
}

// Lookup returns the match for a registered media type.
func (r *Registry) Lookup(mediaType string) (Match, bool) {
	mt := strings.ToLower(mediaType)
	e, ok := r.entries[mt]
	if !ok {
		return Match{}, false
	}
	return Match{MediaType: mt, ResponseType: e.responseType, factory: e.factory}, true
}

// Negotiate picks a serializer. A registered extension wins; otherwise the
// highest-quality Accept entry with a registered serializer; otherwise the
// default type.
func (r *Registry) Negotiate(accept, ext string) Match {
	if ext != "" {
		if mt, ok := r.ExtensionType(ext); ok {
			if m, ok := r.Lookup(mt); ok {
				return m
			}
		}
	}
	for _, mt := range parseAccept(accept) {
		if mt == "*/*" {
			break
		}
		if m, ok := r.Lookup(mt); ok {
			return m
		}
	}
	m, _ := r.Lookup(r.defaultType)
	return m
}

type acceptEntry struct {
	mediaType string
	q         float64
}

// parseAccept returns the media ranges of an Accept header ordered by
// descending quality; entries of equal quality keep header order.
func parseAccept(header string) []string {
	var entries []acceptEntry
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mt, params, err := mime.ParseMediaType(part)
		if err != nil {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				q = f
			}
		}
		if q <= 0 {
			continue
		}
		entries = append(entries, acceptEntry{mediaType: mt, q: q})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].q > entries[j].q })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.mediaType
	}
	return out
}
