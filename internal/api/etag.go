package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/starford/tiddlyhal/internal/checksum"
	"github.com/starford/tiddlyhal/internal/models"
	"github.com/starford/tiddlyhal/internal/render"
)

// tiddlerETag tags the current revision of a tiddler as served through ref
// in one representation. GET and PUT of the same tiddler produce the same
// tag: "<container>/<title>/<revision>:<representation>".
func tiddlerETag(base string, ref render.ContainerRef, t models.Tiddler, responseType string) string {
	rep := checksum.Sum([]byte(base + "\n" + ref.Kind.Collection() + "\n" + responseType))[:12]
	return `"` + url.PathEscape(ref.Name) + "/" + url.PathEscape(t.Title) + "/" +
		strconv.Itoa(t.Revision) + ":" + rep + `"`
}

// etagMatches applies the weak comparison of If-None-Match: the header may
// be "*" or a comma-separated list of possibly weak entity tags.
func etagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range splitETags(header) {
		if strings.TrimPrefix(tag, "W/") == want {
			return true
		}
	}
	return false
}

// splitETags splits an entity-tag list on commas outside quotes.
func splitETags(header string) []string {
	var tags []string
	quoted := false
	start := 0
	for i := 0; i < len(header); i++ {
		switch header[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				tags = append(tags, strings.TrimSpace(header[start:i]))
				start = i + 1
			}
		}
	}
	return append(tags, strings.TrimSpace(header[start:]))
}
