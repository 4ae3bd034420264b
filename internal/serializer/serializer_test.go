package serializer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/starford/tiddlyhal/internal/models"
	"github.com/starford/tiddlyhal/internal/render"
)

func TestNegotiate_Extension(t *testing.T) {
	reg := NewDefaultRegistry()
	m := reg.Negotiate("application/json", "hal")
	if m.MediaType != HALType {
		t.Errorf("media type = %q, want %q", m.MediaType, HALType)
	}
	if m.ResponseType != HALResponseType {
		t.Errorf("response type = %q", m.ResponseType)
	}
}

func TestNegotiate_Accept(t *testing.T) {
	reg := NewDefaultRegistry()
	cases := []struct {
		accept string
		want   string
	}{
		{"application/hal+json", HALType},
		{"text/html, application/hal+json;q=0.9", HALType},
		{"application/json;q=0.5, application/hal+json", HALType},
		{"application/hal+json;q=0.1, application/json", JSONType},
		{"text/html,*/*;q=0.8", JSONType},
		{"", JSONType},
		{"application/hal+json;q=0", JSONType},
	}
	for _, c := range cases {
		if got := reg.Negotiate(c.accept, "").MediaType; got != c.want {
			t.Errorf("Negotiate(%q) = %q, want %q", c.accept, got, c.want)
		}
	}
}

func TestNegotiate_UnknownExtensionFallsThrough(t *testing.T) {
	reg := NewDefaultRegistry()
	if got := reg.Negotiate("application/hal+json", "txt").MediaType; got != HALType {
		t.Errorf("media type = %q", got)
	}
}

func TestHAL_IsRootSerializer(t *testing.T) {
	s := NewDefaultRegistry().Negotiate(HALType, "").New(Env{BaseURI: "http://h"})
	root, ok := s.(RootSerializer)
	if !ok {
		t.Fatal("HAL should render the root")
	}
	out, err := root.Root()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"tiddlyweb:bags":{"href":"http://h/bags"}`) {
		t.Errorf("root = %s", out)
	}

	plain := NewDefaultRegistry().Negotiate(JSONType, "").New(Env{})
	if _, ok := plain.(RootSerializer); ok {
		t.Error("plain JSON should not render the root")
	}
}

func TestHAL_ListTiddlersUsesEnv(t *testing.T) {
	ref := render.BagRef("b")
	s := NewHAL(Env{BaseURI: "/x", Listing: render.ListContext{Container: &ref}})
	out, err := s.ListTiddlers(nil)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	_ = json.Unmarshal(out, &doc)
	self := doc["_links"].(map[string]any)["self"].(map[string]any)
	if self["href"] != "/x/bags/b/tiddlers" {
		t.Errorf("self = %v", self)
	}
}

func TestHAL_RevisionEnv(t *testing.T) {
	s := NewHAL(Env{BaseURI: "/x", Revision: true})
	out, err := s.Tiddler(models.Tiddler{Title: "t", Bag: "b", Revision: 3})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"latest-version":{"href":"/x/bags/b/tiddlers/t"}`) {
		t.Errorf("tiddler = %s", out)
	}
}

func TestJSON_Flat(t *testing.T) {
	s := NewJSON(Env{})
	out, err := s.Tiddler(models.Tiddler{Title: "t", Bag: "b", Text: []byte("hi")})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	_ = json.Unmarshal(out, &m)
	if m["text"] != "hi" || m["bag"] != "b" {
		t.Errorf("tiddler = %v", m)
	}
	if _, ok := m["_links"]; ok {
		t.Error("plain JSON must not carry links")
	}

	out, _ = s.ListBags([]models.Bag{{Name: "a"}, {Name: "b"}})
	if string(out) != `["a","b"]` {
		t.Errorf("bags = %s", out)
	}
}
