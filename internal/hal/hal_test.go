package hal

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/starford/tiddlyhal/internal/apperr"
)

func decode(t *testing.T, d *Document) map[string]any {
	t.Helper()
	raw, err := d.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return out
}

func TestNewLink_RequiresRelAndHref(t *testing.T) {
	if _, err := NewLink("", "/bags", nil); !errors.Is(err, apperr.ErrInvalidLink) {
		t.Errorf("empty rel: err = %v, want ErrInvalidLink", err)
	}
	if _, err := NewLink("self", "", nil); !errors.Is(err, apperr.ErrInvalidLink) {
		t.Errorf("empty href: err = %v, want ErrInvalidLink", err)
	}
}

func TestNewLink_BadTemplate(t *testing.T) {
	_, err := NewLink("search", "/search{?q", Attrs{"templated": true})
	if !errors.Is(err, apperr.ErrInvalidLink) {
		t.Errorf("err = %v, want ErrInvalidLink", err)
	}
	// Same target is fine when not flagged templated.
	if _, err := NewLink("search", "/search{?q", nil); err != nil {
		t.Errorf("untemplated link: %v", err)
	}
}

func TestLink_DropsUnknownAttributes(t *testing.T) {
	l, err := NewLink("alternate", "/", Attrs{
		"type":       "text/html",
		"title":      "Home",
		"method":     "GET",
		"deprecated": true,
	})
	if err != nil {
		t.Fatal(err)
	}
	set := NewLinkSet()
	set.Add(l)
	raw, _ := json.Marshal(set)

	var got map[string]map[string]any
	_ = json.Unmarshal(raw, &got)
	obj := got["alternate"]
	if len(obj) != 3 {
		t.Errorf("keys = %v, want href, type, title", obj)
	}
	if _, ok := obj["method"]; ok {
		t.Error("method should be dropped")
	}
	if obj["type"] != "text/html" || obj["href"] != "/" {
		t.Errorf("obj = %v", obj)
	}
}

func TestLinkSet_SingleThenArray(t *testing.T) {
	set := NewLinkSet()
	set.Add(MustLink("item", "/a", nil))
	set.Add(MustLink("self", "/", nil))

	raw, _ := json.Marshal(set)
	var once map[string]any
	_ = json.Unmarshal(raw, &once)
	if _, ok := once["item"].(map[string]any); !ok {
		t.Fatalf("single add should be an object, got %T", once["item"])
	}

	set.Add(MustLink("item", "/b", nil))
	raw, _ = json.Marshal(set)
	var twice map[string]any
	_ = json.Unmarshal(raw, &twice)
	arr, ok := twice["item"].([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("double add should be a 2-array, got %v", twice["item"])
	}
	if arr[0].(map[string]any)["href"] != "/a" || arr[1].(map[string]any)["href"] != "/b" {
		t.Errorf("order = %v", arr)
	}

	set.Add(MustLink("item", "/c", nil))
	if n := len(set.Get("item")); n != 3 {
		t.Errorf("len = %d, want 3", n)
	}
}

func TestLinkSet_PreservesFirstInsertionOrder(t *testing.T) {
	set := NewLinkSet()
	set.Add(MustLink("self", "/x", nil))
	set.Add(MustLink("collection", "/", nil))
	set.Add(MustLink("self", "/y", nil))

	rels := set.Rels()
	if len(rels) != 2 || rels[0] != "self" || rels[1] != "collection" {
		t.Errorf("rels = %v", rels)
	}
	raw, _ := json.Marshal(set)
	if !strings.HasPrefix(string(raw), `{"self":[`) {
		t.Errorf("emission order wrong: %s", raw)
	}
}

func TestDocument_LinksAlwaysPresent(t *testing.T) {
	got := decode(t, NewDocument(nil, nil))
	links, ok := got[LinksKey].(map[string]any)
	if !ok || len(links) != 0 {
		t.Errorf("_links = %v, want empty object", got[LinksKey])
	}
	if _, ok := got[EmbeddedKey]; ok {
		t.Error("_embedded should be absent")
	}
}

func TestDocument_EmptyEmbedIsArray(t *testing.T) {
	d := NewDocument(nil, nil)
	d.Embed(Rel("bag"))
	got := decode(t, d)
	emb := got[EmbeddedKey].(map[string]any)
	arr, ok := emb["tiddlyweb:bag"].([]any)
	if !ok || len(arr) != 0 {
		t.Errorf("embedded = %v, want []", emb)
	}
}

func TestDocument_NestedAndDataOrder(t *testing.T) {
	links := NewLinkSet()
	links.Add(MustLink("self", "/bags", nil))
	d := NewDocument(map[string]any{"zeta": 1, "alpha": "a"}, links)

	childLinks := NewLinkSet()
	childLinks.Add(MustLink("self", "/bags/one", nil))
	d.Embed("tiddlyweb:bag", NewDocument(map[string]any{"name": "one"}, childLinks))

	raw, err := d.JSON()
	if err != nil {
		t.Fatal(err)
	}
	want := `{"alpha":"a","zeta":1,"_links":{"self":{"href":"/bags"}},` +
		`"_embedded":{"tiddlyweb:bag":[{"name":"one","_links":{"self":{"href":"/bags/one"}}}]}}`
	if string(raw) != want {
		t.Errorf("json =\n%s\nwant\n%s", raw, want)
	}
}

func TestDocument_SerializationError(t *testing.T) {
	d := NewDocument(map[string]any{"bad": make(chan int)}, nil)
	if _, err := d.JSON(); !errors.Is(err, apperr.ErrSerialization) {
		t.Errorf("err = %v, want ErrSerialization", err)
	}
}

func TestCurie(t *testing.T) {
	if Curie.Rel() != "curie" || !Curie.Templated() {
		t.Errorf("curie = %+v", Curie)
	}
	name, _ := Curie.Attr("name")
	if name != "tiddlyweb" {
		t.Errorf("name = %v", name)
	}
	got, err := Curie.Expand(map[string]string{"rel": "bags"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://tiddlyweb.com/relations/bags" {
		t.Errorf("expand = %q", got)
	}
}

func TestLink_ExpandQuery(t *testing.T) {
	l := MustLink(Rel("search"), "http://h/search{?q}", Attrs{"templated": true})
	got, err := l.Expand(map[string]string{"q": "two words"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://h/search?q=two%20words" {
		t.Errorf("expand = %q", got)
	}
}
