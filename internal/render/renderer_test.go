package render

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/starford/tiddlyhal/internal/hal"
	"github.com/starford/tiddlyhal/internal/models"
)

const base = "http://0.0.0.0:8080"

func testRenderer() *Renderer {
	return New(base, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// toMap returns a decoder for a render result, so a renderer call can be
// passed straight through: toMap(t)(r.Root()).
func toMap(t *testing.T) func(*hal.Document, error) map[string]any {
	return func(doc *hal.Document, err error) map[string]any {
		t.Helper()
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		raw, err := doc.JSON()
		if err != nil {
			t.Fatalf("JSON: %v", err)
		}
		var out map[string]any
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return out
	}
}

func linksOf(m map[string]any) map[string]any {
	l, _ := m["_links"].(map[string]any)
	return l
}

func href(t *testing.T, links map[string]any, rel string) string {
	t.Helper()
	obj, ok := links[rel].(map[string]any)
	if !ok {
		t.Fatalf("rel %q missing or not an object: %v", rel, links[rel])
	}
	s, _ := obj["href"].(string)
	return s
}

func embedded(t *testing.T, m map[string]any, rel string) []any {
	t.Helper()
	emb, ok := m["_embedded"].(map[string]any)
	if !ok {
		t.Fatalf("_embedded missing: %v", m)
	}
	arr, ok := emb[rel].([]any)
	if !ok {
		t.Fatalf("_embedded[%q] missing or not an array: %v", rel, emb[rel])
	}
	return arr
}

func TestRoot(t *testing.T) {
	got := toMap(t)(testRenderer().Root())
	links := linksOf(got)
	for _, rel := range []string{"curie", "self", "tiddlyweb:bags", "tiddlyweb:recipes"} {
		if _, ok := links[rel]; !ok {
			t.Errorf("root missing %q", rel)
		}
	}
	if h := href(t, links, "self"); h != base+"/" {
		t.Errorf("self = %q", h)
	}
	if h := href(t, links, "tiddlyweb:bags"); h != base+"/bags" {
		t.Errorf("bags = %q", h)
	}
	search := links["tiddlyweb:search"].(map[string]any)
	if search["href"] != base+"/search{?q}" || search["templated"] != true {
		t.Errorf("search = %v", search)
	}
	alt := links["alternate"].(map[string]any)
	if alt["type"] != "text/html" {
		t.Errorf("alternate = %v", alt)
	}
}

func TestBags_Empty(t *testing.T) {
	got := toMap(t)(testRenderer().Bags(nil))
	links := linksOf(got)
	if h := href(t, links, "self"); h != base+"/bags" {
		t.Errorf("self = %q", h)
	}
	if h := href(t, links, "curie"); h != "http://tiddlyweb.com/relations/{rel}" {
		t.Errorf("curie = %q", h)
	}
	if arr := embedded(t, got, "tiddlyweb:bag"); len(arr) != 0 {
		t.Errorf("embedded = %v, want []", arr)
	}
	tmpl := links["tiddlyweb:bag"].(map[string]any)
	if tmpl["href"] != base+"/bags/{bag}" || tmpl["templated"] != true {
		t.Errorf("bag template = %v", tmpl)
	}
}

func TestRecipes_InputOrder(t *testing.T) {
	recipes := []models.Recipe{{Name: "zed"}, {Name: "alpha"}, {Name: "with space"}}
	got := toMap(t)(testRenderer().Recipes(recipes))
	arr := embedded(t, got, "tiddlyweb:recipe")
	if len(arr) != 3 {
		t.Fatalf("len = %d", len(arr))
	}
	first := arr[0].(map[string]any)
	if first["name"] != "zed" {
		t.Errorf("first = %v", first)
	}
	third := arr[2].(map[string]any)
	if h := href(t, linksOf(third), "self"); h != base+"/recipes/with%20space" {
		t.Errorf("escaped self = %q", h)
	}
}

func TestBag_PolicyRoundTrip(t *testing.T) {
	bag := models.Bag{Name: "bag6", Desc: "six", Policy: models.Policy{
		Read:  []string{"alice"},
		Write: []string{"bob", "alice"},
	}}
	got := toMap(t)(testRenderer().Bag(bag))
	policy := got["policy"].(map[string]any)
	read := policy["read"].([]any)
	write := policy["write"].([]any)
	if len(read) != 1 || read[0] != "alice" {
		t.Errorf("read = %v", read)
	}
	if len(write) != 2 || write[0] != "bob" || write[1] != "alice" {
		t.Errorf("write = %v", write)
	}
	if got["desc"] != "six" || got["name"] != "bag6" {
		t.Errorf("data = %v", got)
	}
	links := linksOf(got)
	if h := href(t, links, "tiddlyweb:tiddlers"); h != base+"/bags/bag6/tiddlers" {
		t.Errorf("tiddlers = %q", h)
	}
	if h := href(t, links, "tiddlyweb:bags"); h != base+"/bags" {
		t.Errorf("bags = %q", h)
	}
	if h := href(t, links, "self"); h != base+"/bags/bag6" {
		t.Errorf("self = %q", h)
	}
}

func TestRecipe_LinesPreserved(t *testing.T) {
	rc := models.Recipe{Name: "recipe6", Lines: []models.RecipeLine{
		{Bag: "bagA", Filter: ""},
		{Bag: "bagB", Filter: "tag:x"},
	}}
	got := toMap(t)(testRenderer().Recipe(rc))
	lines := got["recipe"].([]any)
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	first := lines[0].([]any)
	second := lines[1].([]any)
	if first[0] != "bagA" || first[1] != "" || second[0] != "bagB" || second[1] != "tag:x" {
		t.Errorf("lines = %v", lines)
	}
	if h := href(t, linksOf(got), "tiddlyweb:recipes"); h != base+"/recipes" {
		t.Errorf("recipes = %q", h)
	}
}

func bagTiddlers(n int) []models.Tiddler {
	out := make([]models.Tiddler, n)
	for i := range out {
		out[i] = models.Tiddler{
			Title:    "tiddler" + string(rune('0'+i)),
			Bag:      "bag6",
			Revision: i + 1,
			Tags:     []string{"tag"},
			Text:     []byte("body"),
		}
	}
	return out
}

func TestTiddlers_PlainInferredFromLast(t *testing.T) {
	got := toMap(t)(testRenderer().Tiddlers(bagTiddlers(3), ListContext{}))
	links := linksOf(got)
	if h := href(t, links, "self"); h != base+"/bags/bag6/tiddlers" {
		t.Errorf("self = %q", h)
	}
	if h := href(t, links, "tiddlyweb:bag"); h != base+"/bags/bag6" {
		t.Errorf("bag = %q", h)
	}
	if _, ok := links["tiddlyweb:recipe"]; ok {
		t.Error("plain bag listing must not link a recipe")
	}
	arr := embedded(t, got, "tiddlyweb:tiddler")
	if len(arr) != 3 {
		t.Fatalf("len = %d", len(arr))
	}
	first := arr[0].(map[string]any)
	if h := href(t, linksOf(first), "self"); h != base+"/bags/bag6/tiddlers/tiddler0" {
		t.Errorf("member self = %q", h)
	}
	if _, ok := first["text"]; ok {
		t.Error("embedded tiddler must not carry text")
	}
	if tags := first["tags"].([]any); len(tags) != 1 {
		t.Errorf("tags = %v", tags)
	}
}

func TestTiddlers_RecipeProvenance(t *testing.T) {
	ts := bagTiddlers(2)
	ts[1].Recipe = "mix"
	got := toMap(t)(testRenderer().Tiddlers(ts, ListContext{}))
	links := linksOf(got)
	if h := href(t, links, "tiddlyweb:recipe"); h != base+"/recipes/mix" {
		t.Errorf("recipe = %q", h)
	}
	if _, ok := links["tiddlyweb:bag"]; ok {
		t.Error("recipe listing must not link a bag")
	}
}

func TestTiddlers_EmptyNoContext(t *testing.T) {
	got := toMap(t)(testRenderer().Tiddlers(nil, ListContext{}))
	links := linksOf(got)
	for _, rel := range []string{"self", "tiddlyweb:bag", "tiddlyweb:recipe", "tiddlyweb:tiddler"} {
		if _, ok := links[rel]; ok {
			t.Errorf("unexpected %q in %v", rel, links)
		}
	}
	if _, ok := links["curie"]; !ok {
		t.Error("curie missing")
	}
	if arr := embedded(t, got, "tiddlyweb:tiddler"); len(arr) != 0 {
		t.Errorf("embedded = %v", arr)
	}
}

func TestTiddlers_EmptyExplicitContext(t *testing.T) {
	ref := BagRef("mybag")
	got := toMap(t)(testRenderer().Tiddlers(nil, ListContext{Container: &ref}))
	links := linksOf(got)
	if h := href(t, links, "self"); h != base+"/bags/mybag/tiddlers" {
		t.Errorf("self = %q", h)
	}
	tmpl := links["tiddlyweb:tiddler"].(map[string]any)
	if tmpl["href"] != base+"/bags/mybag/tiddlers/{tiddler}" || tmpl["templated"] != true {
		t.Errorf("template = %v", tmpl)
	}
}

func TestTiddlers_ExplicitContextWins(t *testing.T) {
	ref := RecipeRef("mix")
	got := toMap(t)(testRenderer().Tiddlers(bagTiddlers(2), ListContext{Container: &ref}))
	if h := href(t, linksOf(got), "self"); h != base+"/recipes/mix/tiddlers" {
		t.Errorf("self = %q", h)
	}
}

func TestTiddlers_Revisions(t *testing.T) {
	revs := []models.Tiddler{
		{Title: "tiddler4", Bag: "bag6", Revision: 2},
		{Title: "tiddler4", Bag: "bag6", Revision: 1},
	}
	got := toMap(t)(testRenderer().Tiddlers(revs, ListContext{Mode: ListingRevisions}))
	links := linksOf(got)
	if h := href(t, links, "self"); h != base+"/bags/bag6/tiddlers/tiddler4/revisions" {
		t.Errorf("self = %q", h)
	}
	if h := href(t, links, "tiddlyweb:tiddler"); h != base+"/bags/bag6/tiddlers/tiddler4" {
		t.Errorf("tiddler = %q", h)
	}
	arr := embedded(t, got, "tiddlyweb:revision")
	if len(arr) != 2 {
		t.Fatalf("len = %d", len(arr))
	}
	if h := href(t, linksOf(arr[0].(map[string]any)), "self"); h != base+"/bags/bag6/tiddlers/tiddler4/revisions/2" {
		t.Errorf("revision self = %q", h)
	}
}

func TestTiddlers_SearchHasNoContextLinks(t *testing.T) {
	got := toMap(t)(testRenderer().Tiddlers(bagTiddlers(2), ListContext{Mode: ListingSearch}))
	links := linksOf(got)
	if len(links) != 1 {
		t.Errorf("links = %v, want curie only", links)
	}
	if arr := embedded(t, got, "tiddlyweb:tiddler"); len(arr) != 2 {
		t.Errorf("embedded = %v", arr)
	}
}

func TestTiddlers_UnresolvableContextLogged(t *testing.T) {
	var buf bytes.Buffer
	r := New(base, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	got := toMap(t)(r.Tiddlers([]models.Tiddler{{Title: "orphan"}}, ListContext{}))
	if _, ok := linksOf(got)["self"]; ok {
		t.Error("self should be omitted")
	}
	if arr := embedded(t, got, "tiddlyweb:tiddler"); len(arr) != 1 {
		t.Errorf("data should still be embedded: %v", arr)
	}
	if !strings.Contains(buf.String(), "cannot resolve collection context") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestTiddler_PlainBag(t *testing.T) {
	td := models.Tiddler{Title: "tiddler4", Bag: "bag6", Text: []byte("text4"), Tags: []string{"tag4"}}
	got := toMap(t)(testRenderer().Tiddler(td, false))
	links := linksOf(got)
	if got["title"] != "tiddler4" || got["text"] != "text4" {
		t.Errorf("data = %v", got)
	}
	if h := href(t, links, "self"); h != base+"/bags/bag6/tiddlers/tiddler4" {
		t.Errorf("self = %q", h)
	}
	if h := href(t, links, "tiddlyweb:tiddlers"); h != base+"/bags/bag6/tiddlers" {
		t.Errorf("tiddlers = %q", h)
	}
	if h := href(t, links, "collection"); h != base+"/bags/bag6/tiddlers" {
		t.Errorf("collection = %q", h)
	}
	if h := href(t, links, "tiddlyweb:bag"); h != base+"/bags/bag6" {
		t.Errorf("bag = %q", h)
	}
	if _, ok := links["tiddlyweb:recipe"]; ok {
		t.Error("bag tiddler must not link a recipe")
	}
	if _, ok := links["latest-version"]; ok {
		t.Error("plain tiddler must not carry latest-version")
	}
}

func TestTiddler_PlainRecipe(t *testing.T) {
	td := models.Tiddler{Title: "t", Bag: "bag6", Recipe: "mix"}
	links := linksOf(toMap(t)(testRenderer().Tiddler(td, false)))
	if h := href(t, links, "tiddlyweb:recipe"); h != base+"/recipes/mix" {
		t.Errorf("recipe = %q", h)
	}
	if _, ok := links["tiddlyweb:bag"]; ok {
		t.Error("recipe tiddler must not link a bag")
	}
	if h := href(t, links, "self"); h != base+"/recipes/mix/tiddlers/t" {
		t.Errorf("self = %q", h)
	}
}

func TestTiddler_Revision(t *testing.T) {
	td := models.Tiddler{Title: "tiddler4", Bag: "bag6", Revision: 1}
	links := linksOf(toMap(t)(testRenderer().Tiddler(td, true)))
	live := base + "/bags/bag6/tiddlers/tiddler4"
	if h := href(t, links, "latest-version"); h != live {
		t.Errorf("latest-version = %q", h)
	}
	if h := href(t, links, "tiddlyweb:tiddler"); h != live {
		t.Errorf("tiddler = %q", h)
	}
	if h := href(t, links, "collection"); h != live+"/revisions" {
		t.Errorf("collection = %q", h)
	}
	if h := href(t, links, "tiddlyweb:revisions"); h != live+"/revisions" {
		t.Errorf("revisions = %q", h)
	}
	if _, ok := links["self"]; ok {
		t.Error("revision render has no self link")
	}
}

func TestTiddler_BinaryBase64(t *testing.T) {
	td := models.Tiddler{Title: "img", Bag: "b", Type: "image/png", Text: []byte{1, 2, 3}, Encoding: models.EncodingBinary}
	got := toMap(t)(testRenderer().Tiddler(td, false))
	if got["text"] != "AQID" {
		t.Errorf("text = %v", got["text"])
	}
}

func TestPathOnlyBase(t *testing.T) {
	r := New("/wiki/", WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	links := linksOf(toMap(t)(r.Root()))
	if h := href(t, links, "self"); h != "/wiki/" {
		t.Errorf("self = %q", h)
	}
	if h := href(t, links, "tiddlyweb:recipes"); h != "/wiki/recipes" {
		t.Errorf("recipes = %q", h)
	}
}
