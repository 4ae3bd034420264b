package parser

import (
	"testing"
	"time"

	"github.com/starford/tiddlyhal/internal/models"
)

func TestParseTiddler_HeaderAndBody(t *testing.T) {
	data := []byte("title: Hello\ntags: one [[two words]]\nmodifier: alice\nmodified: 20240305070809\ncolor: red\n\nBody line 1\nBody: not a header\n")
	td, err := ParseTiddler(data)
	if err != nil {
		t.Fatalf("ParseTiddler: %v", err)
	}
	if td.Title != "Hello" || td.Modifier != "alice" {
		t.Errorf("tiddler = %+v", td)
	}
	if len(td.Tags) != 2 || td.Tags[1] != "two words" {
		t.Errorf("tags = %v", td.Tags)
	}
	if td.Fields["color"] != "red" {
		t.Errorf("fields = %v", td.Fields)
	}
	if string(td.Text) != "Body line 1\nBody: not a header\n" {
		t.Errorf("text = %q", td.Text)
	}
	if !td.Modified.Equal(time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC)) {
		t.Errorf("modified = %v", td.Modified)
	}
	if td.Encoding != models.EncodingText {
		t.Errorf("encoding = %v", td.Encoding)
	}
}

func TestParseTiddler_NoHeader(t *testing.T) {
	td, err := ParseTiddler([]byte("just some text\nmore"))
	if err != nil {
		t.Fatal(err)
	}
	if td.Title != "" || string(td.Text) != "just some text\nmore" {
		t.Errorf("tiddler = %+v", td)
	}
}

func TestParseTiddler_Binary(t *testing.T) {
	td, err := ParseTiddler([]byte("title: pic\ntype: image/png\n\nAQID\n"))
	if err != nil {
		t.Fatal(err)
	}
	if td.Encoding != models.EncodingBinary || len(td.Text) != 3 || td.Text[2] != 3 {
		t.Errorf("tiddler = %+v", td)
	}
}

func TestParseTiddler_BadTimestamp(t *testing.T) {
	if _, err := ParseTiddler([]byte("title: x\ncreated: yesterday\n\n")); err == nil {
		t.Error("expected timestamp error")
	}
}

func TestFormatTiddler_RoundTrip(t *testing.T) {
	in := models.Tiddler{
		Title:    "Round Trip",
		Tags:     []string{"a", "b c"},
		Fields:   map[string]string{"z": "1", "y": "2"},
		Modifier: "bob",
		Created:  time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC),
		Text:     []byte("line\n"),
	}
	out, err := ParseTiddler(FormatTiddler(in))
	if err != nil {
		t.Fatal(err)
	}
	if out.Title != in.Title || out.Modifier != "bob" || string(out.Text) != "line\n" {
		t.Errorf("out = %+v", out)
	}
	if len(out.Tags) != 2 || out.Tags[1] != "b c" {
		t.Errorf("tags = %v", out.Tags)
	}
	if out.Fields["y"] != "2" || !out.Created.Equal(in.Created) {
		t.Errorf("out = %+v", out)
	}
}

func TestFormatTiddler_BinaryRoundTrip(t *testing.T) {
	in := models.Tiddler{Title: "bin", Type: "application/octet-stream", Text: []byte{0, 255, 7}, Encoding: models.EncodingBinary}
	out, err := ParseTiddler(FormatTiddler(in))
	if err != nil {
		t.Fatal(err)
	}
	if string(out.Text) != string(in.Text) {
		t.Errorf("text = %v", out.Text)
	}
}

func TestParseTags_Dedup(t *testing.T) {
	tags := ParseTags("  a [[b b]] a   c [[unterminated")
	want := []string{"a", "b b", "c", "[[unterminated"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %q", tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, tags[i], want[i])
		}
	}
}

func TestParseRecipe_YAML(t *testing.T) {
	data := []byte("desc: mixed\npolicy:\n  read: [alice]\nrecipe:\n  - bag: system\n  - bag: notes\n    filter: \"tag:public\"\n")
	rc, err := ParseRecipe("mix", data)
	if err != nil {
		t.Fatal(err)
	}
	if rc.Name != "mix" || rc.Desc != "mixed" || len(rc.Policy.Read) != 1 {
		t.Errorf("recipe = %+v", rc)
	}
	if len(rc.Lines) != 2 || rc.Lines[0].Filter != "" || rc.Lines[1].Filter != "tag:public" {
		t.Errorf("lines = %+v", rc.Lines)
	}
}

func TestFormatBag_RoundTrip(t *testing.T) {
	in := models.Bag{Name: "b", Desc: "d", Policy: models.Policy{Write: []string{"x"}, Owner: "o"}}
	raw, err := FormatBag(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := ParseBag("b", raw)
	if err != nil {
		t.Fatal(err)
	}
	if out.Desc != "d" || out.Policy.Owner != "o" || out.Policy.Write[0] != "x" {
		t.Errorf("bag = %+v", out)
	}
}
