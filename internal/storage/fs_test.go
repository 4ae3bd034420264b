package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	v, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return v
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("title: Hello\n\nWorld\n")
	if err := s.Write(TiddlerPath("notes", "Hello"), content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("bags/notes/tiddlers/Hello.tid")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadMissingIsNotExist(t *testing.T) {
	s := tempVault(t)
	_, err := s.Read("bags/none/bag.yaml")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("recipes/r.yaml", []byte("desc: x"))
	if err := s.Delete("recipes/r.yaml"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("recipes/r.yaml"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write(BagPath("a"), []byte("desc: a"))
	_ = s.Write(TiddlerPath("a", "one"), []byte("one"))
	_ = s.Write(RecipePath("r"), []byte("desc: r"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("len = %d, want 3: %v", len(items), items)
	}
	for _, it := range items {
		if it.Checksum == "" {
			t.Errorf("missing checksum for %s", it.Path)
		}
	}
}

func TestListMissingDir(t *testing.T) {
	s := tempVault(t)
	items, err := s.List("bags")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %v", items)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)
	for _, p := range []string{"../../etc/passwd", "../outside.tid", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("bags/a/bag.yaml", []byte("one"))
	if err := s.Write("bags/a/bag.yaml", []byte("two")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("bags/a/bag.yaml")
	if string(got) != "two" {
		t.Errorf("got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), "bags", "a", tempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "tiddlyhal-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		path string
		want Entry
	}{
		{"bags/notes/bag.yaml", Entry{Kind: EntryBag, Bag: "notes"}},
		{"recipes/mix.yaml", Entry{Kind: EntryRecipe, Name: "mix"}},
		{"bags/notes/tiddlers/Hello%20World.tid", Entry{Kind: EntryTiddler, Bag: "notes", Name: "Hello World"}},
		{"bags/notes/tiddlers/a%2Fb.tid", Entry{Kind: EntryTiddler, Bag: "notes", Name: "a/b"}},
		{"bags/notes/tiddlers/logo.png", Entry{Kind: EntryBinaryTiddler, Bag: "notes", Name: "logo.png"}},
		{"bags/notes/tiddlers/.hidden", Entry{}},
		{"bags/notes/readme.txt", Entry{}},
		{"other/x.yaml", Entry{}},
	}
	for _, c := range cases {
		got := Classify(c.path)
		got.Path = ""
		if got != c.want {
			t.Errorf("Classify(%q) = %+v, want %+v", c.path, got, c.want)
		}
	}
	if p := TiddlerPath("my bag", "a/b"); p != "bags/my%20bag/tiddlers/a%2Fb.tid" {
		t.Errorf("TiddlerPath = %q", p)
	}
}

func TestLayout_DotNamesRoundTrip(t *testing.T) {
	cases := []struct {
		path string
		want Entry
	}{
		{BagPath(".."), Entry{Kind: EntryBag, Bag: ".."}},
		{BagPath("."), Entry{Kind: EntryBag, Bag: "."}},
		{RecipePath(".mix"), Entry{Kind: EntryRecipe, Name: ".mix"}},
		{TiddlerPath("..", ".hidden"), Entry{Kind: EntryTiddler, Bag: "..", Name: ".hidden"}},
	}
	for _, c := range cases {
		if !strings.HasPrefix(c.path, "bags/%2E") && !strings.HasPrefix(c.path, "recipes/%2E") {
			t.Errorf("path %q leaves the dot unescaped", c.path)
		}
		got := Classify(c.path)
		got.Path = ""
		if got != c.want {
			t.Errorf("Classify(%q) = %+v, want %+v", c.path, got, c.want)
		}
	}
	if p := BagPath(".."); p != "bags/%2E./bag.yaml" {
		t.Errorf("BagPath(..) = %q", p)
	}
}
