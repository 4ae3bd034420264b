package storage

import (
	"net/url"
	"path"
	"strings"
)

// Vault layout:
//
//	bags/<bag>/bag.yaml              bag definition
//	bags/<bag>/tiddlers/<title>.tid  text tiddler (or base64 body for binary types)
//	bags/<bag>/tiddlers/<file>       any other file: binary tiddler titled <file>
//	recipes/<recipe>.yaml            recipe definition
//
// Names are path-escaped so titles may contain slashes.
const (
	bagsDir     = "bags"
	recipesDir  = "recipes"
	tiddlersDir = "tiddlers"
	bagFile     = "bag.yaml"
	tiddlerExt  = ".tid"
	recipeExt   = ".yaml"
)

// EntryKind classifies a vault path.
type EntryKind int

const (
	EntryUnknown EntryKind = iota
	EntryBag
	EntryRecipe
	EntryTiddler
	EntryBinaryTiddler
)

// Entry is a classified vault path.
type Entry struct {
	Kind EntryKind
	Bag  string
	Name string // recipe name or tiddler title
	Path string
}

// BagPath is the definition file of a bag.
func BagPath(bag string) string {
	return path.Join(bagsDir, escape(bag), bagFile)
}

// RecipePath is the definition file of a recipe.
func RecipePath(recipe string) string {
	return path.Join(recipesDir, escape(recipe)+recipeExt)
}

// TiddlerPath is the .tid file of a tiddler.
func TiddlerPath(bag, title string) string {
	return path.Join(bagsDir, escape(bag), tiddlersDir, escape(title)+tiddlerExt)
}

// BagDir is the directory holding a bag's files.
func BagDir(bag string) string {
	return path.Join(bagsDir, escape(bag))
}

// Classify maps a vault path to the entity it stores.
func Classify(p string) Entry {
	parts := strings.Split(path.Clean(p), "/")
	e := Entry{Path: p}
	switch {
	case len(parts) == 2 && parts[0] == recipesDir && strings.HasSuffix(parts[1], recipeExt):
		if name, ok := unescape(strings.TrimSuffix(parts[1], recipeExt)); ok {
			e.Kind, e.Name = EntryRecipe, name
		}
	case len(parts) == 3 && parts[0] == bagsDir && parts[2] == bagFile:
		if bag, ok := unescape(parts[1]); ok {
			e.Kind, e.Bag = EntryBag, bag
		}
	case len(parts) == 4 && parts[0] == bagsDir && parts[2] == tiddlersDir:
		bag, okBag := unescape(parts[1])
		file := parts[3]
		if !okBag || strings.HasPrefix(file, ".") {
			return e
		}
		if strings.HasSuffix(file, tiddlerExt) {
			if title, ok := unescape(strings.TrimSuffix(file, tiddlerExt)); ok {
				e.Kind, e.Bag, e.Name = EntryTiddler, bag, title
			}
		} else if title, ok := unescape(file); ok {
			e.Kind, e.Bag, e.Name = EntryBinaryTiddler, bag, title
		}
	}
	return e
}

// escape path-escapes name and encodes a leading dot, so "." and ".." stay
// inside their directory and no name is taken for a hidden file.
func escape(name string) string {
	seg := url.PathEscape(name)
	if strings.HasPrefix(seg, ".") {
		seg = "%2E" + seg[1:]
	}
	return seg
}

func unescape(seg string) (string, bool) {
	name, err := url.PathUnescape(seg)
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}
