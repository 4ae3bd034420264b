// Package parser reads and writes the vault's file formats: tiddlers in the
// TiddlyWeb text format (.tid) and bag/recipe definitions in YAML.
package parser

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/tiddlyhal/internal/models"
)

// headerKeys are the .tid header names mapped onto Tiddler attributes. Any
// other header becomes an extended field.
var headerKeys = map[string]bool{
	"title": true, "tags": true, "type": true,
	"creator": true, "modifier": true, "created": true, "modified": true,
}

// ParseTiddler parses a .tid file: "key: value" header lines, a blank line,
// then the body. A file whose first line is not a header is all body. A body
// whose type is binary is expected to be base64.
func ParseTiddler(data []byte) (models.Tiddler, error) {
	var t models.Tiddler
	header, body := splitHeader(data)

	for _, line := range header {
		key, value, _ := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "title":
			t.Title = value
		case "tags":
			t.Tags = ParseTags(value)
		case "type":
			t.Type = value
		case "creator":
			t.Creator = value
		case "modifier":
			t.Modifier = value
		case "created", "modified":
			ts, err := models.ParseTimestamp(value)
			if err != nil {
				return models.Tiddler{}, fmt.Errorf("parser: %s: %w", key, err)
			}
			if key == "created" {
				t.Created = ts
			} else {
				t.Modified = ts
			}
		default:
			if t.Fields == nil {
				t.Fields = make(map[string]string)
			}
			t.Fields[key] = value
		}
	}

	t.Encoding = models.EncodingForType(t.Type)
	if t.Encoding == models.EncodingBinary {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(body)))
		if err != nil {
			return models.Tiddler{}, fmt.Errorf("parser: binary body: %w", err)
		}
		t.Text = raw
	} else {
		t.Text = body
	}
	return t, nil
}

// splitHeader separates header lines from the body. Header lines must look
// like "key: value" with a non-empty key free of spaces.
func splitHeader(data []byte) ([]string, []byte) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	var header []string
	rest := data
	for len(rest) > 0 {
		line, after, found := bytes.Cut(rest, []byte("\n"))
		if len(bytes.TrimSpace(line)) == 0 {
			if !found {
				return header, nil
			}
			return header, after
		}
		if !isHeaderLine(string(line)) {
			if len(header) == 0 {
				return nil, data
			}
			// A malformed line ends the header early; treat it as body.
			return header, rest
		}
		header = append(header, string(line))
		if !found {
			return header, nil
		}
		rest = after
	}
	return header, nil
}

func isHeaderLine(line string) bool {
	key, _, ok := strings.Cut(line, ":")
	if !ok {
		return false
	}
	key = strings.TrimSpace(key)
	return key != "" && !strings.ContainsAny(key, " \t")
}

// FormatTiddler renders t in the .tid format. Binary text is written as
// base64.
func FormatTiddler(t models.Tiddler) []byte {
	var buf bytes.Buffer
	writeHeader := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&buf, "%s: %s\n", key, value)
		}
	}
	writeHeader("title", t.Title)
	writeHeader("type", t.Type)
	writeHeader("tags", FormatTags(t.Tags))
	writeHeader("creator", t.Creator)
	writeHeader("modifier", t.Modifier)
	writeHeader("created", models.FormatTimestamp(t.Created))
	writeHeader("modified", models.FormatTimestamp(t.Modified))

	keys := make([]string, 0, len(t.Fields))
	for k := range t.Fields {
		if !headerKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(k, t.Fields[k])
	}

	buf.WriteByte('\n')
	if t.Encoding == models.EncodingBinary {
		buf.WriteString(base64.StdEncoding.EncodeToString(t.Text))
		buf.WriteByte('\n')
	} else {
		buf.Write(t.Text)
	}
	return buf.Bytes()
}

// ParseTags splits a TiddlyWeb tag string. Tags are separated by spaces;
// tags containing spaces are wrapped in [[double brackets]].
func ParseTags(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	for s = strings.TrimSpace(s); s != ""; s = strings.TrimSpace(s) {
		if strings.HasPrefix(s, "[[") {
			if end := strings.Index(s, "]]"); end >= 0 {
				add(s[2:end])
				s = s[end+2:]
				continue
			}
		}
		word, rest, _ := strings.Cut(s, " ")
		add(word)
		s = rest
	}
	return out
}

// FormatTags joins tags into a TiddlyWeb tag string.
func FormatTags(tags []string) string {
	parts := make([]string, len(tags))
	for i, tag := range tags {
		if strings.ContainsAny(tag, " \t") {
			parts[i] = "[[" + tag + "]]"
		} else {
			parts[i] = tag
		}
	}
	return strings.Join(parts, " ")
}
