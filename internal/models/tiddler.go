package models

import (
	"encoding/base64"
	"strings"
	"time"
)

// TimestampFormat is the TiddlyWeb timestamp layout (UTC, second precision).
const TimestampFormat = "20060102150405"

// timestampFill completes truncated timestamps with the earliest valid value.
const timestampFill = "00000101000000"

// Encoding says how a tiddler's text is carried.
type Encoding int

const (
	// EncodingText means the text is UTF-8 and rendered verbatim.
	EncodingText Encoding = iota
	// EncodingBinary means the text is raw bytes, rendered as base64.
	EncodingBinary
)

func (e Encoding) String() string {
	if e == EncodingBinary {
		return "binary"
	}
	return "text"
}

// EncodingForType picks the encoding for a content type. Empty and textual
// types are text, everything else is binary.
func EncodingForType(contentType string) Encoding {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "", ct == "none":
		return EncodingText
	case strings.HasPrefix(ct, "text/"):
		return EncodingText
	case strings.HasSuffix(ct, "json"), strings.HasSuffix(ct, "xml"), strings.HasSuffix(ct, "javascript"):
		return EncodingText
	}
	return EncodingBinary
}

// Tiddler is a titled, attributed unit of content living in a bag. Recipe is
// set when the tiddler was reached through a recipe; Revision is non-zero once
// the tiddler has been stored.
type Tiddler struct {
	Title    string
	Bag      string
	Recipe   string
	Revision int
	Type     string
	Tags     []string
	Fields   map[string]string
	Creator  string
	Modifier string
	Created  time.Time
	Modified time.Time
	Text     []byte
	Encoding Encoding
}

// Attributes returns every tiddler attribute except the text, keyed by the
// TiddlyWeb attribute name.
func (t Tiddler) Attributes() map[string]any {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	fields := t.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	return map[string]any{
		"title":    t.Title,
		"bag":      t.Bag,
		"recipe":   t.Recipe,
		"revision": t.Revision,
		"type":     t.Type,
		"tags":     tags,
		"fields":   fields,
		"creator":  t.Creator,
		"modifier": t.Modifier,
		"created":  FormatTimestamp(t.Created),
		"modified": FormatTimestamp(t.Modified),
	}
}

// RenderedText returns the text as it appears in a serialized tiddler.
func (t Tiddler) RenderedText() string {
	if t.Encoding == EncodingBinary {
		return base64.StdEncoding.EncodeToString(t.Text)
	}
	return string(t.Text)
}

// FormatTimestamp renders ts in TimestampFormat, or "" for the zero time.
func FormatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(TimestampFormat)
}

// ParseTimestamp parses a TimestampFormat value. Shorter prefixes (as found in
// older tiddlers) are accepted.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if len(s) < len(timestampFill) {
		s += timestampFill[len(s):]
	}
	return time.Parse(TimestampFormat, s[:len(TimestampFormat)])
}
