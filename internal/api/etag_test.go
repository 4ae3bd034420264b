package api

import (
	"reflect"
	"testing"
)

func TestSplitETags(t *testing.T) {
	got := splitETags(` "a", W/"b,c" ,"d"`)
	want := []string{`"a"`, `W/"b,c"`, `"d"`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitETags = %q, want %q", got, want)
	}
}

func TestETagMatches(t *testing.T) {
	if etagMatches("", `"x"`) {
		t.Error("empty header matched")
	}
	if !etagMatches(`W/"x"`, `"x"`) {
		t.Error("weak tag should match under weak comparison")
	}
	if etagMatches(`"xy"`, `"x"`) {
		t.Error("different tag matched")
	}
}
