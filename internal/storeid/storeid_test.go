package storeid

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestNewBaseless_Valid(t *testing.T) {
	cases := map[string]string{
		"note":          "note",
		"a/b/c":         "a/b/c",
		"a/./b":         "a/b",
		"a/b.md":        "a/b",
		" spaced/name ": "spaced/name",
	}
	for in, want := range cases {
		id, err := NewBaseless(in)
		if err != nil {
			t.Fatalf("NewBaseless(%q): %v", in, err)
		}
		if id.String() != want {
			t.Errorf("NewBaseless(%q) = %q, want %q", in, id.String(), want)
		}
		if id.HasBase() {
			t.Errorf("NewBaseless(%q) has base", in)
		}
	}
}

func TestNewBaseless_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "/etc/passwd", "..", "../x", "a/../../b", ".md"} {
		if _, err := NewBaseless(in); !errors.Is(err, ErrInvalidID) {
			t.Errorf("NewBaseless(%q) err = %v, want ErrInvalidID", in, err)
		}
	}
}

func TestNew_StripsAbsoluteBase(t *testing.T) {
	base := t.TempDir()
	id, err := New(base, filepath.Join(base, "sub", "entry.md"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if id.String() != "sub/entry" {
		t.Errorf("id = %q, want sub/entry", id.String())
	}
	if id.Base() != base {
		t.Errorf("base = %q, want %q", id.Base(), base)
	}
}

func TestNew_AbsoluteOutsideBase(t *testing.T) {
	base := t.TempDir()
	if _, err := New(base, filepath.Join(filepath.Dir(base), "elsewhere")); err == nil {
		t.Error("expected error for path outside base")
	}
}

func TestBasedAndBaselessCompareEqual(t *testing.T) {
	based, _ := New("/vault", "x/y")
	baseless := MustBaseless("x/y")

	if !based.Equal(baseless) || Compare(based, baseless) != 0 {
		t.Error("based and baseless ids should compare equal")
	}
	m := map[ID]int{baseless: 1}
	if m[based.WithoutBase()] != 1 {
		t.Error("WithoutBase key should hit the baseless entry")
	}
}

func TestPath(t *testing.T) {
	if _, err := MustBaseless("a").Path(); err == nil {
		t.Error("expected error for baseless Path")
	}
	p, err := MustBaseless("a/b").WithBase("/vault").Path()
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if p != filepath.Join("/vault", "a", "b.md") {
		t.Errorf("path = %q", p)
	}
}

func TestHasPrefix(t *testing.T) {
	id := MustBaseless("calendar/collection/abc")
	if !id.HasPrefix("calendar") || !id.HasPrefix("calendar/collection/") || !id.HasPrefix("") {
		t.Error("expected prefix match")
	}
	if id.HasPrefix("cal") {
		t.Error("partial segment should not match")
	}
}

func TestTextRoundTrip(t *testing.T) {
	b, err := MustBaseless("a/b").WithBase("/vault").MarshalText()
	if err != nil || string(b) != "a/b" {
		t.Fatalf("MarshalText = %q, %v", b, err)
	}
	var id ID
	if err := id.UnmarshalText(b); err != nil {
		t.Fatal(err)
	}
	if !id.Equal(MustBaseless("a/b")) || id.HasBase() {
		t.Errorf("UnmarshalText = %+v", id)
	}
	if err := id.UnmarshalText([]byte("../x")); !errors.Is(err, ErrInvalidID) {
		t.Errorf("err = %v, want ErrInvalidID", err)
	}
}
