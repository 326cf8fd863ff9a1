package header

import (
	"errors"
	"strings"
	"testing"
)

func TestSetAndRead_DottedPath(t *testing.T) {
	h := New()
	if _, err := h.Set("pim.links", Array{String("a")}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, found, err := h.Read("pim.links")
	if err != nil || !found {
		t.Fatalf("Read: found=%v err=%v", found, err)
	}
	arr, ok := v.(Array)
	if !ok || len(arr) != 1 || arr[0] != String("a") {
		t.Errorf("value = %#v", v)
	}
	if _, ok := h.Table()["pim"].(Table); !ok {
		t.Error("intermediate table not created")
	}
}

func TestRead_Missing(t *testing.T) {
	h := New()
	_, found, err := h.Read("pim.links")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if found {
		t.Error("expected not found")
	}
}

func TestRead_ThroughScalarFails(t *testing.T) {
	h := FromTable(Table{"pim": String("oops")})
	if _, _, err := h.Read("pim.links"); !errors.Is(err, ErrNotATable) {
		t.Errorf("err = %v, want ErrNotATable", err)
	}
	if _, err := h.Set("pim.links", Array{}); !errors.Is(err, ErrNotATable) {
		t.Errorf("Set err = %v, want ErrNotATable", err)
	}
}

func TestSet_ReturnsPrevious(t *testing.T) {
	h := New()
	old, _ := h.Set("title", String("one"))
	if old != nil {
		t.Errorf("first Set old = %#v, want nil", old)
	}
	old, _ = h.Set("title", String("two"))
	if old != String("one") {
		t.Errorf("second Set old = %#v, want one", old)
	}
}

func TestDelete(t *testing.T) {
	h := New()
	_, _ = h.Set("a.b", Integer(1))
	old, err := h.Delete("a.b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if old != Integer(1) {
		t.Errorf("old = %#v", old)
	}
	if _, found, _ := h.Read("a.b"); found {
		t.Error("value still present")
	}
}

func TestEmptyPath(t *testing.T) {
	h := New()
	if _, _, err := h.Read(""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("err = %v", err)
	}
	if _, err := h.Set("a..b", String("x")); err == nil {
		t.Error("expected malformed path error")
	}
}

func TestYAMLRoundTrip_KeepsOtherFields(t *testing.T) {
	src := "title: Hello\ntags:\n  - go\ncount: 3\nratio: 0.5\ndraft: true\npim:\n  links:\n    - a\n    - link: b\n      annotation: note\n"
	h, err := Unmarshal([]byte(src))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v, _, _ := h.Read("count"); v != Integer(3) {
		t.Errorf("count = %#v", v)
	}
	if v, _, _ := h.Read("draft"); v != Boolean(true) {
		t.Errorf("draft = %#v", v)
	}
	links, _, _ := h.Read("pim.links")
	arr, ok := links.(Array)
	if !ok || len(arr) != 2 {
		t.Fatalf("links = %#v", links)
	}
	if _, ok := arr[1].(Table); !ok {
		t.Errorf("second link = %#v, want table", arr[1])
	}

	out, err := h.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{"title: Hello", "count: 3", "draft: true", "annotation: note"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("marshalled yaml missing %q:\n%s", want, out)
		}
	}
}

func TestClone_IsDeep(t *testing.T) {
	h := New()
	_, _ = h.Set("pim.links", Array{String("a")})
	c := h.Clone()
	_, _ = c.Set("pim.links", Array{})
	v, _, _ := h.Read("pim.links")
	if len(v.(Array)) != 1 {
		t.Error("clone mutation leaked into original")
	}
}

func TestMarshal_KeepsUntouchedScalars(t *testing.T) {
	src := "title: Hello\ndate: 2024-01-01\nbig: 18446744073709551615\nhex: 0x10\nratio: 1.0\n"
	h, err := Unmarshal([]byte(src))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v, _, _ := h.Read("date"); v != (Raw{Tag: "!!timestamp", Text: "2024-01-01"}) {
		t.Errorf("date = %#v", v)
	}
	if v, _, _ := h.Read("big"); v != (Raw{Tag: "!!int", Text: "18446744073709551615"}) {
		t.Errorf("big = %#v", v)
	}
	if v, _, _ := h.Read("hex"); v != Integer(16) {
		t.Errorf("hex = %#v", v)
	}
	if v, _, _ := h.Read("ratio"); v != Float(1) {
		t.Errorf("ratio = %#v", v)
	}

	if _, err := h.Set("pim.links", Array{String("a")}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	out, err := h.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(out), src) {
		t.Errorf("existing fields changed:\n%s", out)
	}
	if !strings.Contains(string(out), "pim:\n  links:\n") {
		t.Errorf("new field missing:\n%s", out)
	}
}

func TestMarshal_FreshValuesReadBack(t *testing.T) {
	h := FromTable(Table{
		"f":    Float(1),
		"when": Raw{Tag: "!!timestamp", Text: "2024-01-01"},
		"s":    String("2024-01-01"),
		"n":    Null{},
		"e":    String(""),
	})
	out, err := h.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Unmarshal(out)
	if err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, out)
	}
	for k, want := range h.Table() {
		if got := back.Table()[k]; got != want {
			t.Errorf("%s = %#v, want %#v\n%s", k, got, want, out)
		}
	}
}

func TestUnmarshal_NullValues(t *testing.T) {
	h, err := Unmarshal([]byte("title: A\ntags:\npim:\n  links:\n"))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v, found, _ := h.Read("tags"); !found || v != (Null{}) {
		t.Errorf("tags = %#v found=%v", v, found)
	}
	if v, found, _ := h.Read("pim.links"); !found || v != (Null{}) {
		t.Errorf("pim.links = %#v found=%v", v, found)
	}
	out, err := h.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(out), "null") {
		t.Errorf("empty values rewritten:\n%s", out)
	}
}

func TestNullParent(t *testing.T) {
	h, err := Unmarshal([]byte("pim:\n"))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, found, err := h.Read("pim.links"); err != nil || found {
		t.Fatalf("Read through null: found=%v err=%v", found, err)
	}
	if old, err := h.Delete("pim.links"); err != nil || old != nil {
		t.Fatalf("Delete through null: old=%#v err=%v", old, err)
	}
	if _, err := h.Set("pim.links", Array{}); err != nil {
		t.Fatalf("Set through null: %v", err)
	}
	if _, ok := h.Table()["pim"].(Table); !ok {
		t.Errorf("pim = %#v, want table", h.Table()["pim"])
	}
}

func TestUnmarshal_NotATable(t *testing.T) {
	if _, err := Unmarshal([]byte("- a\n- b\n")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("err = %v, want ErrUnsupportedType", err)
	}
}
