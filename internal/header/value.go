// Package header models the structured metadata header of an entry as a
// tree of scalars, arrays, and tables.
package header

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNotATable is returned when a dotted path crosses a non-table value.
	ErrNotATable = errors.New("header: not a table")
	// ErrUnsupportedType is returned when a YAML value has no header form.
	ErrUnsupportedType = errors.New("header: unsupported value type")
	// ErrEmptyPath is returned for an empty dotted path.
	ErrEmptyPath = errors.New("header: empty path")
)

// Value is one node of the header tree. The set of implementations is
// closed: String, Integer, Float, Boolean, Null, Raw, Array, and Table.
type Value interface {
	isValue()
	// TypeName names the variant for error messages.
	TypeName() string
}

type (
	// String is a text scalar.
	String string
	// Integer is an integer scalar.
	Integer int64
	// Float is a floating point scalar.
	Float float64
	// Boolean is a boolean scalar.
	Boolean bool
	// Null is an explicitly empty value, as in "tags:" with nothing after it.
	Null struct{}
	// Raw is a scalar with no typed variant: a timestamp, an integer out of
	// int64 range, or a custom tag. It is written back as it was read.
	Raw struct {
		Tag  string
		Text string
	}
	// Array is an ordered sequence.
	Array []Value
	// Table maps keys to values.
	Table map[string]Value
)

func (String) isValue()  {}
func (Integer) isValue() {}
func (Float) isValue()   {}
func (Boolean) isValue() {}
func (Null) isValue()    {}
func (Raw) isValue()     {}
func (Array) isValue()   {}
func (Table) isValue()   {}

func (String) TypeName() string  { return "string" }
func (Integer) TypeName() string { return "integer" }
func (Float) TypeName() string   { return "float" }
func (Boolean) TypeName() string { return "boolean" }
func (Null) TypeName() string    { return "null" }
func (Raw) TypeName() string     { return "raw" }
func (Array) TypeName() string   { return "array" }
func (Table) TypeName() string   { return "table" }

// Header is the root table of an entry header. A header read from YAML
// remembers its source so that Marshal can leave untouched fields as
// they were written.
type Header struct {
	root Table
	src  *yaml.Node
}

// New returns an empty header.
func New() *Header {
	return &Header{root: Table{}}
}

// FromTable wraps t as a header. A nil t yields an empty header.
func FromTable(t Table) *Header {
	if t == nil {
		t = Table{}
	}
	return &Header{root: t}
}

// Table returns the root table.
func (h *Header) Table() Table {
	return h.root
}

func splitPath(p string) ([]string, error) {
	if strings.TrimSpace(p) == "" {
		return nil, ErrEmptyPath
	}
	parts := strings.Split(p, ".")
	if slices.Contains(parts, "") {
		return nil, fmt.Errorf("header: malformed path %q", p)
	}
	return parts, nil
}

// Read looks up the dotted path p. found is false when any segment is
// missing or null; crossing any other non-table value is an error.
func (h *Header) Read(p string) (v Value, found bool, err error) {
	parts, err := splitPath(p)
	if err != nil {
		return nil, false, err
	}
	cur := h.root
	for i, key := range parts {
		next, ok := cur[key]
		if !ok {
			return nil, false, nil
		}
		if i == len(parts)-1 {
			return next, true, nil
		}
		if _, ok := next.(Null); ok {
			return nil, false, nil
		}
		tab, ok := next.(Table)
		if !ok {
			return nil, false, fmt.Errorf("%w: %s is %s", ErrNotATable, strings.Join(parts[:i+1], "."), next.TypeName())
		}
		cur = tab
	}
	return nil, false, nil
}

// Set stores v at the dotted path p, creating intermediate tables in
// place of missing or null ones, and returns the value it replaced (nil
// if none).
func (h *Header) Set(p string, v Value) (Value, error) {
	parts, err := splitPath(p)
	if err != nil {
		return nil, err
	}
	cur := h.root
	for i, key := range parts[:len(parts)-1] {
		next, ok := cur[key]
		if _, null := next.(Null); !ok || null {
			tab := Table{}
			cur[key] = tab
			cur = tab
			continue
		}
		tab, ok := next.(Table)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %s", ErrNotATable, strings.Join(parts[:i+1], "."), next.TypeName())
		}
		cur = tab
	}
	last := parts[len(parts)-1]
	old := cur[last]
	cur[last] = v
	return old, nil
}

// Delete removes the value at p and returns it (nil if absent).
func (h *Header) Delete(p string) (Value, error) {
	parts, err := splitPath(p)
	if err != nil {
		return nil, err
	}
	parent := strings.Join(parts[:len(parts)-1], ".")
	tab := h.root
	if parent != "" {
		v, found, err := h.Read(parent)
		if err != nil || !found {
			return nil, err
		}
		if _, ok := v.(Null); ok {
			return nil, nil
		}
		t, ok := v.(Table)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %s", ErrNotATable, parent, v.TypeName())
		}
		tab = t
	}
	last := parts[len(parts)-1]
	old := tab[last]
	delete(tab, last)
	return old, nil
}

// Clone returns a deep copy of h. The YAML source is shared, it is never
// modified.
func (h *Header) Clone() *Header {
	return &Header{root: cloneValue(h.root).(Table), src: h.src}
}

func cloneValue(v Value) Value {
	switch t := v.(type) {
	case Array:
		out := make(Array, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case Table:
		out := make(Table, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
