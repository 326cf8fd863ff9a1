package link

import (
	"errors"
	"fmt"
	"slices"

	"github.com/starford/pimstore/internal/header"
	"github.com/starford/pimstore/internal/storeid"
)

// Field is the header path holding an entry's links.
const Field = "pim.links"

const (
	keyLink       = "link"
	keyAnnotation = "annotation"
)

// Canonical strips the store root from every link, sorts, and removes
// duplicates. The result shares no memory with links.
func Canonical(links []Link) []Link {
	out := make([]Link, len(links))
	for i, l := range links {
		out[i] = l.WithoutBase()
	}
	slices.SortFunc(out, Compare)
	return slices.CompactFunc(out, Link.Equal)
}

// Encode converts links into their canonical header form.
func Encode(links []Link) (header.Array, error) {
	canon := Canonical(links)
	arr := make(header.Array, 0, len(canon))
	for _, l := range canon {
		v, err := encodeOne(l)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}

func encodeOne(l Link) (header.Value, error) {
	if l.target.IsZero() {
		return nil, fmt.Errorf("%w: link without target", ErrConversion)
	}
	if !l.annotated {
		return header.String(l.target.String()), nil
	}
	return header.Table{
		keyLink:       header.String(l.target.String()),
		keyAnnotation: header.String(l.annotation),
	}, nil
}

// Decode converts a stored link field back into links. A nil or null
// value is an empty set.
func Decode(v header.Value) ([]Link, error) {
	if _, null := v.(header.Null); v == nil || null {
		return nil, nil
	}
	arr, ok := v.(header.Array)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want array", ErrWrongFieldType, Field, v.TypeName())
	}
	out := make([]Link, 0, len(arr))
	for i, elem := range arr {
		l, err := decodeOne(elem)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", Field, i, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func decodeOne(v header.Value) (Link, error) {
	switch t := v.(type) {
	case header.String:
		id, err := parseID(string(t))
		if err != nil {
			return Link{}, err
		}
		return Plain(id), nil
	case header.Table:
		if len(t) != 2 {
			return Link{}, fmt.Errorf("%w: table must have exactly %q and %q", ErrMalformedLink, keyLink, keyAnnotation)
		}
		target, ok := t[keyLink].(header.String)
		if !ok {
			return Link{}, fmt.Errorf("%w: %q missing or not text", ErrMalformedLink, keyLink)
		}
		anno, ok := t[keyAnnotation].(header.String)
		if !ok {
			return Link{}, fmt.Errorf("%w: %q missing or not text", ErrMalformedLink, keyAnnotation)
		}
		id, err := parseID(string(target))
		if err != nil {
			return Link{}, err
		}
		return Annotated(id, string(anno)), nil
	default:
		return Link{}, fmt.Errorf("%w: element is %s", ErrMalformedLink, v.TypeName())
	}
}

func parseID(s string) (storeid.ID, error) {
	id, err := storeid.NewBaseless(s)
	if err != nil {
		return storeid.ID{}, fmt.Errorf("%w: %w", ErrIDParse, err)
	}
	return id, nil
}

// Links returns the link set stored in e.
func Links(e Entry) ([]Link, error) {
	v, _, err := e.Header().Read(Field)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWrongFieldType, e.Location(), err)
	}
	links, err := Decode(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Location(), err)
	}
	return links, nil
}

// setLinks replaces the link field of e wholesale and returns the previous
// set. It does not touch any other entry, so callers must keep the
// back-reference invariant themselves.
//
// A previous field that does not decode is overwritten all the same; the
// returned error then wraps ErrMalformedLink and the new field is in place.
func setLinks(e Entry, links []Link) ([]Link, error) {
	arr, err := Encode(links)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Location(), err)
	}
	old, err := e.Header().Set(Field, arr)
	if err != nil {
		if errors.Is(err, header.ErrNotATable) {
			return nil, fmt.Errorf("%w: %s: %w", ErrWrongFieldType, e.Location(), err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConversion, e.Location(), err)
	}
	prev, err := Decode(old)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: previous field overwritten: %w", ErrMalformedLink, e.Location(), err)
	}
	return prev, nil
}
