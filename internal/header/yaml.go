package header

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	tagStr   = "!!str"
	tagInt   = "!!int"
	tagFloat = "!!float"
	tagBool  = "!!bool"
	tagNull  = "!!null"
	tagMap   = "!!map"
	tagSeq   = "!!seq"
)

// fromNode converts a YAML node into a header value.
func fromNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.MappingNode:
		tab := make(Table, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: non-scalar key at line %d", ErrUnsupportedType, k.Line)
			}
			v, err := fromNode(n.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k.Value, err)
			}
			tab[k.Value] = v
		}
		return tab, nil
	case yaml.SequenceNode:
		arr := make(Array, 0, len(n.Content))
		for i, e := range n.Content {
			v, err := fromNode(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		return fromScalar(n), nil
	default:
		return nil, fmt.Errorf("%w: node kind %d", ErrUnsupportedType, n.Kind)
	}
}

func fromScalar(n *yaml.Node) Value {
	tag := n.ShortTag()
	switch tag {
	case tagStr:
		return String(n.Value)
	case tagNull:
		return Null{}
	case tagInt:
		var i int64
		if n.Decode(&i) == nil {
			return Integer(i)
		}
	case tagFloat:
		var f float64
		if n.Decode(&f) == nil {
			return Float(f)
		}
	case tagBool:
		var b bool
		if n.Decode(&b) == nil {
			return Boolean(b)
		}
	}
	return Raw{Tag: tag, Text: n.Value}
}

// toNode renders v. When orig is the node v was read from and v still
// equals it, orig is reused so the original spelling survives.
func toNode(v Value, orig *yaml.Node) (*yaml.Node, error) {
	if orig != nil && orig.Kind != yaml.AliasNode {
		if ov, err := fromNode(orig); err == nil && reflect.DeepEqual(ov, v) {
			return orig, nil
		}
	}
	switch t := v.(type) {
	case Table:
		if orig != nil && orig.Kind != yaml.MappingNode {
			orig = nil
		}
		return tableNode(t, orig)
	case Array:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: tagSeq}
		if orig != nil && orig.Kind != yaml.SequenceNode {
			orig = nil
		}
		if orig != nil {
			n.Style = orig.Style & yaml.FlowStyle
		}
		for i, e := range t {
			var oe *yaml.Node
			if orig != nil && i < len(orig.Content) {
				oe = orig.Content[i]
			}
			en, err := toNode(e, oe)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			n.Content = append(n.Content, en)
		}
		return n, nil
	case String:
		return scalar(tagStr, string(t)), nil
	case Integer:
		return scalar(tagInt, strconv.FormatInt(int64(t), 10)), nil
	case Float:
		return scalar(tagFloat, formatFloat(float64(t))), nil
	case Boolean:
		return scalar(tagBool, strconv.FormatBool(bool(t))), nil
	case Null:
		return scalar(tagNull, "null"), nil
	case Raw:
		return scalar(t.Tag, t.Text), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

// tableNode keeps the key order of orig and appends new keys sorted.
func tableNode(t Table, orig *yaml.Node) (*yaml.Node, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: tagMap}
	seen := make(map[string]bool, len(t))
	add := func(k *yaml.Node, v Value, ov *yaml.Node) error {
		vn, err := toNode(v, ov)
		if err != nil {
			return fmt.Errorf("%s: %w", k.Value, err)
		}
		n.Content = append(n.Content, k, vn)
		seen[k.Value] = true
		return nil
	}
	if orig != nil {
		n.Style = orig.Style & yaml.FlowStyle
		for i := 0; i+1 < len(orig.Content); i += 2 {
			k := orig.Content[i]
			v, ok := t[k.Value]
			if !ok || seen[k.Value] {
				continue
			}
			if err := add(k, v, orig.Content[i+1]); err != nil {
				return nil, err
			}
		}
	}
	rest := make([]string, 0, len(t))
	for k := range t {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	for _, k := range rest {
		if err := add(scalar(tagStr, k), t[k], nil); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func scalar(tag, text string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: text}
}

// formatFloat spells f so that it reads back as a float, not an integer.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	case math.IsNaN(f):
		return ".nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// ToYAML converts a header table into plain Go values, as used for JSON
// output. Raw scalars become their text and Null becomes nil.
func ToYAML(t Table) map[string]any {
	out := make(map[string]any, len(t))
	for k, v := range t {
		out[k] = toAny(v)
	}
	return out
}

func toAny(v Value) any {
	switch t := v.(type) {
	case String:
		return string(t)
	case Integer:
		return int64(t)
	case Float:
		return float64(t)
	case Boolean:
		return bool(t)
	case Raw:
		return t.Text
	case Array:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toAny(e)
		}
		return out
	case Table:
		return ToYAML(t)
	default:
		return nil
	}
}

// Marshal renders h as YAML. Fields unchanged since Unmarshal keep their
// original text and order.
func (h *Header) Marshal() ([]byte, error) {
	if len(h.root) == 0 {
		return nil, nil
	}
	n, err := tableNode(h.root, h.src)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return nil, fmt.Errorf("header: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("header: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses YAML data into a header. Empty input is an empty header.
func Unmarshal(data []byte) (*Header, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("header: parse yaml: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return New(), nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.ShortTag() == tagNull {
		return New(), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: header is not a table", ErrUnsupportedType)
	}
	v, err := fromNode(root)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	h := FromTable(v.(Table))
	h.src = root
	return h, nil
}
