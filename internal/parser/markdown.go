package parser

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrLinkParsing is returned when a Markdown link target is not a valid
// absolute URL.
var ErrLinkParsing = errors.New("parser: link parsing")

// Link is one inline Markdown link: [Title](Link).
type Link struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// URL parses the link target as an absolute URL.
func (l Link) URL() (*url.URL, error) {
	u, err := url.Parse(l.Link)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLinkParsing, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrLinkParsing, l.Link)
	}
	return u, nil
}

var md = goldmark.New()

// ExtractLinks returns every inline link of a Markdown body in document
// order. Duplicates are kept.
func ExtractLinks(body string) ([]Link, error) {
	src := []byte(body)
	doc := md.Parser().Parse(text.NewReader(src))

	var out []Link
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		l, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		if len(l.Destination) > 0 {
			out = append(out, Link{Title: inlineText(l, src), Link: string(l.Destination)})
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parser: walk markdown: %w", err)
	}
	return out, nil
}

// inlineText concatenates the text segments below n.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}
