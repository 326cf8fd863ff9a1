package parser

import (
	"errors"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantFM  string
		body    string
		wantErr error
	}{
		{name: "none", in: "# Title\nbody\n", body: "# Title\nbody\n"},
		{name: "block", in: "---\ntitle: x\n---\nbody\n", wantFM: "title: x\n", body: "body\n"},
		{name: "empty block", in: "---\n---\nbody", body: "body"},
		{name: "crlf", in: "---\r\ntitle: x\r\n---\r\nbody", wantFM: "title: x\r\n", body: "body"},
		{name: "longer dash line is content", in: "---\na: b\n----\n---\n", wantFM: "a: b\n----\n", body: ""},
		{name: "unterminated", in: "---\ntitle: x\nbody\n", wantErr: ErrUnterminatedFrontmatter},
		{name: "leading blank line is body", in: "\n---\na: b\n---\n", body: "\n---\na: b\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, err := Split([]byte(tt.in))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if string(fm) != tt.wantFM {
				t.Errorf("frontmatter = %q, want %q", fm, tt.wantFM)
			}
			if body != tt.body {
				t.Errorf("body = %q, want %q", body, tt.body)
			}
		})
	}
}

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - pim\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) < 2 || r.Tags[0] != "go" || r.Tags[1] != "pim" {
		t.Errorf("tags = %v, want [go pim]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestExtractWikiLinks(t *testing.T) {
	links := extractWikiLinks("See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again. [[ ]]")
	if len(links) != 2 || links[0] != "Note A" || links[1] != "Note B" {
		t.Errorf("links = %v", links)
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]any{"tags": []any{"alpha"}}
	tags := extractTags("Some text #beta and #alpha again.", fm)
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Errorf("tags = %v, want [alpha beta]", tags)
	}
}

func TestExtractLinks_One(t *testing.T) {
	links, err := ExtractLinks("Some [example text](http://example.com).")
	if err != nil {
		t.Fatalf("ExtractLinks: %v", err)
	}
	want := Link{Title: "example text", Link: "http://example.com"}
	if len(links) != 1 || links[0] != want {
		t.Errorf("links = %+v, want [%+v]", links, want)
	}
}

func TestExtractLinks_KeepsDuplicatesInOrder(t *testing.T) {
	body := "Some [example text](http://example.com).\nSome more [foo](http://example.com/foo).\nAgain [example text](http://example.com).\n"
	links, err := ExtractLinks(body)
	if err != nil {
		t.Fatalf("ExtractLinks: %v", err)
	}
	want := []Link{
		{Title: "example text", Link: "http://example.com"},
		{Title: "foo", Link: "http://example.com/foo"},
		{Title: "example text", Link: "http://example.com"},
	}
	if len(links) != len(want) {
		t.Fatalf("links = %+v", links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %+v, want %+v", i, links[i], want[i])
		}
	}
}

func TestExtractLinks_EmphasisInTitle(t *testing.T) {
	links, err := ExtractLinks("[a *b* c](https://x.org)")
	if err != nil {
		t.Fatalf("ExtractLinks: %v", err)
	}
	if len(links) != 1 || links[0].Title != "a b c" {
		t.Errorf("links = %+v", links)
	}
}

func TestLinkURL(t *testing.T) {
	u, err := Link{Link: "https://example.com/a?b=c"}.URL()
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if u.Host != "example.com" {
		t.Errorf("host = %q", u.Host)
	}
	if _, err := (Link{Link: "relative/path"}).URL(); !errors.Is(err, ErrLinkParsing) {
		t.Errorf("relative err = %v, want ErrLinkParsing", err)
	}
	if _, err := (Link{Link: "http://[::1"}).URL(); !errors.Is(err, ErrLinkParsing) {
		t.Errorf("malformed err = %v, want ErrLinkParsing", err)
	}
}
