// Package parser splits entry files into frontmatter and body and extracts
// titles, tags, wikilinks, and Markdown links from the body.
package parser

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnterminatedFrontmatter is returned by Split when an opening delimiter
// has no matching closing line.
var ErrUnterminatedFrontmatter = errors.New("parser: unterminated frontmatter")

const delim = "---"

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Result holds the output of parsing an entry file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
	Tags        []string
	WikiLinks   []string
	Links       []Link
}

// Split separates the YAML block between the leading "---" lines from the
// body. Content that does not start with a delimiter line has no
// frontmatter.
func Split(data []byte) (frontmatter []byte, body string, err error) {
	if !bytes.HasPrefix(data, []byte(delim+"\n")) && !bytes.HasPrefix(data, []byte(delim+"\r\n")) {
		return nil, string(data), nil
	}
	rest := data[bytes.IndexByte(data, '\n')+1:]
	if bytes.HasPrefix(rest, []byte(delim)) && lineEnd(rest[len(delim):]) {
		return nil, trimLineBreak(rest[len(delim):]), nil
	}
	idx := bytes.Index(rest, []byte("\n"+delim))
	for idx >= 0 && !lineEnd(rest[idx+1+len(delim):]) {
		next := bytes.Index(rest[idx+1:], []byte("\n"+delim))
		if next < 0 {
			idx = -1
			break
		}
		idx += 1 + next
	}
	if idx < 0 {
		return nil, "", ErrUnterminatedFrontmatter
	}
	return rest[:idx+1], trimLineBreak(rest[idx+1+len(delim):]), nil
}

// lineEnd reports whether b starts at the end of a line.
func lineEnd(b []byte) bool {
	return len(b) == 0 || b[0] == '\n' || bytes.HasPrefix(b, []byte("\r\n"))
}

func trimLineBreak(b []byte) string {
	s := string(b)
	s = strings.TrimPrefix(s, "\r")
	return strings.TrimPrefix(s, "\n")
}

// Parse extracts frontmatter, body, title, tags, and links from raw bytes.
// Broken frontmatter is not an error here: the whole content is treated as
// body.
func Parse(data []byte) (*Result, error) {
	fm, body := splitLenient(data)
	links, err := ExtractLinks(body)
	if err != nil {
		return nil, err
	}
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Tags:        extractTags(body, fm),
		WikiLinks:   extractWikiLinks(body),
		Links:       links,
	}, nil
}

func splitLenient(data []byte) (map[string]any, string) {
	block, body, err := Split(data)
	if err != nil || block == nil {
		return nil, string(data)
	}
	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// extractWikiLinks returns deduplicated wikilink targets, normalising aliases.
func extractWikiLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects #tags from the body and from the frontmatter "tags"
// field, frontmatter first.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if raw, ok := fm["tags"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					add(s)
				}
			}
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
