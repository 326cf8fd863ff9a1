package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/pimstore/internal/entryservice"
	"github.com/starford/pimstore/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	s, _ := testutil.TestStore(t)
	return New(entryservice.NewService(s, testutil.TestDB(t), testutil.Discard), "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so dispatch to the
	// handlers by name.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"read_entry":         srv.readEntry,
		"create_entry":       srv.createEntry,
		"list_entries":       srv.listEntries,
		"get_links":          srv.getLinks,
		"get_backlinks":      srv.getBacklinks,
		"add_link":           srv.addLink,
		"remove_link":        srv.removeLink,
		"check_links":        srv.checkLinks,
		"get_entry_contract": srv.getEntryContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadEntry(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "create_entry", map[string]any{
		"id":      "test",
		"content": "# Test\nHello",
	})
	if text := resultText(r); text != "created: test" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_entry", map[string]any{"id": "test"})
	if r.IsError {
		t.Fatalf("read failed: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, `"title": "Test"`) {
		t.Errorf("read result = %q", text)
	}
}

func TestReadEntryMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_entry", map[string]any{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing entry")
	}
}

func TestListEntries(t *testing.T) {
	srv := testServer(t)
	for _, id := range []string{"a", "b", "cal/c"} {
		callTool(t, srv, "create_entry", map[string]any{"id": id, "content": id})
	}

	r := callTool(t, srv, "list_entries", map[string]any{})
	if text := resultText(r); text != "a\nb\ncal/c" {
		t.Errorf("list = %q", text)
	}
	r = callTool(t, srv, "list_entries", map[string]any{"prefix": "cal/"})
	if text := resultText(r); text != "cal/c" {
		t.Errorf("prefixed list = %q", text)
	}
}

func TestLinkTools(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "create_entry", map[string]any{"id": "a", "content": "a"})
	callTool(t, srv, "create_entry", map[string]any{"id": "b", "content": "b"})

	r := callTool(t, srv, "add_link", map[string]any{"from": "a", "to": "b", "annotation": "ref"})
	if r.IsError {
		t.Fatalf("add_link: %s", resultText(r))
	}

	r = callTool(t, srv, "get_links", map[string]any{"id": "a"})
	if text := resultText(r); !strings.Contains(text, `"target": "b"`) || !strings.Contains(text, `"annotation": "ref"`) {
		t.Errorf("links = %q", text)
	}

	r = callTool(t, srv, "get_backlinks", map[string]any{"id": "b"})
	if text := resultText(r); text != "a" {
		t.Errorf("backlinks = %q, want a", text)
	}

	r = callTool(t, srv, "check_links", nil)
	if r.IsError || resultText(r) != "ok" {
		t.Errorf("check = %q", resultText(r))
	}

	r = callTool(t, srv, "remove_link", map[string]any{"from": "a", "to": "b"})
	if r.IsError {
		t.Fatalf("remove_link: %s", resultText(r))
	}
	r = callTool(t, srv, "get_links", map[string]any{"id": "b"})
	if text := resultText(r); text != "no links found" {
		t.Errorf("links after remove = %q", text)
	}
}

func TestAddLink_Errors(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "create_entry", map[string]any{"id": "a", "content": "a"})

	for _, args := range []map[string]any{
		{"from": "a"},
		{"from": "a", "to": "a"},
		{"from": "a", "to": "ghost"},
	} {
		if r := callTool(t, srv, "add_link", args); !r.IsError {
			t.Errorf("add_link(%v) should fail", args)
		}
	}
}

func TestCreateEntry_DeclaredLinks(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "create_entry", map[string]any{"id": "a", "content": "a"})

	r := callTool(t, srv, "create_entry", map[string]any{
		"id":      "b",
		"content": "---\npim:\n  links:\n  - a\n---\nb\n",
	})
	if r.IsError {
		t.Fatalf("create: %s", resultText(r))
	}
	r = callTool(t, srv, "get_backlinks", map[string]any{"id": "b"})
	if text := resultText(r); text != "a" {
		t.Errorf("backlinks = %q, want a", text)
	}
}

func TestEntryContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_entry_contract", nil)
	if !strings.Contains(resultText(r), "pim:\n  links:") {
		t.Error("contract does not document the link field")
	}
}
