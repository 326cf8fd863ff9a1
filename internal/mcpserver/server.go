// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes pimstore tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/pimstore/internal/entryservice"
)

const contractURI = "pim://entry-format"

// Server wraps the MCP server with pimstore tools.
type Server struct {
	mcp *server.MCPServer
	svc *entryservice.Service
}

// New creates a new MCP server with all pimstore tools registered.
func New(svc *entryservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"pimstore",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("read_entry",
		mcp.WithDescription("Read an entry with its header, body, links and backlinks."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry ID relative to the store root (e.g. notes/today)")),
	), s.readEntry)

	s.mcp.AddTool(mcp.NewTool("create_entry",
		mcp.WithDescription("Create a new entry. Links declared under pim.links in the header "+
			"are established in both directions and their targets must exist. Read the "+
			"contract first via get_entry_contract or the "+contractURI+" resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry ID for the new entry")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content with an optional YAML header")),
	), s.createEntry)

	s.mcp.AddTool(mcp.NewTool("get_entry_contract",
		mcp.WithDescription("Returns the entry format contract, including the link field."),
	), s.getEntryContract)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List entry IDs, optionally below a prefix."),
		mcp.WithString("prefix", mcp.Description("Optional ID prefix (e.g. calendar/)")),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("get_links",
		mcp.WithDescription("List the links stored in an entry."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry ID")),
	), s.getLinks)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all entries that link to the specified entry."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry ID to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("add_link",
		mcp.WithDescription("Link two entries in both directions."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source entry ID")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target entry ID")),
		mcp.WithString("annotation", mcp.Description("Optional annotation stored on the forward link")),
	), s.addLink)

	s.mcp.AddTool(mcp.NewTool("remove_link",
		mcp.WithDescription("Remove every link between two entries, on both sides."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source entry ID")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target entry ID")),
	), s.removeLink)

	s.mcp.AddTool(mcp.NewTool("check_links",
		mcp.WithDescription("Verify that every link resolves to an existing entry and is mirrored."),
	), s.checkLinks)

	// Resource: entry format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Entry Format Contract",
			mcp.WithResourceDescription("Entry file format and the bidirectional link field."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) readEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.svc.GetEntry(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(e), nil
}

func (s *Server) createEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.svc.CreateEntry(ctx, id, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", e.ID)), nil
}

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix := req.GetString("prefix", "")

	var ids []string
	for offset := 0; ; {
		items, total, err := s.svc.ListEntries(ctx, 500, offset, prefix, "")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		offset += len(items)
		if len(items) == 0 || offset >= total {
			break
		}
	}
	return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
}

func (s *Server) getLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.svc.Links(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no links found"), nil
	}
	return jsonResult(links), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	sources := make([]string, 0, len(bl))
	for _, e := range bl {
		sources = append(sources, e.Source)
	}
	return mcp.NewToolResultText(strings.Join(sources, "\n")), nil
}

func (s *Server) addLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Link(ctx, from, to, req.GetString("annotation", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("linked: %s <-> %s", from, to)), nil
}

func (s *Server) removeLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Unlink(ctx, from, to); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("unlinked: %s <-> %s", from, to)), nil
}

func (s *Server) checkLinks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.Check(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func (s *Server) getEntryContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EntryFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     EntryFormatContract,
		},
	}, nil
}
