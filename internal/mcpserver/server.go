// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ansuz metadata tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/tagger"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	notes *noteservice.Service
	gen   *tagger.Service
}

// New creates a new MCP server with all Ansuz tools registered.
func New(store storage.Provider, notes *noteservice.Service, gen *tagger.Service) *Server {
	s := &Server{store: store, notes: notes, gen: gen}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("suggest_tags",
		mcp.WithDescription("Generate tag suggestions for a piece of text without touching any file."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to analyze")),
	), s.suggestTags)

	s.mcp.AddTool(mcp.NewTool("annotate_note",
		mcp.WithDescription("Generate metadata for a vault note and merge it into the note's frontmatter. "+
			"Existing frontmatter values are preserved; tags are merged without duplicates."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
		mcp.WithBoolean("force", mcp.Description("Add tags even when the note already carries the maximum")),
	), s.annotateNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("check_provider",
		mcp.WithDescription("Verify that the configured AI backend is reachable."),
	), s.checkProvider)

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

func (s *Server) suggestTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tags, err := s.gen.FetchTags(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string][]string{"tags": tags}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) annotateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	force := false
	if v, ok := req.GetArguments()["force"].(bool); ok {
		force = v
	}

	res, err := s.notes.ProcessNote(ctx, path, force)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{
		"path":    path,
		"updated": res.Updated,
		"message": res.Message,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) checkProvider(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := s.gen.TestConnection(ctx)
	if !res.Success {
		return mcp.NewToolResultError(res.Message), nil
	}
	return mcp.NewToolResultText(res.Message), nil
}
