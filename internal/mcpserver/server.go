// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes MarkIt note tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/markit/internal/apperr"
	"github.com/starford/markit/internal/models"
	"github.com/starford/markit/internal/noteservice"
)

// NoteFormatURI is the resource describing the note record.
const NoteFormatURI = "markit://note-format"

// Server wraps the MCP server with MarkIt tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all MarkIt tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"MarkIt",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes newest first. With a query, only notes whose title or content contains it (case-insensitive)."),
		mcp.WithString("query", mcp.Description("Optional search term")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note's title, content and timestamps."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. Omitted fields get the defaults described by the "+NoteFormatURI+" resource."),
		mcp.WithString("title", mcp.Description("Optional title")),
		mcp.WithString("content", mcp.Description("Optional markdown content")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Change a note's title and/or content. The change is saved immediately."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New markdown content")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note. Deleting an unknown id is not an error."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("export_note",
		mcp.WithDescription("Export a note as a markdown file: returns the suggested filename and the raw content."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.exportNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the MarkIt note record format."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format",
			mcp.WithResourceDescription("Fields, defaults and export rules of a MarkIt note."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

// optionalPatch reads title/content arguments, distinguishing absent from empty.
func optionalPatch(req mcp.CallToolRequest) models.Patch {
	var p models.Patch
	args := req.GetArguments()
	if v, ok := args["title"].(string); ok {
		p.Title = &v
	}
	if v, ok := args["content"].(string); ok {
		p.Content = &v
	}
	return p
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(id string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := s.svc.ListNotes(ctx, req.GetString("query", ""))
	return jsonResult(items), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, id)
	if err != nil {
		return errorResult(id, err), nil
	}
	return jsonResult(note), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, err := s.svc.CreateNote(ctx, optionalPatch(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p := optionalPatch(req)
	if p.IsEmpty() {
		return mcp.NewToolResultError("title or content is required"), nil
	}
	note, err := s.svc.UpdateNote(ctx, id, p, "")
	if err != nil {
		return errorResult(id, err), nil
	}
	return jsonResult(note), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	existed, err := s.svc.DeleteNote(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !existed {
		return mcp.NewToolResultText(fmt.Sprintf("no such note: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) exportNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.svc.ExportNote(ctx, id)
	if err != nil {
		return errorResult(id, err), nil
	}
	return jsonResult(map[string]string{
		"filename": a.Filename,
		"mimeType": a.MIMEType,
		"content":  string(a.Body),
	}), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
