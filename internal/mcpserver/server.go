// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes margin notes and indent guides via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/margin/internal/apperr"
	"github.com/starford/margin/internal/editor"
	"github.com/starford/margin/internal/models"
	"github.com/starford/margin/internal/noteservice"
	"github.com/starford/margin/internal/storage"
)

const (
	noteFormatURI      = "margin://note-format"
	defaultSearchLimit = 20
	defaultListLimit   = 50
)

// Server wraps the MCP server with margin tools.
type Server struct {
	mcp    *server.MCPServer
	notes  *noteservice.Service
	store  storage.Provider
	guides editor.GuideRenderer
}

// New creates a new MCP server with all margin tools registered.
func New(notes *noteservice.Service, store storage.Provider, indentSize int) *Server {
	s := &Server{
		notes:  notes,
		store:  store,
		guides: editor.GuideRenderer{IndentSize: indentSize},
	}

	s.mcp = server.NewMCPServer(
		"margin",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes with title, checksum, line count and timestamps."),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
		mcp.WithString("sort", mcp.Description("Sort field: updated_at, created_at or title")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note: title, content, per-line indent levels and checksum."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Indentation is leading spaces; indent_levels "+
			"may be omitted and is then derived. Read the format via get_note_format or the "+
			noteFormatURI+" resource first."),
		mcp.WithString("title", mcp.Description("Note title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Plain text content, one item per line")),
		mcp.WithArray("indent_levels", mcp.Description("Indent level per line (0..8)"), mcp.Items(map[string]any{"type": "integer"})),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the content of a note. Pass the checksum from read_note "+
			"to fail instead of overwriting a concurrent change."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("New title (keeps the current title when omitted)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New content")),
		mcp.WithArray("indent_levels", mcp.Description("Indent level per line (0..8)"), mcp.Items(map[string]any{"type": "integer"})),
		mcp.WithString("checksum", mcp.Description("Expected current checksum")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_indent_guides",
		mcp.WithDescription("Return the indent guides of a note: one entry per indent column of every indented line."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.getIndentGuides)

	s.mcp.AddTool(mcp.NewTool("get_note_format",
		mcp.WithDescription("Returns the margin note format. "+
			"Call this before creating or updating notes."),
	), s.getNoteFormat)

	s.mcp.AddTool(mcp.NewTool("upload_attachment",
		mcp.WithDescription("Store an image or PDF in the vault from an http(s) URL or a base64 data URI. "+
			"Returns a Markdown image reference for the note body."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when omitted")),
	), s.uploadAttachment)

	s.mcp.AddResource(
		mcp.NewResource(noteFormatURI, "Note Format",
			mcp.WithResourceDescription("How margin stores notes and their indentation."),
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(id string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id))
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError(fmt.Sprintf("checksum mismatch: %s was changed, read it again", id))
	}
	return mcp.NewToolResultError(err.Error())
}

// levelsArg reads an optional integer array argument. JSON numbers arrive
// as float64.
func levelsArg(req mcp.CallToolRequest) ([]int, error) {
	raw, ok := req.GetArguments()["indent_levels"]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.New("indent_levels must be an array of integers")
	}
	levels := make([]int, len(items))
	for i, it := range items {
		f, ok := it.(float64)
		if !ok || f != math.Trunc(f) {
			return nil, fmt.Errorf("indent_levels[%d] is not an integer", i)
		}
		levels[i] = int(f)
	}
	return levels, nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultListLimit)
	offset := req.GetInt("offset", 0)
	items, total, err := s.notes.List(ctx, limit, offset, req.GetString("sort", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"notes": items, "total": total})
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.Get(ctx, id)
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonResult(note)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	levels, err := levelsArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.Create(ctx, models.NoteDraft{
		Title:        req.GetString("title", ""),
		Content:      content,
		IndentLevels: levels,
	})
	if err != nil {
		return toolError("", err), nil
	}
	return jsonResult(note)
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	levels, err := levelsArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	title, hasTitle := req.GetArguments()["title"].(string)
	if !hasTitle {
		current, err := s.notes.Get(ctx, id)
		if err != nil {
			return toolError(id, err), nil
		}
		title = current.Title
	}

	note, err := s.notes.Update(ctx, id, models.NoteDraft{
		Title:        title,
		Content:      content,
		IndentLevels: levels,
	}, req.GetString("checksum", ""))
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonResult(note)
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.notes.Search(ctx, query, req.GetInt("limit", defaultSearchLimit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getIndentGuides(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.Get(ctx, id)
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonResult(s.guides.Collect(note.Content, note.IndentLevels))
}

func (s *Server) getNoteFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormat), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormat,
		},
	}, nil
}
