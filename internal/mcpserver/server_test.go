package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/margin/internal/editor"
	"github.com/starford/margin/internal/models"
	"github.com/starford/margin/internal/noteservice"
	"github.com/starford/margin/internal/testutil"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	vaultDir, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	svc := noteservice.NewService(store, db)
	return New(svc, store, editor.DefaultIndentSize), vaultDir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_notes":        srv.listNotes,
		"read_note":         srv.readNote,
		"create_note":       srv.createNote,
		"update_note":       srv.updateNote,
		"search_notes":      srv.searchNotes,
		"get_indent_guides": srv.getIndentGuides,
		"get_note_format":   srv.getNoteFormat,
		"upload_attachment": srv.uploadAttachment,
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

func resultNote(t *testing.T, r *mcp.CallToolResult) models.Note {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	var n models.Note
	if err := json.Unmarshal([]byte(resultText(r)), &n); err != nil {
		t.Fatalf("decode note: %v", err)
	}
	return n
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	created := resultNote(t, callTool(t, srv, "create_note", map[string]any{
		"title":   "Test",
		"content": "root\n  child",
	}))
	if !slices.Equal(created.IndentLevels, []int{0, 1}) {
		t.Errorf("levels = %v, want derived [0 1]", created.IndentLevels)
	}

	read := resultNote(t, callTool(t, srv, "read_note", map[string]any{"id": created.ID}))
	if read.Title != "Test" || read.Content != "root\n  child" {
		t.Errorf("read = %+v", read)
	}
}

func TestCreateNote_ExplicitLevels(t *testing.T) {
	srv, _ := testServer(t)
	n := resultNote(t, callTool(t, srv, "create_note", map[string]any{
		"content":       "a\nb",
		"indent_levels": []any{float64(2), float64(3)},
	}))
	if !slices.Equal(n.IndentLevels, []int{2, 3}) {
		t.Errorf("levels = %v", n.IndentLevels)
	}
}

func TestCreateNote_BadLevels(t *testing.T) {
	srv, _ := testServer(t)
	for _, levels := range []any{"nope", []any{1.5}, []any{float64(9)}} {
		r := callTool(t, srv, "create_note", map[string]any{"content": "a", "indent_levels": levels})
		if !r.IsError {
			t.Errorf("levels %v: expected error", levels)
		}
	}
}

func TestUpdateNote_KeepsTitleAndChecksChecksum(t *testing.T) {
	srv, _ := testServer(t)
	created := resultNote(t, callTool(t, srv, "create_note", map[string]any{"title": "Keep", "content": "v1"}))

	updated := resultNote(t, callTool(t, srv, "update_note", map[string]any{
		"id":       created.ID,
		"content":  "v2",
		"checksum": created.Checksum,
	}))
	if updated.Title != "Keep" || updated.Content != "v2" {
		t.Errorf("updated = %+v", updated)
	}

	r := callTool(t, srv, "update_note", map[string]any{
		"id":       created.ID,
		"content":  "v3",
		"checksum": created.Checksum,
	})
	if !r.IsError || !strings.Contains(resultText(r), "checksum mismatch") {
		t.Errorf("stale update = %q", resultText(r))
	}
}

func TestListAndSearchNotes(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_note", map[string]any{"title": "Alpha", "content": "kiwi"})
	callTool(t, srv, "create_note", map[string]any{"title": "Beta", "content": "mango"})

	var list struct {
		Notes []noteservice.NoteListItem `json:"notes"`
		Total int                        `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "list_notes", map[string]any{"sort": "title"}))), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 2 || list.Notes[0].Title != "Alpha" {
		t.Errorf("list = %+v", list)
	}

	text := resultText(callTool(t, srv, "search_notes", map[string]any{"query": "mango"}))
	if !strings.Contains(text, "Beta") || strings.Contains(text, "Alpha") {
		t.Errorf("search = %s", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]any{"id": "nope"})
	if !r.IsError || resultText(r) != "not found: nope" {
		t.Errorf("missing note = %q", resultText(r))
	}
}

func TestGetIndentGuides(t *testing.T) {
	srv, _ := testServer(t)
	n := resultNote(t, callTool(t, srv, "create_note", map[string]any{"content": "a\n    b"}))

	var guides []editor.Guide
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "get_indent_guides", map[string]any{"id": n.ID}))), &guides); err != nil {
		t.Fatal(err)
	}
	want := []editor.Guide{{Line: 1, Column: 0, Level: 0}, {Line: 1, Column: 2, Level: 1}}
	if !slices.Equal(guides, want) {
		t.Errorf("guides = %+v, want %+v", guides, want)
	}
}

func TestNoteFormatResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != noteFormatURI || !strings.Contains(tc.Text, "indent_levels") {
		t.Errorf("resource = %+v", contents)
	}
	if resultText(callTool(t, srv, "get_note_format", nil)) != NoteFormat {
		t.Error("tool and resource disagree")
	}
}

func TestUploadAttachment_DataURI(t *testing.T) {
	srv, vaultDir := testServer(t)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)

	r := callTool(t, srv, "upload_attachment", map[string]any{"url": uri, "filename": "shot.png"})
	if r.IsError {
		t.Fatalf("upload: %s", resultText(r))
	}
	var res attachmentResult
	_ = json.Unmarshal([]byte(resultText(r)), &res)
	if res.MarkdownImage != "![shot.png](/attachments/shot.png)" {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(vaultDir, "attachments", "shot.png")); err != nil {
		t.Errorf("attachment not stored: %v", err)
	}

	again := callTool(t, srv, "upload_attachment", map[string]any{"url": uri, "filename": "shot.png"})
	if !again.IsError {
		t.Error("duplicate upload should fail")
	}
}

func TestUploadAttachment_Rejects(t *testing.T) {
	srv, _ := testServer(t)
	png := base64.StdEncoding.EncodeToString(pngHeader)
	cases := map[string]map[string]any{
		"markdown":      {"url": "data:image/png;base64," + png, "filename": "note.md"},
		"wrong content": {"url": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello")), "filename": "x.png"},
		"not base64":    {"url": "data:image/png,raw"},
		"bad scheme":    {"url": "ftp://example.com/a.png"},
		"loopback":      {"url": "http://127.0.0.1/a.png"},
	}
	for name, args := range cases {
		if r := callTool(t, srv, "upload_attachment", args); !r.IsError {
			t.Errorf("%s: expected error, got %q", name, resultText(r))
		}
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"photo.png":       "photo.png",
		"../../etc/x.png": "x.png",
		`dir\evil.png`:    "evil.png",
		"with space!.jpg": "with_space_.jpg",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := sanitizeName(".hidden.png"); !strings.HasSuffix(got, ".hidden.png") || strings.HasPrefix(got, ".") {
		t.Errorf("hidden name = %q", got)
	}
}
