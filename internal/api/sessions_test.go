package api

import (
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/starford/margin/internal/editor"
	"github.com/starford/margin/internal/models"
)

func openSession(t *testing.T, env *testEnv, noteID string) SessionResponse {
	t.Helper()
	w := env.do(t, http.MethodPost, "/sessions", OpenSessionRequest{NoteID: noteID})
	if w.Code != http.StatusCreated {
		t.Fatalf("open status = %d, body = %s", w.Code, w.Body.String())
	}
	return decode[SessionResponse](t, w)
}

func TestSession_OpenNew(t *testing.T) {
	env := newTestEnv(t, "", nil)
	s := openSession(t, env, "")
	if s.SessionID == "" || s.NoteID != "" {
		t.Errorf("session = %+v", s)
	}
	if s.Content != "" || !slices.Equal(s.IndentLevels, []int{0}) {
		t.Errorf("new session content %q levels %v", s.Content, s.IndentLevels)
	}
	if s.Status.Dirty {
		t.Error("new session should be clean")
	}
}

func TestSession_OpenExisting(t *testing.T) {
	env := newTestEnv(t, "", nil)
	note := decode[models.Note](t, env.do(t, http.MethodPost, "/notes", NoteRequest{Title: "T", Content: "a\n    b"}))

	s := openSession(t, env, note.ID)
	if s.NoteID != note.ID || s.Title != "T" || s.Content != "a\n    b" {
		t.Errorf("session = %+v", s)
	}
	if len(s.Guides) != 2 {
		t.Errorf("guides = %+v, want 2", s.Guides)
	}
}

func TestSession_OpenMissingNote(t *testing.T) {
	env := newTestEnv(t, "", nil)
	if w := env.do(t, http.MethodPost, "/sessions", OpenSessionRequest{NoteID: "ghost"}); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSession_EditAndSaveWithKeys(t *testing.T) {
	env := newTestEnv(t, "", nil)
	sid := openSession(t, env, "").SessionID
	base := "/sessions/" + sid

	w := env.do(t, http.MethodPost, base+"/text", TextRequest{Content: "item", Caret: 4})
	if w.Code != http.StatusOK {
		t.Fatalf("text status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[SessionResponse](t, w); got.Caret != nil || !got.Status.Dirty {
		t.Errorf("after typing: caret %+v dirty %v", got.Caret, got.Status.Dirty)
	}

	tab := decode[SessionResponse](t, env.do(t, http.MethodPost, base+"/keys", KeyRequest{editor.KeyEvent{Key: editor.KeyTab, Caret: 4}}))
	if tab.Content != "  item" || !slices.Equal(tab.IndentLevels, []int{1}) {
		t.Errorf("after Tab: %q %v", tab.Content, tab.IndentLevels)
	}
	if !tab.Intercepted || tab.Caret == nil || tab.Caret.Offset != 2 {
		t.Errorf("Tab intercepted %v caret %+v", tab.Intercepted, tab.Caret)
	}

	enter := decode[SessionResponse](t, env.do(t, http.MethodPost, base+"/keys", KeyRequest{editor.KeyEvent{Key: editor.KeyEnter, Caret: 6}}))
	if enter.Content != "  item\n  " || !slices.Equal(enter.IndentLevels, []int{1, 1}) {
		t.Errorf("after Enter: %q %v", enter.Content, enter.IndentLevels)
	}
	if enter.Caret == nil || enter.Caret.Offset != 9 {
		t.Errorf("Enter caret = %+v, want 9", enter.Caret)
	}

	saved := decode[SessionResponse](t, env.do(t, http.MethodPost, base+"/keys", KeyRequest{editor.KeyEvent{Key: "s", Ctrl: true, Caret: 9}}))
	if !saved.Intercepted || saved.Status.Dirty || saved.NoteID == "" {
		t.Fatalf("after Ctrl+S: %+v", saved)
	}

	note := decode[models.Note](t, env.do(t, http.MethodGet, "/notes/"+saved.NoteID, nil))
	if note.Content != "  item\n  " || !slices.Equal(note.IndentLevels, []int{1, 1}) {
		t.Errorf("persisted %q %v", note.Content, note.IndentLevels)
	}
}

func TestSession_UnhandledKeyPassesThrough(t *testing.T) {
	env := newTestEnv(t, "", nil)
	sid := openSession(t, env, "").SessionID

	got := decode[SessionResponse](t, env.do(t, http.MethodPost, "/sessions/"+sid+"/keys", KeyRequest{editor.KeyEvent{Key: "a"}}))
	if got.Intercepted || got.Caret != nil {
		t.Errorf("plain key: %+v", got)
	}
}

func TestSession_KeyRequiresName(t *testing.T) {
	env := newTestEnv(t, "", nil)
	sid := openSession(t, env, "").SessionID
	if w := env.do(t, http.MethodPost, "/sessions/"+sid+"/keys", KeyRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSession_NegativeCaretRejected(t *testing.T) {
	env := newTestEnv(t, "", nil)
	sid := openSession(t, env, "").SessionID
	if w := env.do(t, http.MethodPost, "/sessions/"+sid+"/text", TextRequest{Content: "x", Caret: -1}); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSession_PreviewToggle(t *testing.T) {
	env := newTestEnv(t, "", nil)
	sid := openSession(t, env, "").SessionID
	base := "/sessions/" + sid
	env.do(t, http.MethodPost, base+"/text", TextRequest{Content: "# Heading", Caret: 9})

	on := decode[SessionResponse](t, env.do(t, http.MethodPost, base+"/keys", KeyRequest{editor.KeyEvent{Key: "p", Meta: true}}))
	if !on.Intercepted || !on.Status.Preview || !strings.Contains(on.PreviewHTML, "<h1") {
		t.Errorf("preview on: %+v", on)
	}
	if on.Content != "# Heading" {
		t.Errorf("preview changed content: %q", on.Content)
	}

	off := decode[SessionResponse](t, env.do(t, http.MethodPost, base+"/keys", KeyRequest{editor.KeyEvent{Key: "P", Ctrl: true}}))
	if off.Status.Preview || off.PreviewHTML != "" {
		t.Errorf("preview off: %+v", off)
	}
}

func TestSession_TitleMarksDirty(t *testing.T) {
	env := newTestEnv(t, "", nil)
	sid := openSession(t, env, "").SessionID

	w := env.do(t, http.MethodPut, "/sessions/"+sid+"/title", TitleRequest{Title: "Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("title status = %d", w.Code)
	}
	if got := decode[SessionResponse](t, w); got.Title != "Renamed" || !got.Status.Dirty {
		t.Errorf("after title: %+v", got)
	}

	saved := decode[SessionResponse](t, env.do(t, http.MethodPost, "/sessions/"+sid+"/save", nil))
	if saved.Status.Dirty || saved.LastSavedAt.IsZero() {
		t.Errorf("after save: %+v", saved)
	}
}

func TestSession_CloseSavesAndDiscards(t *testing.T) {
	env := newTestEnv(t, "", nil)
	sid := openSession(t, env, "").SessionID
	env.do(t, http.MethodPost, "/sessions/"+sid+"/text", TextRequest{Content: "unsaved", Caret: 7})

	if w := env.do(t, http.MethodDelete, "/sessions/"+sid, nil); w.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/sessions/"+sid, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after close = %d, want 404", w.Code)
	}
	if env.sessions.Len() != 0 {
		t.Errorf("open sessions = %d", env.sessions.Len())
	}

	list := decode[NoteListResponse](t, env.do(t, http.MethodGet, "/notes", nil))
	if list.Total != 1 {
		t.Errorf("final save missing, total = %d", list.Total)
	}
}

func TestSession_UnknownSession(t *testing.T) {
	env := newTestEnv(t, "", nil)
	if w := env.do(t, http.MethodGet, "/sessions/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/sessions/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("close status = %d, want 404", w.Code)
	}
}
