package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/margin/internal/editor"
	"github.com/starford/margin/internal/markdown"
)

// SessionHandler exposes editor sessions to the editing surface. Every
// mutating call answers with the full session state so the surface can
// replace its content, levels and guides in one step.
type SessionHandler struct {
	sessions *editor.Manager
	md       *markdown.Renderer
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions *editor.Manager, md *markdown.Renderer) *SessionHandler {
	return &SessionHandler{sessions: sessions, md: md}
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	sid := chi.URLParam(r, "sid")
	s, err := h.sessions.Get(sid)
	if err != nil {
		writeError(w, "get session", err, slog.String("session_id", sid))
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) respond(w http.ResponseWriter, status int, s *editor.Session, e *editor.Edit) {
	resp := SessionResponse{State: s.Snapshot()}
	if e != nil {
		resp.Intercepted = e.Intercepted
		if e.Caret.Reposition {
			c := e.Caret
			resp.Caret = &c
		}
	}
	if resp.Status.Preview {
		html, err := h.md.HTML(resp.Content)
		if err != nil {
			writeError(w, "render preview", err, slog.String("session_id", s.ID()))
			return
		}
		resp.PreviewHTML = html
	}
	writeJSON(w, status, resp)
}

// Open handles POST /api/sessions.
//
//	@Summary		Open an editor session for a note, or for a new note
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	false	"Note to edit"
//	@Success		201		{object}	SessionResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.sessions.Open(r.Context(), req.NoteID)
	if err != nil {
		writeError(w, "open session", err, slog.String("note_id", req.NoteID))
		return
	}
	h.respond(w, http.StatusCreated, s, nil)
}

// Get handles GET /api/sessions/{sid}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, s, nil)
}

// Text handles POST /api/sessions/{sid}/text.
//
//	@Summary		Apply a raw text change
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string		true	"Session id"
//	@Param			body	body		TextRequest	true	"New content and caret offset"
//	@Success		200		{object}	SessionResponse
//	@Failure		410		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/text [post]
func (h *SessionHandler) Text(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := s.TextChanged(req.Content, req.Caret)
	if err != nil {
		writeError(w, "text changed", err, slog.String("session_id", s.ID()))
		return
	}
	h.respond(w, http.StatusOK, s, &e)
}

// Key handles POST /api/sessions/{sid}/keys. A response with
// intercepted=false tells the surface to perform the key's default action.
//
//	@Summary		Forward a key press
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string		true	"Session id"
//	@Param			body	body		KeyRequest	true	"Key event"
//	@Success		200		{object}	SessionResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/keys [post]
func (h *SessionHandler) Key(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req KeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := s.HandleKey(r.Context(), req.KeyEvent)
	if err != nil {
		writeError(w, "handle key", err, slog.String("session_id", s.ID()), slog.String("key", req.Key))
		return
	}
	h.respond(w, http.StatusOK, s, &e)
}

// Title handles PUT /api/sessions/{sid}/title.
func (h *SessionHandler) Title(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req TitleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.SetTitle(req.Title); err != nil {
		writeError(w, "set title", err, slog.String("session_id", s.ID()))
		return
	}
	h.respond(w, http.StatusOK, s, nil)
}

// Save handles POST /api/sessions/{sid}/save. A failed save leaves the
// session dirty.
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := s.Save(r.Context()); err != nil {
		writeError(w, "save session", err, slog.String("session_id", s.ID()))
		return
	}
	h.respond(w, http.StatusOK, s, nil)
}

// Close handles DELETE /api/sessions/{sid}: final save, then discard. The
// session is gone even when the final save fails.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	if err := h.sessions.Close(r.Context(), sid); err != nil {
		writeError(w, "close session", err, slog.String("session_id", sid))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
