package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/margin/internal/editor"
	"github.com/starford/margin/internal/markdown"
	"github.com/starford/margin/internal/noteservice"
	"github.com/starford/margin/internal/storage"
)

// Deps are the collaborators of the API router.
type Deps struct {
	Notes    *noteservice.Service
	Sessions *editor.Manager
	Markdown *markdown.Renderer
	Store    storage.Provider

	IndentSize  int
	AuthEnabled bool
	Token       string

	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d.Notes, d.Markdown, d.IndentSize)
	sh := NewSessionHandler(d.Sessions, d.Markdown)
	ah := NewAttachmentHandler(d.Store)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(d.AuthEnabled, d.Token))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Get("/{id}", h.GetNote)
		r.Put("/{id}", h.UpdateNote)
		r.Delete("/{id}", h.DeleteNote)
		r.Get("/{id}/guides", h.NoteGuides)
	})

	r.Get("/search", h.Search)
	r.Post("/preview", h.Preview)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", sh.Open)
		r.Get("/{sid}", sh.Get)
		r.Delete("/{sid}", sh.Close)
		r.Post("/{sid}/text", sh.Text)
		r.Post("/{sid}/keys", sh.Key)
		r.Put("/{sid}/title", sh.Title)
		r.Post("/{sid}/save", sh.Save)
	})

	r.Post("/attachments", ah.Upload)

	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
