package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/margin/internal/editor"
	"github.com/starford/margin/internal/index"
	"github.com/starford/margin/internal/models"
	"github.com/starford/margin/internal/noteservice"
)

const maxTitleLen = 200

// NoteRequest is the request body for creating or replacing a note.
// IndentLevels may be omitted; they are then derived from leading spaces.
type NoteRequest struct {
	Title        string `json:"title" example:"Groceries"`
	Content      string `json:"content" example:"fruit\n  apples"`
	IndentLevels []int  `json:"indent_levels,omitempty" example:"0,1"`
}

// Validate implements validation.Validatable.
func (r *NoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Length(0, maxTitleLen)),
		validation.Field(&r.IndentLevels, validation.Each(validation.Min(0), validation.Max(editor.MaxIndent))),
	)
}

func (r *NoteRequest) draft() models.NoteDraft {
	return models.NoteDraft{Title: r.Title, Content: r.Content, IndentLevels: r.IndentLevels}
}

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes"`
	Total int            `json:"total" example:"42"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// GuidesResponse lists the indent guides of a note.
type GuidesResponse struct {
	NoteID string         `json:"note_id"`
	Guides []editor.Guide `json:"guides"`
}

// PreviewRequest is the body of POST /preview.
type PreviewRequest struct {
	Content string `json:"content"`
}

// Validate implements validation.Validatable.
func (r *PreviewRequest) Validate() error { return nil }

// PreviewResponse carries sanitized HTML.
type PreviewResponse struct {
	HTML string `json:"html"`
}

// OpenSessionRequest opens an editor session. An empty NoteID starts a new note.
type OpenSessionRequest struct {
	NoteID string `json:"note_id,omitempty"`
}

// Validate implements validation.Validatable.
func (r *OpenSessionRequest) Validate() error { return nil }

// TextRequest reports a raw text change from the editing surface.
type TextRequest struct {
	Content string `json:"content"`
	Caret   int    `json:"caret"`
}

// Validate implements validation.Validatable.
func (r *TextRequest) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.Caret, validation.Min(0)))
}

// KeyRequest is a key press forwarded by the editing surface.
type KeyRequest struct {
	editor.KeyEvent
}

// Validate implements validation.Validatable.
func (r *KeyRequest) Validate() error {
	return validation.ValidateStruct(&r.KeyEvent,
		validation.Field(&r.KeyEvent.Key, validation.Required),
		validation.Field(&r.KeyEvent.Caret, validation.Min(0)),
	)
}

// TitleRequest replaces the title of the note being edited.
type TitleRequest struct {
	Title string `json:"title"`
}

// Validate implements validation.Validatable.
func (r *TitleRequest) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.Title, validation.Length(0, maxTitleLen)))
}

// SessionResponse is the session state after an operation. Caret is set
// when the surface must move its caret; Intercepted reports whether a key
// was consumed.
type SessionResponse struct {
	editor.State
	Caret       *editor.Caret `json:"caret,omitempty"`
	Intercepted bool          `json:"intercepted"`
	PreviewHTML string        `json:"preview_html,omitempty"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	Filename string `json:"filename" example:"image.png"`
	Size     int64  `json:"size" example:"12345"`
	URL      string `json:"url" example:"/attachments/image.png"`
}
