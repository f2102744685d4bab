// Package noteservice is the note store: vault files are the source of truth,
// the SQLite index serves listing and search.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/margin/internal/apperr"
	"github.com/starford/margin/internal/checksum"
	"github.com/starford/margin/internal/editor"
	"github.com/starford/margin/internal/index"
	"github.com/starford/margin/internal/models"
	"github.com/starford/margin/internal/parser"
	"github.com/starford/margin/internal/storage"
)

const maxTitleLen = 200

// Change kinds passed to the change hook.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	LineCount int       `json:"line_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates storage and index operations.
type Service struct {
	store      storage.Provider
	db         *index.DB
	indentSize int
	now        func() time.Time
	newID      func() string
	onChange   func(kind, id string)

	// mu makes the If-Match check and the write of an update one step.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithIndentSize sets the spaces per level used to derive missing indent levels.
func WithIndentSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.indentSize = n
		}
	}
}

// WithClock overrides the time source for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithChangeHook registers fn to run after every successful write or delete.
func WithChangeHook(fn func(kind, id string)) Option {
	return func(s *Service) { s.onChange = fn }
}

// NewService creates a new note service.
func NewService(store storage.Provider, db *index.DB, opts ...Option) *Service {
	s := &Service{
		store:      store,
		db:         db,
		indentSize: editor.DefaultIndentSize,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateDraft checks a draft before it is written. Indent levels may have
// the wrong length (they are repaired) but every entry must be in range.
func ValidateDraft(d models.NoteDraft) error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.Length(0, maxTitleLen)),
		validation.Field(&d.IndentLevels, validation.Each(validation.Min(0), validation.Max(editor.MaxIndent))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	return nil
}

// Get reads a note from the vault.
func (s *Service) Get(_ context.Context, id string) (*models.Note, error) {
	if id == "" {
		return nil, apperr.ErrNotFound
	}
	path := index.PathFromID(id)
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	return s.buildNote(id, data)
}

// Create writes a new note under a fresh id and indexes it.
func (s *Service) Create(_ context.Context, draft models.NoteDraft) (*models.Note, error) {
	if err := ValidateDraft(draft); err != nil {
		return nil, err
	}
	id := s.newID()
	now := s.now().UTC()
	data, err := s.encode(draft, now, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(index.PathFromID(id), data); err != nil {
		return nil, err
	}
	return s.afterWrite(ChangeCreated, id, data)
}

// Update replaces title, content and indent levels of an existing note.
// A non-empty ifMatch must equal the checksum of the stored file.
func (s *Service) Update(_ context.Context, id string, draft models.NoteDraft, ifMatch string) (*models.Note, error) {
	if err := ValidateDraft(draft); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, apperr.ErrNotFound
	}
	path := index.PathFromID(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	if !checksum.Match(ifMatch, checksum.Sum(existing)) {
		return nil, apperr.ErrConflict
	}

	now := s.now().UTC()
	created := now
	if prev, _ := parser.Parse(existing); prev != nil && !prev.Frontmatter.Created.IsZero() {
		created = prev.Frontmatter.Created
	}
	data, err := s.encode(draft, created, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	return s.afterWrite(ChangeUpdated, id, data)
}

// Delete removes a note from storage and index.
func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return apperr.ErrNotFound
	}
	if err := s.store.Delete(index.PathFromID(id)); err != nil {
		return err
	}
	if err := s.db.DeleteNote(id); err != nil {
		return err
	}
	s.notify(ChangeDeleted, id)
	return nil
}

// List returns one page of notes and the total count.
func (s *Service) List(_ context.Context, limit, offset int, sort string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			ID:        r.ID,
			Title:     r.Title,
			Checksum:  r.Checksum,
			LineCount: r.LineCount,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

func (s *Service) encode(d models.NoteDraft, created, updated time.Time) ([]byte, error) {
	return parser.Format(parser.Frontmatter{
		Title:        d.Title,
		Created:      created,
		Updated:      updated,
		IndentLevels: s.levelsFor(d.Content, d.IndentLevels),
	}, d.Content)
}

func (s *Service) afterWrite(kind, id string, data []byte) (*models.Note, error) {
	if _, err := index.IndexFile(s.db, index.PathFromID(id), data, s.now()); err != nil {
		return nil, fmt.Errorf("noteservice: index %s: %w", id, err)
	}
	note, err := s.buildNote(id, data)
	if err != nil {
		return nil, err
	}
	s.notify(kind, id)
	return note, nil
}

// buildNote constructs a Note from raw file bytes without re-reading the file.
func (s *Service) buildNote(id string, data []byte) (*models.Note, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	n := &models.Note{
		ID:           id,
		Title:        res.Title,
		Content:      res.Body,
		IndentLevels: s.levelsFor(res.Body, res.Frontmatter.IndentLevels),
		Checksum:     checksum.Sum(data),
		CreatedAt:    res.Frontmatter.Created,
		UpdatedAt:    res.Frontmatter.Updated,
	}
	if n.CreatedAt.IsZero() || n.UpdatedAt.IsZero() {
		// Plain Markdown files carry no timestamps; use what the index knows.
		row, err := s.db.GetNote(id)
		switch {
		case err == nil:
			n.CreatedAt, n.UpdatedAt = row.CreatedAt, row.UpdatedAt
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, err
		}
	}
	return n, nil
}

// levelsFor repairs levels to the line count of content, or derives them
// from leading spaces when there are none.
func (s *Service) levelsFor(content string, levels []int) []int {
	if len(levels) == 0 {
		return editor.DeriveLevels(content, s.indentSize)
	}
	return editor.RepairLevels(content, levels)
}

func (s *Service) notify(kind, id string) {
	if s.onChange != nil {
		s.onChange(kind, id)
	}
}
