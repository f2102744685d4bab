package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/margin/internal/models"
)

// NoteStore is the note store a Manager opens sessions against.
type NoteStore interface {
	Store
	Get(ctx context.Context, id string) (*models.Note, error)
}

// Manager keeps the open editing sessions of the host views.
type Manager struct {
	store            NoteStore
	logger           *slog.Logger
	indentSize       int
	autosaveInterval time.Duration
	autosaveAfter    time.Duration
	onSaved          func(sessionID string, note *models.Note)

	mu       sync.Mutex
	sessions map[string]*Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerIndentSize sets the indent size of every session.
func WithManagerIndentSize(n int) ManagerOption {
	return func(m *Manager) { m.indentSize = n }
}

// WithAutosave sets the autosave tick interval and the minimum time since the
// last save before an autosave fires. A zero interval disables autosave.
func WithAutosave(interval, after time.Duration) ManagerOption {
	return func(m *Manager) {
		m.autosaveInterval = interval
		m.autosaveAfter = after
	}
}

// WithManagerLogger sets the logger handed to sessions.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithOnSaved registers fn to run after any session saves.
func WithOnSaved(fn func(sessionID string, note *models.Note)) ManagerOption {
	return func(m *Manager) { m.onSaved = fn }
}

// NewManager creates a session manager backed by store.
func NewManager(store NoteStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:            store,
		logger:           slog.Default(),
		indentSize:       DefaultIndentSize,
		autosaveInterval: 30 * time.Second,
		autosaveAfter:    30 * time.Second,
		sessions:         make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts a session for the note with noteID, or for a new note when
// noteID is empty.
func (m *Manager) Open(ctx context.Context, noteID string) (*Session, error) {
	var note *models.Note
	if noteID != "" {
		n, err := m.store.Get(ctx, noteID)
		if err != nil {
			return nil, fmt.Errorf("editor: load note %s: %w", noteID, err)
		}
		note = n
	}

	id := uuid.NewString()
	opts := []SessionOption{WithIndentSize(m.indentSize), WithLogger(m.logger)}
	if m.onSaved != nil {
		opts = append(opts, WithSavedHook(func(n *models.Note) { m.onSaved(id, n) }))
	}
	s := NewSession(id, note, m.store, opts...)
	s.StartAutosave(m.autosaveInterval, m.autosaveAfter)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Debug("session opened",
		slog.String("session_id", s.ID()),
		slog.String("note_id", noteID))
	return s, nil
}

// Get returns the open session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close removes the session with id after its final save. The session is
// discarded even when the final save fails.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	if err := s.Close(ctx); err != nil {
		m.logger.Warn("final save failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// CloseAll closes every open session.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for id, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
