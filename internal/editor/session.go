package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/starford/margin/internal/models"
)

// Store persists notes on behalf of a session.
type Store interface {
	Create(ctx context.Context, draft models.NoteDraft) (*models.Note, error)
	Update(ctx context.Context, id string, draft models.NoteDraft, ifMatch string) (*models.Note, error)
}

// State is a point-in-time view of a session for the host view.
type State struct {
	SessionID    string    `json:"session_id"`
	NoteID       string    `json:"note_id,omitempty"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	IndentLevels []int     `json:"indent_levels"`
	Guides       []Guide   `json:"guides"`
	Status       Status    `json:"status"`
	LastSavedAt  time.Time `json:"last_saved_at"`
}

// Session is one editing view over one note. Edits are applied one at a
// time; the store call of a save runs without blocking edits.
type Session struct {
	id      string
	store   Store
	logger  *slog.Logger
	now     func() time.Time
	onSaved func(*models.Note)
	guides  GuideRenderer

	mu        sync.Mutex
	noteID    string
	title     string
	buf       *Buffer
	caret     int
	preview   bool
	rev       uint64
	savedRev  uint64
	savedSum  uint64
	lastSaved time.Time
	closed    bool

	stopAutosave context.CancelFunc
	autosaveDone chan struct{}

	// saveMu serializes store calls so a new note is created once.
	saveMu sync.Mutex
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithIndentSize sets the number of spaces per indent level.
func WithIndentSize(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.guides.IndentSize = n
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithSavedHook registers fn to run after every successful save.
func WithSavedHook(fn func(*models.Note)) SessionOption {
	return func(s *Session) { s.onSaved = fn }
}

// NewSession opens a session over note. A nil note starts an unsaved one.
func NewSession(id string, note *models.Note, store Store, opts ...SessionOption) *Session {
	s := &Session{
		id:     id,
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		guides: GuideRenderer{IndentSize: DefaultIndentSize},
	}
	for _, opt := range opts {
		opt(s)
	}

	var content string
	var levels []int
	if note != nil {
		s.noteID = note.ID
		s.title = note.Title
		content = note.Content
		levels = note.IndentLevels
	}
	s.buf = NewBuffer(content, levels, s.guides.IndentSize)
	s.savedSum = s.fingerprintLocked()
	s.lastSaved = s.now()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// NoteID returns the id of the note being edited, empty until first saved.
func (s *Session) NoteID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noteID
}

// Dirty reports whether title, content or indent levels differ from what
// was last persisted.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// TextChanged applies a raw text replacement from the editing surface.
func (s *Session) TextChanged(content string, caret int) (Edit, error) {
	return s.apply(func(b *Buffer) Edit { return b.TextChanged(content, caret) })
}

// Tab re-indents the caret line one level deeper, or shallower with shift.
func (s *Session) Tab(caret int, shift bool) (Edit, error) {
	return s.apply(func(b *Buffer) Edit { return b.Tab(caret, shift) })
}

// Enter inserts an auto-indented line break at caret.
func (s *Session) Enter(caret int) (Edit, error) {
	return s.apply(func(b *Buffer) Edit { return b.Enter(caret) })
}

// Backspace applies the dedent shortcut when the caret is in leading whitespace.
func (s *Session) Backspace(caret int) (Edit, error) {
	return s.apply(func(b *Buffer) Edit { return b.Backspace(caret) })
}

// SetTitle replaces the note title.
func (s *Session) SetTitle(title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if title != s.title {
		s.title = title
		s.rev++
	}
	return nil
}

// TogglePreview flips preview mode and returns the new value.
func (s *Session) TogglePreview() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSessionClosed
	}
	s.preview = !s.preview
	return s.preview, nil
}

// Preview reports whether preview mode is on.
func (s *Session) Preview() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// Save persists the session: update for an existing note, create otherwise.
// On failure the session stays dirty.
func (s *Session) Save(ctx context.Context) (*models.Note, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}
	return s.save(ctx)
}

func (s *Session) save(ctx context.Context) (*models.Note, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	id := s.noteID
	draft := models.NoteDraft{
		Title:        s.title,
		Content:      s.buf.Content(),
		IndentLevels: s.buf.IndentLevels(),
	}
	rev := s.rev
	sum := s.fingerprintLocked()
	s.mu.Unlock()

	var (
		note *models.Note
		err  error
	)
	if id == "" {
		note, err = s.store.Create(ctx, draft)
	} else {
		note, err = s.store.Update(ctx, id, draft, "")
	}
	if err != nil {
		return nil, fmt.Errorf("editor: save note: %w", err)
	}

	s.mu.Lock()
	if s.noteID == "" {
		s.noteID = note.ID
	}
	// A response for an older revision must not mark newer edits clean.
	if rev >= s.savedRev {
		s.savedRev = rev
		s.savedSum = sum
		s.lastSaved = s.now()
	}
	s.mu.Unlock()

	if s.onSaved != nil {
		s.onSaved(note)
	}
	return note, nil
}

// StartAutosave saves the session every interval tick once it has been dirty
// for at least after since the last save. It stops when the session closes.
func (s *Session) StartAutosave(interval, after time.Duration) {
	s.mu.Lock()
	if s.closed || s.stopAutosave != nil || interval <= 0 {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.stopAutosave = cancel
	s.autosaveDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.autosave(ctx, after)
			}
		}
	}()
}

func (s *Session) autosave(ctx context.Context, after time.Duration) {
	s.mu.Lock()
	due := !s.closed && s.dirtyLocked() && s.now().Sub(s.lastSaved) >= after
	s.mu.Unlock()
	if !due {
		return
	}
	if _, err := s.save(ctx); err != nil {
		s.logger.Warn("autosave failed",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("autosaved", slog.String("session_id", s.id))
}

// Close discards the session after one final save if it is dirty. Later
// operations return ErrSessionClosed. Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stop, done := s.stopAutosave, s.autosaveDone
	s.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	s.mu.Lock()
	dirty := s.dirtyLocked()
	s.mu.Unlock()
	if !dirty {
		return nil
	}
	_, err := s.save(ctx)
	return err
}

func (s *Session) apply(fn func(*Buffer) Edit) (Edit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Edit{}, ErrSessionClosed
	}
	before := s.buf.Content()
	e := fn(s.buf)
	if e.Intercepted || e.Content != before {
		s.rev++
	}
	s.caret = e.Caret.Offset
	return e, nil
}

func (s *Session) dirtyLocked() bool {
	return s.fingerprintLocked() != s.savedSum
}

func (s *Session) fingerprintLocked() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(s.title)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(s.buf.Content())
	_, _ = d.WriteString("\x00")
	for _, l := range s.buf.IndentLevels() {
		_, _ = d.WriteString(strconv.Itoa(l))
		_, _ = d.WriteString(",")
	}
	return d.Sum64()
}

func (s *Session) stateLocked() State {
	content := s.buf.Content()
	levels := s.buf.IndentLevels()
	return State{
		SessionID:    s.id,
		NoteID:       s.noteID,
		Title:        s.title,
		Content:      content,
		IndentLevels: levels,
		Guides:       s.guides.Collect(content, levels),
		Status:       StatusOf(content, s.caret, s.dirtyLocked(), s.preview),
		LastSavedAt:  s.lastSaved,
	}
}
