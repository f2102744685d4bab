package editor

import (
	"context"
	"strings"
)

// Key names understood by HandleKey.
const (
	KeyTab       = "Tab"
	KeyEnter     = "Enter"
	KeyBackspace = "Backspace"
)

// KeyEvent is a key press forwarded by the editing surface.
type KeyEvent struct {
	Key   string `json:"key"`
	Shift bool   `json:"shift"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Caret int    `json:"caret"`
}

// HandleKey routes a key press: Tab/Shift+Tab re-indent, Enter auto-indents,
// Backspace in leading whitespace dedents, Ctrl/Meta+S saves and Ctrl/Meta+P
// toggles preview. Keys that are not intercepted come back with
// Intercepted=false and must be applied by the surface itself.
func (s *Session) HandleKey(ctx context.Context, ev KeyEvent) (Edit, error) {
	if ev.Ctrl || ev.Meta {
		switch strings.ToLower(ev.Key) {
		case "s":
			if _, err := s.Save(ctx); err != nil {
				return s.passthrough(ev.Caret, true), err
			}
			return s.passthrough(ev.Caret, true), nil
		case "p":
			if _, err := s.TogglePreview(); err != nil {
				return Edit{}, err
			}
			return s.passthrough(ev.Caret, true), nil
		}
		return s.passthrough(ev.Caret, false), nil
	}

	switch ev.Key {
	case KeyTab:
		return s.Tab(ev.Caret, ev.Shift)
	case KeyEnter:
		return s.Enter(ev.Caret)
	case KeyBackspace:
		return s.Backspace(ev.Caret)
	}
	return s.passthrough(ev.Caret, false), nil
}

func (s *Session) passthrough(caret int, intercepted bool) Edit {
	s.mu.Lock()
	defer s.mu.Unlock()
	content := s.buf.Content()
	return Edit{
		Content:      content,
		IndentLevels: s.buf.IndentLevels(),
		Caret:        Caret{Offset: clampOffset(content, caret)},
		Intercepted:  intercepted,
	}
}
