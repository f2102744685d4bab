package editor

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Caret is a pending caret update. The view applies it after it has committed
// the new content to the display. When Reposition is false the caret the
// editing surface already has is kept.
type Caret struct {
	Offset     int  `json:"offset"`
	Reposition bool `json:"reposition"`
}

// Edit is the outcome of a buffer operation.
type Edit struct {
	Content      string `json:"content"`
	IndentLevels []int  `json:"indent_levels"`
	Caret        Caret  `json:"caret"`
	// Intercepted reports that the buffer consumed a key press; the editing
	// surface must suppress its default action for it.
	Intercepted bool `json:"intercepted"`
}

// Buffer holds note content as lines, each carrying its indent level.
// Caret offsets are counted in code points. Buffer is not safe for
// concurrent use; Session serializes access to it.
type Buffer struct {
	lines      []Line
	indentSize int
}

// NewBuffer creates a buffer for content. Levels are taken from levels when
// present (repaired to the line count) and derived from leading spaces
// otherwise.
func NewBuffer(content string, levels []int, indentSize int) *Buffer {
	if indentSize <= 0 {
		indentSize = DefaultIndentSize
	}
	if len(levels) == 0 {
		levels = DeriveLevels(content, indentSize)
	}
	b := &Buffer{indentSize: indentSize}
	b.setLines(strings.Split(content, "\n"), levels)
	return b
}

// IndentSize returns the number of spaces per indent level.
func (b *Buffer) IndentSize() int { return b.indentSize }

// LineCount returns the number of lines.
func (b *Buffer) LineCount() int { return len(b.lines) }

// Content joins the lines back into text.
func (b *Buffer) Content() string {
	texts := make([]string, len(b.lines))
	for i, l := range b.lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}

// IndentLevels returns a copy of the per-line indent levels.
func (b *Buffer) IndentLevels() []int {
	out := make([]int, len(b.lines))
	for i, l := range b.lines {
		out[i] = l.Level
	}
	return out
}

// Lines returns a copy of the buffer lines.
func (b *Buffer) Lines() []Line {
	return slices.Clone(b.lines)
}

// TextChanged reconciles the indent levels with content replaced wholesale by
// the editing surface (typing, paste, cut, undo). The text itself is taken
// verbatim.
func (b *Buffer) TextChanged(content string, caret int) Edit {
	oldCount := len(b.lines)
	texts := strings.Split(content, "\n")
	newCount := len(texts)
	levels := b.IndentLevels()
	caret = clampOffset(content, caret)

	switch {
	case newCount < oldCount:
		at := min(newlinesBefore(content, caret), len(levels)-1)
		n := min(oldCount-newCount, len(levels)-at)
		levels = slices.Delete(levels, at, at+n)
		levels = fitLevels(levels, newCount)
		if at == 0 {
			// A merge into the first line can change its real indentation
			// without a Tab or Enter.
			levels[0] = LevelFromSpaces(LeadingSpaces(texts[0]), b.indentSize)
		}
	case newCount > oldCount:
		added := newCount - oldCount
		at := newlinesBefore(content, caret) - added + 1
		at = max(0, min(at, len(levels)))
		levels = slices.Insert(levels, at, make([]int, added)...)
	}

	b.setLines(texts, levels)
	return Edit{
		Content:      content,
		IndentLevels: b.IndentLevels(),
		Caret:        Caret{Offset: caret},
	}
}

// Tab indents (or, with shift, dedents) the caret line by one level and
// rewrites its leading whitespace to match.
func (b *Buffer) Tab(caret int, shift bool) Edit {
	line, _ := b.locate(caret)
	level := b.lines[line].Level
	if shift {
		level = max(0, level-1)
	} else {
		level = min(MaxIndent, level+1)
	}
	b.reindent(line, level)
	return b.structural(b.lineStart(line) + level*b.indentSize)
}

// Enter splits the caret line and starts the new line at the same indent
// level as the one it was split from.
func (b *Buffer) Enter(caret int) Edit {
	line, col := b.locate(caret)
	cur := b.lines[line]
	cut := runeIndex(cur.Text, col)

	b.lines[line].Text = cur.Text[:cut]
	next := Line{Text: indentString(cur.Level, b.indentSize) + cur.Text[cut:], Level: cur.Level}
	b.lines = slices.Insert(b.lines, line+1, next)

	return b.structural(b.lineStart(line) + col + 1 + cur.Level*b.indentSize)
}

// Backspace dedents the caret line when the caret sits inside its leading
// whitespace right after a space. Any other backspace is not intercepted and
// reaches the buffer later through TextChanged.
func (b *Buffer) Backspace(caret int) Edit {
	line, col := b.locate(caret)
	text := b.lines[line].Text
	head := text[:runeIndex(text, col)]
	if col == 0 || strings.TrimSpace(head) != "" || !strings.HasSuffix(head, " ") {
		return Edit{
			Content:      b.Content(),
			IndentLevels: b.IndentLevels(),
			Caret:        Caret{Offset: clampOffset(b.Content(), caret)},
		}
	}
	level := max(0, b.lines[line].Level-1)
	b.reindent(line, level)
	return b.structural(b.lineStart(line) + level*b.indentSize)
}

func (b *Buffer) structural(caret int) Edit {
	return Edit{
		Content:      b.Content(),
		IndentLevels: b.IndentLevels(),
		Caret:        Caret{Offset: caret, Reposition: true},
		Intercepted:  true,
	}
}

func (b *Buffer) reindent(line, level int) {
	text := strings.TrimLeft(b.lines[line].Text, " \t")
	b.lines[line] = Line{Text: indentString(level, b.indentSize) + text, Level: level}
}

func (b *Buffer) setLines(texts []string, levels []int) {
	levels = fitLevels(levels, len(texts))
	b.lines = make([]Line, len(texts))
	for i, t := range texts {
		b.lines[i] = Line{Text: t, Level: levels[i]}
	}
}

// locate maps a code point offset to a line index and a column in that line.
// Offsets past the end land at the end of the last line.
func (b *Buffer) locate(offset int) (line, col int) {
	offset = max(0, offset)
	for i, l := range b.lines {
		n := utf8.RuneCountInString(l.Text)
		if offset <= n || i == len(b.lines)-1 {
			return i, min(offset, n)
		}
		offset -= n + 1
	}
	return 0, 0
}

func (b *Buffer) lineStart(line int) int {
	off := 0
	for _, l := range b.lines[:line] {
		off += utf8.RuneCountInString(l.Text) + 1
	}
	return off
}
