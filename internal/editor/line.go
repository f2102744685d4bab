// Package editor implements the indentation-tracking note editor: a text
// buffer that keeps one indent level per line in lockstep with the content,
// the indent guide projection, and the editing session lifecycle
// (dirty tracking, save, autosave).
package editor

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxIndent is the deepest indent level a line can carry.
	MaxIndent = 8
	// DefaultIndentSize is the number of spaces that make up one indent level.
	DefaultIndentSize = 2
)

// Line is one line of the buffer with its logical indent level.
type Line struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// LineCount returns the number of lines in s (newlines + 1).
func LineCount(s string) int {
	return strings.Count(s, "\n") + 1
}

// LeadingSpaces returns the number of space characters at the start of line.
func LeadingSpaces(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

// LevelFromSpaces converts a literal leading-space count to an indent level.
func LevelFromSpaces(spaces, indentSize int) int {
	if indentSize <= 0 {
		return 0
	}
	return clampLevel(spaces / indentSize)
}

// DeriveLevels computes an indent level for every line of content from its
// leading spaces.
func DeriveLevels(content string, indentSize int) []int {
	texts := strings.Split(content, "\n")
	out := make([]int, len(texts))
	for i, t := range texts {
		out[i] = LevelFromSpaces(LeadingSpaces(t), indentSize)
	}
	return out
}

// RepairLevels fits levels to the line count of content: extra entries are
// dropped, missing ones are zero, and every entry is clamped to [0, MaxIndent].
func RepairLevels(content string, levels []int) []int {
	return fitLevels(levels, LineCount(content))
}

func fitLevels(levels []int, n int) []int {
	out := make([]int, n)
	for i := 0; i < n && i < len(levels); i++ {
		out[i] = clampLevel(levels[i])
	}
	return out
}

func clampLevel(level int) int {
	return max(0, min(MaxIndent, level))
}

func indentString(level, indentSize int) string {
	return strings.Repeat(" ", level*indentSize)
}

// runeIndex returns the byte index of the col-th code point of s, or len(s).
func runeIndex(s string, col int) int {
	if col <= 0 {
		return 0
	}
	n := 0
	for i := range s {
		if n == col {
			return i
		}
		n++
	}
	return len(s)
}

// newlinesBefore counts newlines among the first offset code points of s.
func newlinesBefore(s string, offset int) int {
	return strings.Count(s[:runeIndex(s, offset)], "\n")
}

func clampOffset(s string, offset int) int {
	return max(0, min(offset, utf8.RuneCountInString(s)))
}
