// Package parser reads and writes note files: YAML frontmatter followed by
// the note body, kept byte for byte.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Frontmatter is the metadata block at the top of a note file.
type Frontmatter struct {
	Title        string    `yaml:"title"`
	Created      time.Time `yaml:"created,omitempty"`
	Updated      time.Time `yaml:"updated,omitempty"`
	IndentLevels []int     `yaml:"indent_levels,flow,omitempty"`
}

// Result holds the output of parsing a note file.
type Result struct {
	Frontmatter Frontmatter
	// HasFrontmatter is false for plain Markdown files dropped into the vault.
	HasFrontmatter bool
	Body           string
	Title          string
}

// Parse splits raw file bytes into frontmatter and body. Files without a
// valid frontmatter block are treated as body only. The title falls back to
// the first H1 heading of the body.
func Parse(data []byte) (*Result, error) {
	fm, body, ok := splitFrontmatter(data)
	r := &Result{Body: body, HasFrontmatter: ok}
	if ok {
		r.Frontmatter = fm
	}
	r.Title = deriveTitle(r.Frontmatter.Title, body)
	return r, nil
}

// Format renders frontmatter and body into file bytes. Parse(Format(fm, b))
// returns b unchanged.
func Format(fm Frontmatter, body string) ([]byte, error) {
	meta, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("parser: marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(meta) + len(body) + 8)
	buf.WriteString(delim + "\n")
	buf.Write(meta)
	buf.WriteString(delim + "\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Exactly one line break after the closing delimiter belongs
// to the frontmatter; everything after it is body.
func splitFrontmatter(data []byte) (Frontmatter, string, bool) {
	var fm Frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim+"\n")) && !bytes.HasPrefix(trimmed, []byte(delim+"\r\n")) {
		return fm, string(data), false
	}

	rest := trimmed[len(delim):]
	idx := closingDelim(rest)
	if idx < 0 {
		return fm, string(data), false
	}

	block := rest[:idx]
	after := rest[idx+1+len(delim):]
	switch {
	case bytes.HasPrefix(after, []byte("\r\n")):
		after = after[2:]
	case bytes.HasPrefix(after, []byte("\n")):
		after = after[1:]
	}

	if err := yaml.Unmarshal(block, &fm); err != nil {
		// Invalid YAML: keep the whole file as body.
		return Frontmatter{}, string(data), false
	}
	return fm, string(after), true
}

// closingDelim returns the index of the newline that starts the closing
// delimiter line, or -1.
func closingDelim(rest []byte) int {
	off := 0
	for {
		i := bytes.Index(rest[off:], []byte("\n"+delim))
		if i < 0 {
			return -1
		}
		i += off
		end := i + 1 + len(delim)
		if end == len(rest) || rest[end] == '\n' || rest[end] == '\r' {
			return i
		}
		off = i + 1
	}
}

// deriveTitle returns title if set, otherwise the first H1 heading of body.
func deriveTitle(title, body string) string {
	if title != "" {
		return title
	}
	for line := range strings.SplitSeq(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
