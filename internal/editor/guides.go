package editor

import (
	"iter"
	"strings"
)

// Guide describes one vertical indent guide segment: the line it is drawn on,
// its column (in characters from the line start) and the indent level it marks.
type Guide struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Level  int `json:"level"`
}

// GuideRenderer projects content and indent levels onto indent guides.
// It holds no state besides the indent size.
type GuideRenderer struct {
	IndentSize int
}

// Guides yields one guide per indent column of every indented line. The
// sequence is recomputed on each iteration. When levels is empty or shorter
// than the line count, levels are derived from the leading spaces of content.
func (r GuideRenderer) Guides(content string, levels []int) iter.Seq[Guide] {
	size := r.IndentSize
	if size <= 0 {
		size = DefaultIndentSize
	}
	return func(yield func(Guide) bool) {
		texts := strings.Split(content, "\n")
		use := levels
		if len(use) < len(texts) {
			use = DeriveLevels(content, size)
		}
		for i := range texts {
			for l := 0; l < use[i]; l++ {
				if !yield(Guide{Line: i, Column: l * size, Level: l}) {
					return
				}
			}
		}
	}
}

// Collect materializes Guides into a slice (never nil).
func (r GuideRenderer) Collect(content string, levels []int) []Guide {
	out := []Guide{}
	for g := range r.Guides(content, levels) {
		out = append(out, g)
	}
	return out
}
