package editor

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Status is the readout shown under the editor.
type Status struct {
	Lines   int  `json:"lines"`
	Words   int  `json:"words"`
	Dirty   bool `json:"dirty"`
	Preview bool `json:"preview"`
	// CaretLine and CaretColumn are 1-based; the column is measured in
	// display cells so wide characters count twice.
	CaretLine   int `json:"caret_line"`
	CaretColumn int `json:"caret_column"`
}

// StatusOf computes the status readout for content with the caret at offset.
func StatusOf(content string, caret int, dirty, preview bool) Status {
	head := content[:runeIndex(content, clampOffset(content, caret))]
	lineHead := head[strings.LastIndexByte(head, '\n')+1:]
	return Status{
		Lines:       LineCount(content),
		Words:       len(strings.Fields(content)),
		Dirty:       dirty,
		Preview:     preview,
		CaretLine:   strings.Count(head, "\n") + 1,
		CaretColumn: runewidth.StringWidth(lineHead) + 1,
	}
}
