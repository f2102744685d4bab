// Package models defines the domain types for margin.
package models

import "time"

// Note is a persisted note. IndentLevels holds one entry per line of Content.
type Note struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	IndentLevels []int     `json:"indent_levels"`
	Checksum     string    `json:"checksum"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NoteDraft carries the user-editable fields of a note for create and update.
type NoteDraft struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	IndentLevels []int  `json:"indent_levels"`
}

// NoteMetadata is a lightweight representation of a vault file returned by
// storage listings.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
