package parser

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\nindent_levels: [0, 1]\n---\n# Hello\n  Body text.")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.HasFrontmatter {
		t.Fatal("expected frontmatter")
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if !slices.Equal(r.Frontmatter.IndentLevels, []int{0, 1}) {
		t.Errorf("levels = %v, want [0 1]", r.Frontmatter.IndentLevels)
	}
	if r.Body != "# Hello\n  Body text." {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.HasFrontmatter {
		t.Error("expected no frontmatter")
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
	if r.Body != string(input) {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.HasFrontmatter {
		t.Error("expected no frontmatter on invalid YAML")
	}
	if r.Body != string(input) {
		t.Errorf("invalid YAML should keep the whole file as body, got %q", r.Body)
	}
}

func TestParse_UnclosedFrontmatter(t *testing.T) {
	input := []byte("---\ntitle: x\nno end")
	r, _ := Parse(input)
	if r.HasFrontmatter || r.Body != string(input) {
		t.Errorf("unclosed block should be body: %+v", r)
	}
}

func TestFormat_RoundTripKeepsBodyExact(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	bodies := []string{
		"",
		"plain",
		"\n\nleading blank lines",
		"  indented\n    deeper\n",
		"---\nlooks like a delimiter\n---",
		"trailing spaces   \n\n",
	}
	for _, body := range bodies {
		fm := Frontmatter{Title: "T", Created: created, Updated: created, IndentLevels: []int{0, 1, 2}}
		data, err := Format(fm, body)
		if err != nil {
			t.Fatalf("Format: %v", err)
		}
		r, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if r.Body != body {
			t.Errorf("body = %q, want %q", r.Body, body)
		}
		if !r.Frontmatter.Created.Equal(created) {
			t.Errorf("created = %v", r.Frontmatter.Created)
		}
		if !slices.Equal(r.Frontmatter.IndentLevels, fm.IndentLevels) {
			t.Errorf("levels = %v", r.Frontmatter.IndentLevels)
		}
	}
}

func TestFormat_LevelsInFlowStyle(t *testing.T) {
	data, err := Format(Frontmatter{Title: "T", IndentLevels: []int{0, 2}}, "x\n    y")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "indent_levels: [0, 2]") {
		t.Errorf("levels not written inline:\n%s", data)
	}
	if strings.Contains(string(data), "created:") {
		t.Errorf("zero timestamps should be omitted:\n%s", data)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	if title := deriveTitle("FM Title", "# H1 Title\ntext"); title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	if title := deriveTitle("", "some text\n# My Heading\nmore"); title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}
