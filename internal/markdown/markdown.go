// Package markdown renders note content for preview: sanitized HTML for the
// browser and ANSI text for the terminal.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// StyleAuto picks a terminal style from the terminal background.
const StyleAuto = "auto"

// Renderer converts Markdown to display markup. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	style  string
}

// New creates a Renderer. style is a glamour standard style name ("dark",
// "light", "notty", ...) or StyleAuto.
func New(style string) *Renderer {
	if style == "" {
		style = StyleAuto
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		// Raw HTML is passed through and then sanitized as a whole.
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code")
	return &Renderer{md: md, policy: policy, style: style}
}

// HTML renders src to sanitized HTML.
func (r *Renderer) HTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("markdown: convert: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Terminal renders src for a terminal of the given width.
func (r *Renderer) Terminal(src string, width int) (string, error) {
	styleOpt := glamour.WithStandardStyle(r.style)
	if r.style == StyleAuto {
		styleOpt = glamour.WithAutoStyle()
	}
	opts := []glamour.TermRendererOption{styleOpt}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("markdown: terminal renderer: %w", err)
	}
	out, err := tr.Render(src)
	if err != nil {
		return "", fmt.Errorf("markdown: render: %w", err)
	}
	return out, nil
}
