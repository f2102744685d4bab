package mcpserver

// NoteFormat describes how margin stores a note, for LLM clients that
// create or update notes.
const NoteFormat = `# margin Note Format

A note is plain text with indentation. Each line has an indent level
between 0 and 8; the line starts with level × indent size spaces
(2 by default). Levels are kept next to the text, so tools should send
them together with the content.

## File layout

Notes are stored as Markdown files with a YAML header:

` + "```" + `markdown
---
title: Groceries
created: 2026-01-15T09:30:00Z
updated: 2026-01-15T09:42:00Z
indent_levels: [0, 1, 1, 0, 1]
---
fruit
  apples
  pears
bakery
  rye bread
` + "```" + `

## Rules

1. ` + "`indent_levels`" + ` has exactly one entry per line of the body
   (a body with N newlines has N+1 lines). A list of the wrong length is
   padded with 0 or truncated. Entries outside 0..8 are rejected.
2. When ` + "`indent_levels`" + ` is omitted it is derived from the leading spaces
   of each line (spaces ÷ indent size, rounded down, capped at 8).
3. The body is stored byte for byte; trailing newlines and blank lines are
   lines too.
4. Indent with spaces only. Tabs are not counted as indentation.
5. ` + "`created`" + ` and ` + "`updated`" + ` are maintained by margin; do not send them.
6. The body may use Markdown. Preview renders it to sanitized HTML, so raw
   scripts and event handlers are dropped.
7. Pass the checksum returned by read_note to update_note to avoid
   overwriting an edit made in the meantime.

## Attachments

- Upload images and PDFs with the ` + "`upload_attachment`" + ` tool. It returns a
  ` + "`markdownImage`" + ` field ready to paste into the note body.
- Attachments live in the flat ` + "`attachments/`" + ` directory of the vault and are
  referenced as ` + "`![description](/attachments/filename.png)`" + `.
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.
`
