package index

import (
	"log/slog"
	"strings"
	"time"

	"github.com/starford/margin/internal/checksum"
	"github.com/starford/margin/internal/parser"
	"github.com/starford/margin/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		id := IDFromPath(m.Path)
		disk[id] = struct{}{}

		if checksums[id] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteNote(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("note_id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("note_id", id))
			}
		}
	}

	return nil
}

// IndexFile parses a note file and upserts it into the index. Timestamps
// missing from the frontmatter (plain Markdown files) default to modTime.
func IndexFile(db *DB, path string, data []byte, modTime time.Time) (*NoteRow, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	if modTime.IsZero() {
		modTime = time.Now()
	}
	row := NoteRow{
		ID:        IDFromPath(path),
		Path:      path,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		LineCount: strings.Count(res.Body, "\n") + 1,
		CreatedAt: orTime(res.Frontmatter.Created, modTime),
		UpdatedAt: orTime(res.Frontmatter.Updated, modTime),
	}
	if err := db.UpsertNote(row, res.Body); err != nil {
		return nil, err
	}
	return &row, nil
}

func orTime(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
