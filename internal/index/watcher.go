package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/margin/internal/checksum"
	"github.com/starford/margin/internal/storage"
)

const reconcileDelay = 200 * time.Millisecond

// Change kinds reported to an EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change with the
// change kind and the note id.
type EventCallback func(kind string, id string)

// Watch starts an fsnotify watcher on the vault root and re-indexes note
// files edited outside the application until ctx is cancelled. Writes whose
// content is already indexed (the application's own saves) are skipped, so
// cb only fires for external changes.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a debounced reconciliation pass.
func Watch(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	root := store.Root()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, id string) {
		logger.Debug("watcher: indexed", slog.String("note_id", id), slog.String("op", kind))
		if cb != nil {
			cb(kind, id)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					// Files may land in the directory before it is watched.
					scheduleReconcile()
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			id := IDFromPath(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind, changed, idxErr := reindex(db, store, rel)
				if idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				if changed {
					notify(kind, id)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify reports a rename on the old path only; the new path
				// arrives as a Create when it stays inside a watched dir.
				cs, _ := db.GetChecksum(id)
				if cs == "" {
					continue
				}
				if delErr := db.DeleteNote(id); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("note_id", id), slog.String("error", delErr.Error()))
					continue
				}
				notify(ChangeDeleted, id)
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reindex indexes the file at rel unless the index already holds the same
// content. It reports the change kind and whether anything changed.
func reindex(db *DB, store storage.Provider, rel string) (string, bool, error) {
	data, err := store.Read(rel)
	if err != nil {
		return "", false, err
	}
	id := IDFromPath(rel)
	prev, err := db.GetChecksum(id)
	if err != nil {
		return "", false, err
	}
	if prev == checksum.Sum(data) {
		return "", false, nil
	}
	var modTime time.Time
	if info, statErr := os.Stat(filepath.Join(store.Root(), filepath.FromSlash(rel))); statErr == nil {
		modTime = info.ModTime()
	}
	if _, err := IndexFile(db, rel, data, modTime); err != nil {
		return "", false, err
	}
	if prev == "" {
		return ChangeCreated, true, nil
	}
	return ChangeUpdated, true, nil
}

// reconcile removes index entries whose files are gone and indexes files
// the index does not know about or holds stale content for.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, notify func(kind, id string)) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	onDisk := make(map[string]struct{}, len(disk))
	for p := range disk {
		onDisk[IDFromPath(p)] = struct{}{}
	}

	for id := range checksums {
		if _, ok := onDisk[id]; ok {
			continue
		}
		if delErr := db.DeleteNote(id); delErr == nil {
			notify(ChangeDeleted, id)
		}
	}

	for p, cs := range disk {
		id := IDFromPath(p)
		if checksums[id] == cs {
			continue
		}
		if kind, changed, idxErr := reindex(db, store, p); idxErr == nil && changed {
			notify(kind, id)
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
