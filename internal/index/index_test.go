package index

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/margin/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "margin-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func row(id, title, cs string, at time.Time) NoteRow {
	return NoteRow{ID: id, Path: PathFromID(id), Title: title, Checksum: cs, LineCount: 1, CreatedAt: at, UpdatedAt: at}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
}

func TestIDFromPath(t *testing.T) {
	cases := map[string]string{
		"abc.md":      "abc",
		"sub/note.md": "sub/note",
		"./x.md":      "x",
	}
	for in, want := range cases {
		if got := IDFromPath(in); got != want {
			t.Errorf("IDFromPath(%q) = %q, want %q", in, got, want)
		}
		if PathFromID(want) != PathFromID(IDFromPath(in)) {
			t.Errorf("round trip of %q", in)
		}
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertNote(row("hello", "Hello World", "abc123", time.Now()), "This is a hello world note."); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	cs, err := db.GetChecksum("hello")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestGetNote(t *testing.T) {
	db := testDB(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := row("n1", "Title", "c", created)
	r.LineCount = 3
	_ = db.UpsertNote(r, "a\nb\nc")

	got, err := db.GetNote("n1")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "Title" || got.Path != "n1.md" || got.LineCount != 3 {
		t.Errorf("row = %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created = %v, want %v", got.CreatedAt, created)
	}

	if _, err := db.GetNote("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing note err = %v, want ErrNotFound", err)
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(row("del", "", "x", time.Now()), "body")

	if err := db.DeleteNote("del"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	cs, _ := db.GetChecksum("del")
	if cs != "" {
		t.Errorf("deleted note still has checksum %q", cs)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(row("up", "Old", "1", now), "old body")
	_ = db.UpsertNote(row("up", "New", "2", now), "new body")

	cs, _ := db.GetChecksum("up")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	n, _ := db.GetNote("up")
	if n.Title != "New" {
		t.Errorf("title = %q", n.Title)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestListNotes_SortAndPage(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_ = db.UpsertNote(NoteRow{ID: "a", Path: "a.md", Title: "banana", Checksum: "1", CreatedAt: base, UpdatedAt: base.Add(3 * time.Hour)}, "")
	_ = db.UpsertNote(NoteRow{ID: "b", Path: "b.md", Title: "Apple", Checksum: "2", CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)}, "")
	_ = db.UpsertNote(NoteRow{ID: "c", Path: "c.md", Title: "cherry", Checksum: "3", CreatedAt: base.Add(2 * time.Hour), UpdatedAt: base}, "")

	ids := func(rows []NoteRow) string {
		s := ""
		for _, r := range rows {
			s += r.ID
		}
		return s
	}

	cases := []struct {
		sort string
		want string
	}{
		{"", "abc"},
		{SortUpdated, "abc"},
		{SortCreated, "cba"},
		{SortTitle, "bac"},
	}
	for _, c := range cases {
		rows, total, err := db.ListNotes(10, 0, c.sort)
		if err != nil {
			t.Fatalf("ListNotes(%q): %v", c.sort, err)
		}
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		if got := ids(rows); got != c.want {
			t.Errorf("sort %q = %s, want %s", c.sort, got, c.want)
		}
	}

	rows, _, _ := db.ListNotes(1, 1, SortTitle)
	if ids(rows) != "a" {
		t.Errorf("page = %s, want a", ids(rows))
	}
}

func TestListNotes_EmptyIsNonNil(t *testing.T) {
	db := testDB(t)
	rows, total, err := db.ListNotes(10, 0, "")
	if err != nil || rows == nil || total != 0 {
		t.Errorf("rows = %#v total = %d err = %v", rows, total, err)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(row("s", "Search Me", "1", time.Now()), "uniqueword appears here")

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "s" {
		t.Errorf("search results = %+v, want 1 hit for s", results)
	}
}

func TestAllChecksums(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(row("x", "", "cx", time.Now()), "")
	_ = db.UpsertNote(row("y", "", "cy", time.Now()), "")
	got, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got["x"] != "cx" || got["y"] != "cy" {
		t.Errorf("checksums = %v", got)
	}
}
