//go:build !sqlite_fts5

package index

import (
	"testing"
	"time"
)

func TestSearch_LikeWildcardsAreLiteral(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(row("pct", "", "1", time.Now()), "100% done")
	_ = db.UpsertNote(row("plain", "", "2", time.Now()), "1000 items")

	results, err := db.Search("0%", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "pct" {
		t.Errorf("results = %+v, want only pct", results)
	}
}
