package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "index_status.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats := l.Stats(); stats.Books != 0 {
		t.Fatalf("expected empty ledger, got %d books", stats.Books)
	}
}

func TestRecordPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "index_status.json")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return when }

	if err := l.Record("Jane Doe/The Test Book", "/books/test.epub", "abc123", 2, 14); err != nil {
		t.Fatalf("record: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reloaded.IsCurrent("Jane Doe/The Test Book", "abc123") {
		t.Fatal("recorded entry should be current after reload")
	}
	stats := reloaded.Stats()
	if stats.Books != 1 || stats.ChapterChunks != 2 || stats.ParagraphChunks != 14 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.LastUpdate == nil || !stats.LastUpdate.Equal(when) {
		t.Fatalf("unexpected last update: %v", stats.LastUpdate)
	}
}

func TestIsCurrentDetectsChangedHash(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "index_status.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Record("k", "/books/k.txt", "hash-v1", 1, 3); err != nil {
		t.Fatalf("record: %v", err)
	}

	if !l.IsCurrent("k", "hash-v1") {
		t.Fatal("same hash should be current")
	}
	if l.IsCurrent("k", "hash-v2") {
		t.Fatal("changed hash must not be current")
	}
	if l.IsCurrent("unknown", "hash-v1") {
		t.Fatal("unknown key must not be current")
	}
}

func TestRecordReplacesExistingEntry(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "index_status.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Record("k", "/books/k.txt", "hash-v1", 1, 3); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record("k", "/books/k.txt", "hash-v2", 2, 5); err != nil {
		t.Fatalf("record: %v", err)
	}

	stats := l.Stats()
	if stats.Books != 1 {
		t.Fatalf("re-recording must not duplicate, got %d books", stats.Books)
	}
	if stats.ChapterChunks != 2 || stats.ParagraphChunks != 5 {
		t.Fatalf("expected replaced counts, got %+v", stats)
	}
}

func TestClearEmptiesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index_status.json")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Record("k", "/books/k.txt", "h", 1, 1); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reloaded.IsCurrent("k", "h") {
		t.Fatal("cleared ledger should forget entries")
	}
	if stats := reloaded.Stats(); stats.Books != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index_status.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Open(path)
	var ce *CorruptError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CorruptError, got %v", err)
	}
	if ce.Path != path {
		t.Fatalf("corrupt error should carry the path, got %q", ce.Path)
	}
}
