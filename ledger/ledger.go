// Package ledger tracks which books have been ingested and at what content
// version. The ledger is a single JSON file, loaded fully at open and
// rewritten fully after every mutation so a library pass that fails halfway
// keeps the progress made so far.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry records one ingested book.
type Entry struct {
	ContentHash     string    `json:"content_hash"`
	SourcePath      string    `json:"source_path"`
	ChapterChunks   int       `json:"chapter_chunks"`
	ParagraphChunks int       `json:"paragraph_chunks"`
	IndexedAt       time.Time `json:"indexed_at"`
}

// Stats aggregates the ledger contents.
type Stats struct {
	Books           int
	ChapterChunks   int
	ParagraphChunks int
	LastUpdate      *time.Time
}

// CorruptError reports an unreadable ledger file. There is no automatic
// repair; the user has to clear the index or restore the file.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("ledger file %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

type fileFormat struct {
	Books        map[string]Entry `json:"indexed_books"`
	TotalIndexed int              `json:"total_indexed"`
	LastUpdate   *time.Time       `json:"last_update"`
}

// Ledger is the in-memory view of the ledger file. It is owned by a single
// ingestion engine and is not safe for use from multiple processes.
type Ledger struct {
	path string
	data fileFormat
	now  func() time.Time
}

// Open loads the ledger at path, starting empty when the file does not
// exist. Malformed content yields a *CorruptError.
func Open(path string) (*Ledger, error) {
	l := &Ledger{
		path: path,
		data: fileFormat{Books: make(map[string]Entry)},
		now:  time.Now,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	if err := json.Unmarshal(raw, &l.data); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	if l.data.Books == nil {
		l.data.Books = make(map[string]Entry)
	}
	return l, nil
}

// IsCurrent reports whether key is recorded with exactly this content hash.
// This is the sole signal for skipping unchanged books.
func (l *Ledger) IsCurrent(key, contentHash string) bool {
	entry, ok := l.data.Books[key]
	return ok && entry.ContentHash == contentHash
}

// Record stores or replaces the entry for key and persists immediately.
func (l *Ledger) Record(key, sourcePath, contentHash string, chapterChunks, paragraphChunks int) error {
	now := l.now()
	l.data.Books[key] = Entry{
		ContentHash:     contentHash,
		SourcePath:      sourcePath,
		ChapterChunks:   chapterChunks,
		ParagraphChunks: paragraphChunks,
		IndexedAt:       now,
	}
	l.data.TotalIndexed = len(l.data.Books)
	l.data.LastUpdate = &now
	return l.save()
}

// Clear empties the ledger and persists the empty state.
func (l *Ledger) Clear() error {
	l.data = fileFormat{Books: make(map[string]Entry)}
	return l.save()
}

// Stats aggregates chunk counts over all recorded books.
func (l *Ledger) Stats() Stats {
	stats := Stats{
		Books:      len(l.data.Books),
		LastUpdate: l.data.LastUpdate,
	}
	for _, entry := range l.data.Books {
		stats.ChapterChunks += entry.ChapterChunks
		stats.ParagraphChunks += entry.ParagraphChunks
	}
	return stats
}

func (l *Ledger) save() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	raw, err := json.MarshalIndent(l.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := os.WriteFile(l.path, raw, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}
