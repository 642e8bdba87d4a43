// Package store persists chunk embeddings and answers nearest-neighbor
// queries. The Postgres backend uses pgvector; the memory backend is a
// brute-force in-process store used in tests and as a fallback.
package store

import (
	"context"
	"errors"
)

// ErrIndexNotInitialized is returned when the chunk collection does not
// exist yet. The caller should run ingestion first.
var ErrIndexNotInitialized = errors.New("vector index not initialized: run indexing first")

// Metadata carries the scalar chunk attributes stored alongside the vector.
type Metadata struct {
	DocumentKey   string
	Kind          string
	BookTitle     string
	BookAuthor    string
	ChapterTitle  string
	ChapterNumber int
	ChunkIndex    int
	WordCount     int
}

// Record is one chunk to upsert, keyed by its deterministic ID.
type Record struct {
	ID        string
	Embedding []float32
	Text      string
	Meta      Metadata
}

// Hit is one ranked query result. Distance is the store's native metric;
// smaller is closer.
type Hit struct {
	ID       string
	Text     string
	Meta     Metadata
	Distance float64
}

// Filter restricts a query before ranking. Only equality on the chunk kind
// is evaluated store-side; substring filters are applied by the caller.
type Filter struct {
	Kind string
}

// VectorStore is the persistence contract shared by backends.
type VectorStore interface {
	// EnsureCollection creates the collection if missing.
	EnsureCollection(ctx context.Context) error
	// DropCollection removes the collection and everything in it.
	DropCollection(ctx context.Context) error
	// Upsert inserts or replaces records by ID.
	Upsert(ctx context.Context, records []Record) error
	// DeleteDocument removes every chunk recorded for a document key.
	DeleteDocument(ctx context.Context, documentKey string) error
	// Query returns up to k hits ordered by ascending distance.
	Query(ctx context.Context, embedding []float32, k int, filter Filter) ([]Hit, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}
