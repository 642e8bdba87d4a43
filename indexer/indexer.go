// Package indexer orchestrates ingestion: hash, parse, chunk, embed, store,
// record. Books whose content hash matches the ledger are skipped, so
// repeated library passes only pay for new or changed files.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fabfab/booksearch/chunker"
	"github.com/fabfab/booksearch/config"
	"github.com/fabfab/booksearch/embeddings"
	"github.com/fabfab/booksearch/ledger"
	"github.com/fabfab/booksearch/parser"
	"github.com/fabfab/booksearch/store"
)

// Status distinguishes the three outcomes of a single-book ingest.
type Status int

const (
	// StatusIndexed means chunks were embedded and stored.
	StatusIndexed Status = iota
	// StatusSkipped means the ledger already holds this content version.
	StatusSkipped
	// StatusEmpty means the book produced no chunks; it is not recorded
	// in the ledger and will be retried on the next pass.
	StatusEmpty
)

func (s Status) String() string {
	switch s {
	case StatusIndexed:
		return "indexed"
	case StatusSkipped:
		return "skipped"
	case StatusEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Result reports one single-book ingest.
type Result struct {
	Status          Status
	ChapterChunks   int
	ParagraphChunks int
}

// LibraryStats summarizes a whole-library pass.
type LibraryStats struct {
	Found           int
	Processed       int
	Skipped         int
	Failed          int
	ChapterChunks   int
	ParagraphChunks int
}

// ProgressEvent is delivered to the progress sink after each book.
type ProgressEvent struct {
	Path   string
	Result Result
	Err    error
}

// DocumentParser is the parsing collaborator.
type DocumentParser interface {
	Supports(path string) bool
	ParseFile(ctx context.Context, path string) (parser.Metadata, []parser.Section, error)
}

// Indexer is the ingestion engine. It owns the ledger exclusively; do not
// point two indexers at the same ledger file.
type Indexer struct {
	cfg      *config.Config
	parsers  DocumentParser
	builder  *chunker.Builder
	embedder embeddings.Embedder
	store    store.VectorStore
	ledger   *ledger.Ledger
	logger   *log.Logger
}

func New(cfg *config.Config, parsers DocumentParser, builder *chunker.Builder,
	embedder embeddings.Embedder, vs store.VectorStore, led *ledger.Ledger, logger *log.Logger) *Indexer {
	if logger == nil {
		logger = log.Default()
	}
	return &Indexer{
		cfg:      cfg,
		parsers:  parsers,
		builder:  builder,
		embedder: embedder,
		store:    vs,
		ledger:   led,
		logger:   logger,
	}
}

// DocumentKey identifies a book across ingestions, independent of file path.
func DocumentKey(meta parser.Metadata) string {
	return meta.Author + "/" + meta.Title
}

// IngestBook ingests a single book. With force false, a book whose content
// hash matches the ledger is skipped without touching the vector store.
// Chunks from a previous version of the book are deleted before the new
// ones are upserted, so a shrunk book leaves no stale hits behind.
func (ix *Indexer) IngestBook(ctx context.Context, path string, force bool) (Result, error) {
	contentHash, err := hashFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("hash %s: %w", path, err)
	}

	meta, sections, err := ix.parsers.ParseFile(ctx, path)
	if err != nil {
		return Result{}, err
	}

	key := DocumentKey(meta)
	if !force && ix.ledger.IsCurrent(key, contentHash) {
		return Result{Status: StatusSkipped}, nil
	}

	var chunks []chunker.TextChunk
	for _, sec := range sections {
		chunks = append(chunks, ix.builder.ChunkSection(meta, sec)...)
	}
	if len(chunks) == 0 {
		return Result{Status: StatusEmpty}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("embed %s: %w", path, err)
	}
	if len(vectors) != len(chunks) {
		return Result{}, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	if err := ix.store.EnsureCollection(ctx); err != nil {
		return Result{}, fmt.Errorf("ensure collection: %w", err)
	}
	if err := ix.store.DeleteDocument(ctx, key); err != nil {
		return Result{}, fmt.Errorf("delete stale chunks for %s: %w", key, err)
	}

	records := make([]store.Record, len(chunks))
	for i, c := range chunks {
		records[i] = store.Record{
			ID:        c.ID(),
			Embedding: vectors[i],
			Text:      c.Text,
			Meta: store.Metadata{
				DocumentKey:   key,
				Kind:          string(c.Kind),
				BookTitle:     c.BookTitle,
				BookAuthor:    c.BookAuthor,
				ChapterTitle:  c.ChapterTitle,
				ChapterNumber: c.ChapterNumber,
				ChunkIndex:    c.Index,
				WordCount:     c.WordCount,
			},
		}
	}
	if err := ix.store.Upsert(ctx, records); err != nil {
		return Result{}, fmt.Errorf("upsert chunks for %s: %w", key, err)
	}

	result := Result{Status: StatusIndexed}
	for _, c := range chunks {
		switch c.Kind {
		case chunker.KindChapter:
			result.ChapterChunks++
		case chunker.KindParagraph:
			result.ParagraphChunks++
		}
	}

	if err := ix.ledger.Record(key, path, contentHash, result.ChapterChunks, result.ParagraphChunks); err != nil {
		return Result{}, fmt.Errorf("record ledger entry for %s: %w", key, err)
	}
	return result, nil
}

// IngestLibrary ingests every supported file under the books root, one at a
// time. A failing book is logged, counted and reported through the sink but
// never aborts the pass.
func (ix *Indexer) IngestLibrary(ctx context.Context, force bool, progress func(ProgressEvent)) (LibraryStats, error) {
	paths, err := ix.findBooks()
	if err != nil {
		return LibraryStats{}, err
	}

	stats := LibraryStats{Found: len(paths)}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		result, err := ix.IngestBook(ctx, path, force)
		if err != nil {
			stats.Failed++
			ix.logger.Printf("ingest failed for %s: %v", path, err)
		} else {
			switch result.Status {
			case StatusIndexed:
				stats.Processed++
				stats.ChapterChunks += result.ChapterChunks
				stats.ParagraphChunks += result.ParagraphChunks
			default:
				stats.Skipped++
			}
		}
		if progress != nil {
			progress(ProgressEvent{Path: path, Result: result, Err: err})
		}
	}
	return stats, nil
}

// ClearIndex drops the vector collection and empties the ledger. The next
// search fails until something is ingested again.
func (ix *Indexer) ClearIndex(ctx context.Context) error {
	if err := ix.store.DropCollection(ctx); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	if err := ix.ledger.Clear(); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}

// Status returns the ledger aggregates.
func (ix *Indexer) Status() ledger.Stats {
	return ix.ledger.Stats()
}

func (ix *Indexer) findBooks() ([]string, error) {
	root := ix.cfg.Paths.BooksRoot
	dataDir, err := filepath.Abs(ix.cfg.Paths.DataDir)
	if err != nil {
		dataDir = ix.cfg.Paths.DataDir
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if abs, err := filepath.Abs(path); err == nil && abs == dataDir {
				return filepath.SkipDir
			}
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if ix.parsers.Supports(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan books directory: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
