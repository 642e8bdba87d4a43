// Package search answers free-text queries against the chunk index. The
// query is embedded once, ranked by the store's native distance, and then
// narrowed by in-process substring filters the store cannot evaluate.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/fabfab/booksearch/config"
	"github.com/fabfab/booksearch/embeddings"
	"github.com/fabfab/booksearch/store"
)

// Result is one retrieval hit. Similarity is 1 - distance and is only
// comparable within the same index and distance metric.
type Result struct {
	BookTitle     string
	BookAuthor    string
	ChapterTitle  string
	ChapterNumber int
	Kind          string
	Text          string
	WordCount     int
	Similarity    float64
}

// Preview returns the hit text shortened to max bytes.
func (r Result) Preview(max int) string {
	if len(r.Text) <= max {
		return r.Text
	}
	return r.Text[:max] + "..."
}

// Options narrows a search. Author and Title match case-insensitively as
// substrings; Kind is an exact chunk-kind filter applied store-side.
type Options struct {
	Limit  int
	Kind   string
	Author string
	Title  string
}

// Searcher is the retrieval engine.
type Searcher struct {
	embedder embeddings.Embedder
	store    store.VectorStore
	defaults config.Search
}

func New(embedder embeddings.Embedder, vs store.VectorStore, defaults config.Search) *Searcher {
	return &Searcher{
		embedder: embedder,
		store:    vs,
		defaults: defaults,
	}
}

// Search returns up to Limit results ordered by descending similarity. When
// an author or title filter is present the store is asked for three times
// the limit to compensate for post-filtering loss.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.defaults.DefaultResults
	}
	if limit > s.defaults.MaxResults {
		limit = s.defaults.MaxResults
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one query embedding, got %d", len(vectors))
	}

	k := limit
	if opts.Author != "" || opts.Title != "" {
		k = limit * 3
	}

	hits, err := s.store.Query(ctx, vectors[0], k, store.Filter{Kind: opts.Kind})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if opts.Author != "" && !containsFold(hit.Meta.BookAuthor, opts.Author) {
			continue
		}
		if opts.Title != "" && !containsFold(hit.Meta.BookTitle, opts.Title) {
			continue
		}
		results = append(results, Result{
			BookTitle:     hit.Meta.BookTitle,
			BookAuthor:    hit.Meta.BookAuthor,
			ChapterTitle:  hit.Meta.ChapterTitle,
			ChapterNumber: hit.Meta.ChapterNumber,
			Kind:          hit.Meta.Kind,
			Text:          hit.Text,
			WordCount:     hit.Meta.WordCount,
			Similarity:    1 - hit.Distance,
		})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// CollectionStats reports the total number of stored chunks.
func (s *Searcher) CollectionStats(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
