// Package parser extracts book metadata and chapter text from EPUB, PDF and
// plain-text files. Parsed output is format-independent: a Metadata record
// plus an ordered list of Sections ready for chunking.
package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// minSectionChars filters out front matter, blank pages and similar noise.
const minSectionChars = 100

// Metadata describes one book. Title and Author are always populated, with
// filename and "Unknown Author" fallbacks; the rest may be empty.
type Metadata struct {
	Title     string
	Author    string
	Language  string
	Publisher string
}

// Section is one chapter-level unit of a parsed book.
type Section struct {
	Title     string
	Content   string
	Number    int
	WordCount int
}

// ParseError marks a document that could not be parsed. Library-wide passes
// catch it per document instead of aborting.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser reads one file format.
type Parser interface {
	Parse(ctx context.Context, path string) (Metadata, []Section, error)
}

// Registry routes files to format parsers by extension.
type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	text := &TextParser{}
	return &Registry{parsers: map[string]Parser{
		".epub": &EPUBParser{},
		".pdf":  &PDFParser{},
		".txt":  text,
		".md":   text,
	}}
}

// Supports reports whether the file extension has a registered parser.
func (r *Registry) Supports(path string) bool {
	_, ok := r.parsers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ParseFile parses path with the parser registered for its extension. All
// failures come back as *ParseError. Missing optional metadata is filled
// with defaults rather than reported as an error.
func (r *Registry) ParseFile(ctx context.Context, path string) (Metadata, []Section, error) {
	p, ok := r.parsers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return Metadata{}, nil, &ParseError{Path: path, Err: fmt.Errorf("unsupported format %q", filepath.Ext(path))}
	}

	meta, sections, err := p.Parse(ctx, path)
	if err != nil {
		var perr *ParseError
		if !errors.As(err, &perr) {
			err = &ParseError{Path: path, Err: err}
		}
		return Metadata{}, nil, err
	}

	fillMetadataDefaults(&meta, path)
	return meta, sections, nil
}

func fillMetadataDefaults(meta *Metadata, path string) {
	if strings.TrimSpace(meta.Title) == "" {
		meta.Title = fileStem(path)
	}
	if strings.TrimSpace(meta.Author) == "" {
		meta.Author = "Unknown Author"
	}
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// collapseSpaces squeezes runs of spaces and tabs within lines but keeps
// paragraph breaks, which the chunker depends on.
func collapseSpaces(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
