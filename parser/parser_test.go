package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegistrySupports(t *testing.T) {
	r := NewRegistry()
	for _, path := range []string{"a.epub", "b.PDF", "c.txt", "d.md", "/lib/Author/Book.Epub"} {
		if !r.Supports(path) {
			t.Fatalf("expected %s to be supported", path)
		}
	}
	for _, path := range []string{"cover.jpg", "notes", "book.mobi"} {
		if r.Supports(path) {
			t.Fatalf("expected %s to be unsupported", path)
		}
	}
}

func TestParseFileUnsupportedFormat(t *testing.T) {
	_, _, err := NewRegistry().ParseFile(context.Background(), "book.mobi")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Path != "book.mobi" {
		t.Fatalf("parse error should carry the path, got %q", perr.Path)
	}
}

func TestParseFileWrapsParserFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.epub")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := NewRegistry().ParseFile(context.Background(), path)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
}

func TestTextParserMarkdownHeadingBecomesTitle(t *testing.T) {
	content := "# Harbor Nights\n\n" +
		"The quick brown fox jumps over the lazy dog while autumn leaves drift past.\n\n" +
		"A second paragraph keeps the harbor town busy well into the night."
	path := filepath.Join(t.TempDir(), "harbor.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	meta, sections, err := NewRegistry().ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if meta.Title != "Harbor Nights" {
		t.Fatalf("expected the heading as title, got %q", meta.Title)
	}
	if meta.Author != "Unknown Author" {
		t.Fatalf("expected the author fallback, got %q", meta.Author)
	}
	if len(sections) != 1 {
		t.Fatalf("expected one section, got %d", len(sections))
	}
	if sections[0].Number != 1 {
		t.Fatalf("expected section number 1, got %d", sections[0].Number)
	}
	if !strings.Contains(sections[0].Content, "\n\n") {
		t.Fatal("paragraph breaks must survive parsing")
	}
}

func TestTextParserTitleFallsBackToFilename(t *testing.T) {
	content := strings.Repeat("plain words without any heading at all ", 5)
	path := filepath.Join(t.TempDir(), "field-notes.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	meta, sections, err := NewRegistry().ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if meta.Title != "field-notes" {
		t.Fatalf("expected filename stem as title, got %q", meta.Title)
	}
	if len(sections) != 1 || sections[0].Title != "field-notes" {
		t.Fatalf("unexpected sections: %+v", sections)
	}
}

func TestTextParserSkipsTinyFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.txt")
	if err := os.WriteFile(path, []byte("too short"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, sections, err := NewRegistry().ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(sections) != 0 {
		t.Fatalf("expected no sections for a tiny file, got %d", len(sections))
	}
}

func TestCollapseSpaces(t *testing.T) {
	in := "first  line\t here\r\n\r\nsecond   line\r"
	want := "first line here\n\nsecond line"
	if got := collapseSpaces(in); got != want {
		t.Fatalf("collapseSpaces: got %q, want %q", got, want)
	}
}

func TestDetectChapterBreaks(t *testing.T) {
	content := "Front matter before anything.\n" +
		"Chapter 1: The Beginning\n" + strings.Repeat("words of the first chapter ", 20) + "\n" +
		"Chapter 2: The Middle\n" + strings.Repeat("words of the second chapter ", 20) + "\n" +
		"CHAPTER III. The End\n" + strings.Repeat("words of the last chapter ", 20)

	breaks := detectChapterBreaks(content)
	if len(breaks) != 3 {
		t.Fatalf("expected 3 chapter breaks, got %d", len(breaks))
	}
	if breaks[0].title != "The Beginning" || breaks[1].title != "The Middle" {
		t.Fatalf("unexpected titles: %q, %q", breaks[0].title, breaks[1].title)
	}
	for i := 1; i < len(breaks); i++ {
		if breaks[i].pos <= breaks[i-1].pos {
			t.Fatal("breaks must be sorted by position")
		}
	}
}

func TestSplitChaptersByHeading(t *testing.T) {
	content := "Chapter 1: The Beginning\n" + strings.Repeat("opening text ", 30) + "\n" +
		"Chapter 2: The End\n" + strings.Repeat("closing text ", 30)

	sections := splitChapters(content)
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	if sections[0].Title != "The Beginning" || sections[1].Title != "The End" {
		t.Fatalf("unexpected titles: %q, %q", sections[0].Title, sections[1].Title)
	}
	if sections[0].Number != 1 || sections[1].Number != 2 {
		t.Fatalf("sections must be numbered in order: %d, %d", sections[0].Number, sections[1].Number)
	}
	if strings.Contains(sections[0].Content, "closing text") {
		t.Fatal("first section leaked into the second chapter")
	}
}

func TestSplitChaptersFallsBackToWindows(t *testing.T) {
	// No recognizable headings and more words than one window holds.
	content := strings.Repeat("steady prose without any heading markers at all ", 800)

	sections := splitChapters(content)
	if len(sections) != 2 {
		t.Fatalf("expected 2 window sections for 6400 words, got %d", len(sections))
	}
	if sections[0].Title != "Part 1" || sections[1].Title != "Part 2" {
		t.Fatalf("unexpected titles: %q, %q", sections[0].Title, sections[1].Title)
	}
	if sections[0].WordCount != fallbackWindowWords {
		t.Fatalf("first window should hold %d words, got %d", fallbackWindowWords, sections[0].WordCount)
	}
}

func TestFileStem(t *testing.T) {
	if got := fileStem("/library/Jane Doe/Harbor Nights.epub"); got != "Harbor Nights" {
		t.Fatalf("unexpected stem: %q", got)
	}
}
