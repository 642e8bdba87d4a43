package chunker

import (
	"strings"
	"testing"

	"github.com/fabfab/booksearch/config"
	"github.com/fabfab/booksearch/parser"
)

func testBands() config.Chunking {
	return config.Chunking{
		ChapterMinTokens:   2000,
		ChapterMaxTokens:   5000,
		ParagraphMinTokens: 300,
		ParagraphMaxTokens: 500,
	}
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "word"
	}
	return strings.Join(parts, " ")
}

func testMeta() parser.Metadata {
	return parser.Metadata{Title: "The Test Book", Author: "Jane Doe"}
}

func section(content string) parser.Section {
	return parser.Section{Title: "Chapter One", Content: content, Number: 1, WordCount: len(strings.Fields(content))}
}

func TestSingleParagraphInsideSmallBand(t *testing.T) {
	// 300 words estimate to 390 tokens, strictly inside (300, 500).
	content := words(300)
	chunks := NewBuilder(testBands()).ChunkSection(testMeta(), section(content))

	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].Kind != KindParagraph {
		t.Fatalf("expected paragraph kind, got %s", chunks[0].Kind)
	}
	if chunks[0].Text != content {
		t.Fatal("chunk text should equal the input paragraph")
	}
	if chunks[0].WordCount != 300 {
		t.Fatalf("expected word count 300, got %d", chunks[0].WordCount)
	}
}

func TestSectionBelowSmallBandDropped(t *testing.T) {
	chunks := NewBuilder(testBands()).ChunkSection(testMeta(), section(words(100)))
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for a tiny section, got %d", len(chunks))
	}
}

func TestChapterBandEmitsChapterChunk(t *testing.T) {
	// Three oversized paragraphs: each overflows the paragraph band on its
	// own, and together they put the section inside the chapter band.
	para := words(1026)
	content := strings.Join([]string{para, para, para}, "\n\n")
	chunks := NewBuilder(testBands()).ChunkSection(testMeta(), section(content))

	var chapters, paragraphs int
	for _, c := range chunks {
		switch c.Kind {
		case KindChapter:
			chapters++
			if c.Index != 0 {
				t.Fatalf("chapter chunk index should be 0, got %d", c.Index)
			}
		case KindParagraph:
			paragraphs++
		}
	}
	if chapters != 1 {
		t.Fatalf("expected 1 chapter chunk, got %d", chapters)
	}
	if paragraphs != 3 {
		t.Fatalf("expected 3 paragraph chunks, got %d", paragraphs)
	}
}

func TestEmptyParagraphsSkipped(t *testing.T) {
	content := words(150) + "\n\n\n\n   \n\n" + words(150)
	chunks := NewBuilder(testBands()).ChunkSection(testMeta(), section(content))

	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			t.Fatal("emitted an empty chunk")
		}
	}
	// 150 + 150 words accumulate to 390 tokens, one paragraph chunk.
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
}

func TestGreedyAccumulationFlushesOnOverflow(t *testing.T) {
	// Four 200-token paragraphs: pairs accumulate to 400 tokens, the next
	// would overflow 500, so two chunks of two paragraphs each.
	para := words(154)
	content := strings.Join([]string{para, para, para, para}, "\n\n")
	chunks := NewBuilder(testBands()).ChunkSection(testMeta(), section(content))

	if len(chunks) != 2 {
		t.Fatalf("expected 2 paragraph chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
	}
}

func TestOverlapCarriesSmallTailParagraph(t *testing.T) {
	cfg := testBands()
	cfg.OverlapTokens = 50

	small := strings.Repeat("tiny ", 30) // 39 tokens, fits the overlap budget
	big := words(154)                    // 200 tokens
	content := strings.Join([]string{big, big, strings.TrimSpace(small), big, big}, "\n\n")
	chunks := NewBuilder(cfg).ChunkSection(testMeta(), section(content))

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[1].Text, "tiny") {
		t.Fatalf("second chunk should start with the carried paragraph, got %q", chunks[1].Text[:20])
	}
}

func TestDeterministicOutputAndIDs(t *testing.T) {
	content := strings.Join([]string{words(400), words(250), words(310)}, "\n\n")
	b := NewBuilder(testBands())

	first := b.ChunkSection(testMeta(), section(content))
	second := b.ChunkSection(testMeta(), section(content))

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text {
			t.Fatalf("chunk %d text differs between runs", i)
		}
		if first[i].ID() != second[i].ID() {
			t.Fatalf("chunk %d ID differs between runs", i)
		}
	}
}

func TestIDDistinguishesKindAndIndex(t *testing.T) {
	base := TextChunk{BookTitle: "T", BookAuthor: "A", ChapterNumber: 1, Index: 0, Kind: KindParagraph}
	other := base
	other.Kind = KindChapter
	if base.ID() == other.ID() {
		t.Fatal("chunks of different kinds must not share IDs")
	}
	other = base
	other.Index = 1
	if base.ID() == other.ID() {
		t.Fatal("chunks at different indexes must not share IDs")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(words(10)); got != 13 {
		t.Fatalf("expected 13 tokens for 10 words, got %d", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", got)
	}
}
