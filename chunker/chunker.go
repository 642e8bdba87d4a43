// Package chunker splits parsed book sections into indexable text chunks at
// two granularities: whole chapters and paragraph groups. Both are stored
// and searched independently.
package chunker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fabfab/booksearch/config"
	"github.com/fabfab/booksearch/parser"
)

// Kind is the chunk granularity.
type Kind string

const (
	KindChapter   Kind = "chapter"
	KindParagraph Kind = "paragraph"
)

// TextChunk is one indexable unit of text. Chunks are immutable once built.
type TextChunk struct {
	Text          string
	Kind          Kind
	BookTitle     string
	BookAuthor    string
	ChapterTitle  string
	ChapterNumber int
	Index         int
	WordCount     int
}

// ID returns the chunk's deterministic identifier: a UUIDv5 over the
// identity key, so re-ingesting identical content upserts the same rows.
func (c TextChunk) ID() string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("booksearch:chunk:"+c.identityKey())).String()
}

func (c TextChunk) identityKey() string {
	return fmt.Sprintf("%s|%s|%s|%d|%d", c.BookAuthor, c.BookTitle, c.Kind, c.ChapterNumber, c.Index)
}

// Builder turns sections into chunks according to the configured size bands.
type Builder struct {
	cfg config.Chunking
}

func NewBuilder(cfg config.Chunking) *Builder {
	return &Builder{cfg: cfg}
}

// ChunkSection produces the chunks for one section. A section whose token
// estimate lands inside the chapter band becomes one chapter chunk; its
// paragraphs are independently grouped into paragraph chunks. Output is
// deterministic for fixed input and bounds.
func (b *Builder) ChunkSection(meta parser.Metadata, sec parser.Section) []TextChunk {
	var chunks []TextChunk

	total := EstimateTokens(sec.Content)
	if total >= b.cfg.ChapterMinTokens && total <= b.cfg.ChapterMaxTokens {
		chunks = append(chunks, b.newChunk(meta, sec, KindChapter, 0, sec.Content))
	}

	var (
		current       []string
		currentTokens int
		index         int
	)

	emit := func() bool {
		text := strings.Join(current, " ")
		if EstimateTokens(text) < b.cfg.ParagraphMinTokens {
			return false
		}
		chunks = append(chunks, b.newChunk(meta, sec, KindParagraph, index, text))
		index++
		return true
	}

	for _, para := range splitParagraphs(sec.Content) {
		tokens := EstimateTokens(para)
		if currentTokens+tokens > b.cfg.ParagraphMaxTokens && len(current) > 0 {
			if emit() {
				current, currentTokens = b.carryOverlap(current)
			}
			// Below the lower bound the accumulator carries forward
			// instead of emitting an undersized chunk.
		}
		current = append(current, para)
		currentTokens += tokens
	}

	if len(current) > 0 {
		emit()
	}

	return chunks
}

func (b *Builder) newChunk(meta parser.Metadata, sec parser.Section, kind Kind, index int, text string) TextChunk {
	return TextChunk{
		Text:          text,
		Kind:          kind,
		BookTitle:     meta.Title,
		BookAuthor:    meta.Author,
		ChapterTitle:  sec.Title,
		ChapterNumber: sec.Number,
		Index:         index,
		WordCount:     len(strings.Fields(text)),
	}
}

// carryOverlap keeps the last accumulated paragraph as the start of the next
// chunk when it fits the overlap budget.
func (b *Builder) carryOverlap(current []string) ([]string, int) {
	if b.cfg.OverlapTokens <= 0 || len(current) == 0 {
		return nil, 0
	}
	last := current[len(current)-1]
	if tokens := EstimateTokens(last); tokens <= b.cfg.OverlapTokens {
		return []string{last}, tokens
	}
	return nil, 0
}

// EstimateTokens approximates the token count of text as word count x 1.3.
func EstimateTokens(text string) int {
	return len(strings.Fields(text)) * 13 / 10
}

func splitParagraphs(content string) []string {
	raw := strings.Split(content, "\n\n")
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}
