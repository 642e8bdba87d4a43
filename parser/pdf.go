package parser

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts text from PDF files and splits it into chapters by
// detecting common heading patterns. Books without recognizable headings
// fall back to fixed-size windows.
type PDFParser struct{}

// fallbackWindowWords sizes the window split used when no chapter headings
// are detected.
const fallbackWindowWords = 5000

var chapterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?mi)^chapter\s+(\d+|[ivxlcdm]+)[:.\s]+(.+)$`),
	regexp.MustCompile(`(?m)^(\d+)\.\s+([A-Z][A-Za-z\s]{3,50})$`),
	regexp.MustCompile(`(?m)^([IVXLCDM]+)\.\s+([A-Z][A-Za-z\s]{3,50})$`),
}

func (p *PDFParser) Parse(ctx context.Context, filePath string) (Metadata, []Section, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	meta := pdfMetadata(reader)

	plain, err := reader.GetPlainText()
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("extract pdf text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("read pdf text: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Metadata{}, nil, err
	}

	content := collapseSpaces(string(raw))
	sections := splitChapters(content)
	return meta, sections, nil
}

func pdfMetadata(reader *pdf.Reader) Metadata {
	defer func() {
		// Malformed trailer dictionaries panic inside the pdf library.
		_ = recover()
	}()

	info := reader.Trailer().Key("Info")
	return Metadata{
		Title:     strings.TrimSpace(info.Key("Title").Text()),
		Author:    strings.TrimSpace(info.Key("Author").Text()),
		Publisher: strings.TrimSpace(info.Key("Producer").Text()),
	}
}

type chapterBreak struct {
	pos   int
	title string
}

func detectChapterBreaks(content string) []chapterBreak {
	var breaks []chapterBreak
	for _, pattern := range chapterPatterns {
		for _, loc := range pattern.FindAllStringSubmatchIndex(content, -1) {
			title := ""
			if len(loc) >= 6 && loc[4] >= 0 {
				title = strings.Join(strings.Fields(content[loc[4]:loc[5]]), " ")
			}
			breaks = append(breaks, chapterBreak{pos: loc[0], title: title})
		}
	}

	sort.Slice(breaks, func(i, j int) bool { return breaks[i].pos < breaks[j].pos })

	unique := breaks[:0]
	lastPos := -1
	for _, b := range breaks {
		if b.pos != lastPos {
			unique = append(unique, b)
			lastPos = b.pos
		}
	}
	return unique
}

func splitChapters(content string) []Section {
	breaks := detectChapterBreaks(content)
	if len(breaks) == 0 {
		return windowSections(content)
	}

	var sections []Section
	number := 0
	for i, b := range breaks {
		end := len(content)
		if i < len(breaks)-1 {
			end = breaks[i+1].pos
		}
		body := strings.TrimSpace(content[b.pos:end])
		if len(body) < minSectionChars {
			continue
		}
		number++
		title := b.title
		if title == "" {
			title = fmt.Sprintf("Chapter %d", number)
		}
		sections = append(sections, Section{
			Title:     title,
			Content:   body,
			Number:    number,
			WordCount: wordCount(body),
		})
	}
	return sections
}

func windowSections(content string) []Section {
	words := strings.Fields(content)
	var sections []Section
	number := 0
	for start := 0; start < len(words); start += fallbackWindowWords {
		end := start + fallbackWindowWords
		if end > len(words) {
			end = len(words)
		}
		body := strings.Join(words[start:end], " ")
		if len(body) < minSectionChars {
			continue
		}
		number++
		sections = append(sections, Section{
			Title:     fmt.Sprintf("Part %d", number),
			Content:   body,
			Number:    number,
			WordCount: end - start,
		})
	}
	return sections
}
