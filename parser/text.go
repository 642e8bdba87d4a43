package parser

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TextParser handles plain-text and markdown files. The whole file becomes a
// single section; a leading markdown heading doubles as the title.
type TextParser struct{}

func (p *TextParser) Parse(ctx context.Context, filePath string) (Metadata, []Section, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("read file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Metadata{}, nil, err
	}

	content := collapseSpaces(string(data))
	title := headingTitle(content)

	meta := Metadata{Title: title}
	if len(content) < minSectionChars {
		return meta, nil, nil
	}

	sectionTitle := title
	if sectionTitle == "" {
		sectionTitle = fileStem(filePath)
	}

	return meta, []Section{{
		Title:     sectionTitle,
		Content:   content,
		Number:    1,
		WordCount: wordCount(content),
	}}, nil
}

func headingTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return ""
}
