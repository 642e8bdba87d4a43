package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EPUBParser reads EPUB archives: OPF metadata plus spine-ordered XHTML
// chapters converted to plain text.
type EPUBParser struct{}

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Metadata struct {
		Titles     []string `xml:"title"`
		Creators   []string `xml:"creator"`
		Languages  []string `xml:"language"`
		Publishers []string `xml:"publisher"`
	} `xml:"metadata"`
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

func (p *EPUBParser) Parse(ctx context.Context, filePath string) (Metadata, []Section, error) {
	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("open epub archive: %w", err)
	}
	defer archive.Close()

	files := make(map[string]*zip.File, len(archive.File))
	for _, f := range archive.File {
		files[f.Name] = f
	}

	opfPath, err := rootfilePath(files)
	if err != nil {
		return Metadata{}, nil, err
	}

	var pkg epubPackage
	if err := decodeZipXML(files, opfPath, &pkg); err != nil {
		return Metadata{}, nil, err
	}

	meta := Metadata{
		Title:     first(pkg.Metadata.Titles),
		Author:    first(pkg.Metadata.Creators),
		Language:  first(pkg.Metadata.Languages),
		Publisher: first(pkg.Metadata.Publishers),
	}

	hrefByID := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		if strings.Contains(item.MediaType, "html") {
			hrefByID[item.ID] = item.Href
		}
	}

	opfDir := path.Dir(opfPath)
	sections := make([]Section, 0, len(pkg.Spine))
	number := 0
	for _, ref := range pkg.Spine {
		if err := ctx.Err(); err != nil {
			return Metadata{}, nil, err
		}
		href, ok := hrefByID[ref.IDRef]
		if !ok {
			continue
		}
		f, ok := files[resolveHref(opfDir, href)]
		if !ok {
			continue
		}

		title, content, err := extractXHTML(f)
		if err != nil {
			return Metadata{}, nil, fmt.Errorf("read spine item %s: %w", href, err)
		}
		if len(content) < minSectionChars {
			continue
		}
		if title == "" {
			title = fileStem(href)
		}

		number++
		sections = append(sections, Section{
			Title:     title,
			Content:   content,
			Number:    number,
			WordCount: wordCount(content),
		})
	}

	return meta, sections, nil
}

func rootfilePath(files map[string]*zip.File) (string, error) {
	var container epubContainer
	if err := decodeZipXML(files, "META-INF/container.xml", &container); err != nil {
		return "", err
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("epub container declares no rootfile")
	}
	return container.Rootfiles[0].FullPath, nil
}

func decodeZipXML(files map[string]*zip.File, name string, out any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("epub entry %s missing", name)
	}
	r, err := f.Open()
	if err != nil {
		return fmt.Errorf("open epub entry %s: %w", name, err)
	}
	defer r.Close()

	dec := xml.NewDecoder(r)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// extractXHTML converts one spine document to plain text. Paragraph-level
// elements become blank-line separated paragraphs so the chunker can split
// on them; the chapter title comes from the first heading.
func extractXHTML(f *zip.File) (title, content string, err error) {
	r, err := f.Open()
	if err != nil {
		return "", "", err
	}
	defer r.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(r, 16<<20))
	if err != nil {
		return "", "", err
	}

	doc.Find("script, style").Remove()

	for _, tag := range []string{"h1", "h2", "h3", "title"} {
		if t := strings.TrimSpace(doc.Find(tag).First().Text()); t != "" {
			title = strings.Join(strings.Fields(t), " ")
			break
		}
	}

	var paragraphs []string
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote").Each(func(_ int, sel *goquery.Selection) {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		if body := collapseSpaces(doc.Find("body").Text()); body != "" {
			paragraphs = append(paragraphs, body)
		}
	}

	return title, strings.Join(paragraphs, "\n\n"), nil
}

func resolveHref(dir, href string) string {
	if dir == "." || dir == "" {
		return href
	}
	return path.Join(dir, href)
}

func first(values []string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
