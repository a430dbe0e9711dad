package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pcameron/webscan/internal/scanner"
)

// Text renders the page body down to readable text and saves it as a
// .txt file headed by the page URL and title.
type Text struct {
	dir string
}

// NewText builds a Text extractor writing into dir.
func NewText(dir string) *Text {
	return &Text{dir: dir}
}

// Name implements scanner.Extractor.
func (e *Text) Name() string { return "text" }

// Extract strips markup, scripts, and styles from the page and writes
// the remaining text to disk.
func (e *Text) Extract(_ context.Context, page scanner.CrawledPage) (scanner.ArtifactRef, error) {
	if len(page.Body) == 0 || !isHTML(page.ContentType) {
		return scanner.ArtifactRef{}, scanner.ErrStageSkipped
	}

	text, err := PageText(page.Body)
	if err != nil {
		return scanner.ArtifactRef{}, fmt.Errorf("extract text: %w", err)
	}

	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		return scanner.ArtifactRef{}, fmt.Errorf("create text dir: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "URL: %s\n", page.URL)
	fmt.Fprintf(&buf, "Title: %s\n", page.Title)
	buf.WriteString(strings.Repeat("=", 70) + "\n\n")
	buf.WriteString(text)
	buf.WriteByte('\n')

	path := filepath.Join(e.dir, safeFilename(page.URL)+".txt")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return scanner.ArtifactRef{}, fmt.Errorf("write text artifact: %w", err)
	}

	return scanner.ArtifactRef{Extractor: e.Name(), Path: path}, nil
}

// PageText returns the visible text of an HTML document with scripts,
// styles, and excess whitespace removed. Lines are preserved so the
// grammar analyzer can report locations.
func PageText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template").Remove()

	raw := doc.Find("body").Text()
	if strings.TrimSpace(raw) == "" {
		raw = doc.Text()
	}

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}
