package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pcameron/webscan/internal/scanner"
)

// HTML saves the raw page body as an .html file.
type HTML struct {
	dir string
}

// NewHTML builds an HTML extractor writing into dir.
func NewHTML(dir string) *HTML {
	return &HTML{dir: dir}
}

// Name implements scanner.Extractor.
func (e *HTML) Name() string { return "html" }

// Extract writes the fetched body to disk. Pages without an HTML body
// are skipped rather than failed.
func (e *HTML) Extract(_ context.Context, page scanner.CrawledPage) (scanner.ArtifactRef, error) {
	if len(page.Body) == 0 || !isHTML(page.ContentType) {
		return scanner.ArtifactRef{}, scanner.ErrStageSkipped
	}

	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		return scanner.ArtifactRef{}, fmt.Errorf("create html dir: %w", err)
	}

	path := filepath.Join(e.dir, safeFilename(page.URL)+".html")
	if err := os.WriteFile(path, page.Body, 0o600); err != nil {
		return scanner.ArtifactRef{}, fmt.Errorf("write html artifact: %w", err)
	}

	return scanner.ArtifactRef{Extractor: e.Name(), Path: path}, nil
}
