package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pcameron/webscan/internal/scanner"
)

// Screenshot captures a full-page PNG of the rendered page through the
// headless browser.
type Screenshot struct {
	dir      string
	renderer scanner.Renderer
}

// NewScreenshot builds a Screenshot extractor writing into dir. A nil
// renderer disables the stage.
func NewScreenshot(dir string, renderer scanner.Renderer) *Screenshot {
	return &Screenshot{dir: dir, renderer: renderer}
}

// Name implements scanner.Extractor.
func (e *Screenshot) Name() string { return "screenshot" }

// Extract navigates the headless browser to the page and saves a PNG
// capture. Non-HTML pages are skipped.
func (e *Screenshot) Extract(ctx context.Context, page scanner.CrawledPage) (scanner.ArtifactRef, error) {
	if e.renderer == nil {
		return scanner.ArtifactRef{}, scanner.ErrStageSkipped
	}
	if !isHTML(page.ContentType) {
		return scanner.ArtifactRef{}, scanner.ErrStageSkipped
	}

	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		return scanner.ArtifactRef{}, fmt.Errorf("create screenshot dir: %w", err)
	}

	target := page.FinalURL
	if target == "" {
		target = page.URL
	}
	path := filepath.Join(e.dir, safeFilename(page.URL)+".png")
	if err := e.renderer.Screenshot(ctx, target, path); err != nil {
		return scanner.ArtifactRef{}, fmt.Errorf("capture screenshot: %w", err)
	}

	return scanner.ArtifactRef{Extractor: e.Name(), Path: path}, nil
}
