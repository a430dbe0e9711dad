package scanner

import (
	"context"
	"errors"
	"time"
)

// ErrStageSkipped is returned by an extractor or analyzer that has
// nothing to do for a page (wrong status, missing input). A skipped
// stage produces neither an artifact nor a stage error.
var ErrStageSkipped = errors.New("stage skipped")

// Fetcher retrieves one page. It never returns an error past this
// boundary: failures are carried in the returned page's status field.
type Fetcher interface {
	Fetch(ctx context.Context, task PageTask) CrawledPage
}

// Extractor derives one artifact from a successfully fetched page and
// writes it to disk. Implementations must not panic across this
// boundary; ErrStageSkipped signals a no-op.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, page CrawledPage) (ArtifactRef, error)
}

// AnalyzerInput hands an analyzer the fetched page plus the artifacts
// produced by the extractors that ran before it, keyed by extractor name.
type AnalyzerInput struct {
	Page      CrawledPage
	Artifacts map[string]ArtifactRef
}

// Analyzer inspects a page or its artifacts and reports findings.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, in AnalyzerInput) ([]Finding, error)
}

// RenderResult is the outcome of a headless browser render.
type RenderResult struct {
	FinalURL   string
	StatusCode int
	Title      string
	Body       []byte
}

// Renderer executes a page with JavaScript enabled. It backs both
// headless fetch promotion and screenshot capture.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (RenderResult, error)
	Screenshot(ctx context.Context, rawURL, path string) error
	Close(ctx context.Context) error
}

// Detector decides whether a plain fetch should be promoted to a
// headless render.
type Detector interface {
	NeedsJS(page CrawledPage) bool
}

// RetryPolicy classifies fetch errors and spaces out retry attempts.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// RobotsPolicy reports whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// ScanStore persists the scan output: the crawl metadata document, the
// extraction index, and the analysis report.
type ScanStore interface {
	SaveCrawlMetadata(ctx context.Context, meta CrawlMetadata) (string, error)
	SaveExtractionIndex(ctx context.Context, results []PageResult) (string, error)
	SaveReport(ctx context.Context, meta CrawlMetadata, results []PageResult) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces scan IDs.
type IDGenerator interface {
	NewID() (string, error)
}
