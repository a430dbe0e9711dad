package scanner

import (
	"fmt"
	"time"
)

// FetchStatus represents the terminal outcome of fetching one page.
type FetchStatus string

// Fetch status values recorded on each crawled page.
const (
	FetchSuccess FetchStatus = "success"
	FetchFailed  FetchStatus = "failed"
	FetchTimeout FetchStatus = "timeout"
	FetchSkipped FetchStatus = "skipped"
)

// ScanStatus represents the lifecycle outcome of a whole scan.
type ScanStatus string

// Scan status values persisted in the crawl metadata document.
const (
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
	ScanCanceled  ScanStatus = "canceled"
)

// CrawlJob captures every per-scan configuration knob. It is immutable
// once a scan starts; the engine copies it into the metadata document.
type CrawlJob struct {
	RootURL       string        `json:"root_url"`
	MaxDepth      int           `json:"max_depth"`
	MaxPages      int           `json:"max_pages"`
	Concurrency   int           `json:"concurrency"`
	AllowExternal bool          `json:"allow_external"`
	PageTimeout   time.Duration `json:"page_timeout"`
	MaxRetries    int           `json:"max_retries"`
	UserAgent     string        `json:"user_agent"`
	RespectRobots bool          `json:"respect_robots"`
}

// Validate enforces required values and reasonable limits.
func (j CrawlJob) Validate() error {
	if j.RootURL == "" {
		return fmt.Errorf("root URL must be set")
	}
	if j.MaxDepth < 0 {
		return fmt.Errorf("max depth must be >= 0")
	}
	if j.MaxPages <= 0 {
		return fmt.Errorf("max pages must be > 0")
	}
	if j.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0")
	}
	if j.PageTimeout <= 0 {
		return fmt.Errorf("page timeout must be > 0")
	}
	if j.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be > 0")
	}
	return nil
}

// PageTask is one unit of frontier work: a normalized URL tagged with its
// discovery depth and the page that discovered it ("" for the root).
// Tasks are consumed exactly once and never mutated after creation.
type PageTask struct {
	URL    string
	Depth  int
	Parent string
}

// CrawledPage is the result of fetching one URL. It is produced by a
// Fetcher and immutable once handed to the dispatcher. Errors never
// escape the fetch boundary; they are carried in Status and Error.
type CrawledPage struct {
	URL         string        `json:"url"`
	FinalURL    string        `json:"final_url,omitempty"`
	Depth       int           `json:"depth"`
	Status      FetchStatus   `json:"status"`
	StatusCode  int           `json:"status_code,omitempty"`
	ContentType string        `json:"content_type,omitempty"`
	Title       string        `json:"title,omitempty"`
	Body        []byte        `json:"-"`
	Links       []string      `json:"links,omitempty"`
	Duration    time.Duration `json:"duration"`
	Retries     int           `json:"retries"`
	Rendered    bool          `json:"rendered"`
	Error       string        `json:"error,omitempty"`
}

// ArtifactRef points at an extractor output on disk. Artifacts are
// referenced by path, never embedded in metadata documents.
type ArtifactRef struct {
	Extractor string `json:"extractor"`
	Path      string `json:"path"`
}

// Finding is a single analyzer-produced issue record.
type Finding struct {
	Analyzer  string `json:"analyzer"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	SourceURL string `json:"source_url,omitempty"`
	TargetURL string `json:"target_url,omitempty"`
	Context   string `json:"context,omitempty"`
}

// StageError records an isolated extractor or analyzer failure. A stage
// error never blocks sibling stages or other pages.
type StageError struct {
	Stage string `json:"stage"`
	Name  string `json:"name"`
	Err   string `json:"error"`
}

// PageResult bundles everything produced for one page task: the fetch
// outcome, artifact references, findings, and per-stage errors. One
// result exists per task that reached fetch completion; results are
// appended to the scan, never mutated afterwards.
type PageResult struct {
	Page        CrawledPage   `json:"page"`
	Artifacts   []ArtifactRef `json:"artifacts,omitempty"`
	Findings    []Finding     `json:"findings,omitempty"`
	StageErrors []StageError  `json:"stage_errors,omitempty"`
}

// Counters tracks scan-level page statistics.
type Counters struct {
	Discovered      int `json:"discovered"`
	FetchedOK       int `json:"fetched_ok"`
	FetchedFailed   int `json:"fetched_failed"`
	SkippedByLimit  int `json:"skipped_by_limit"`
	SkippedByRobots int `json:"skipped_by_robots"`
}

// PageSummary is the per-page slice of the crawl metadata document.
type PageSummary struct {
	URL        string      `json:"url"`
	Depth      int         `json:"depth"`
	Status     FetchStatus `json:"status"`
	StatusCode int         `json:"status_code,omitempty"`
	Title      string      `json:"title,omitempty"`
	LinkCount  int         `json:"link_count"`
	DurationMs int64       `json:"duration_ms"`
	Retries    int         `json:"retries"`
	Rendered   bool        `json:"rendered"`
	Findings   int         `json:"findings"`
	Error      string      `json:"error,omitempty"`
}

// CrawlMetadata is the scan-level aggregation. The engine is its only
// writer; it is finalized and persisted once all workers have drained.
type CrawlMetadata struct {
	ScanID   string        `json:"scan_id"`
	Job      CrawlJob      `json:"job"`
	Status   ScanStatus    `json:"status"`
	Started  time.Time     `json:"started_at"`
	Finished time.Time     `json:"finished_at"`
	Counters Counters      `json:"counters"`
	Pages    []PageSummary `json:"pages"`
	Errors   []string      `json:"errors,omitempty"`
}
