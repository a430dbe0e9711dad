// Package storage persists scan outputs to a per-scan directory tree:
//
//	<output>/<domain>_<timestamp>/
//	    html/            raw page snapshots
//	    text/            extracted text
//	    screenshots/     full-page captures
//	    metadata/        crawl_metadata.json, extraction_index.json
//	    reports/         analysis_report.json, summary.txt
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/pcameron/webscan/internal/scanner"
)

const (
	htmlDirName        = "html"
	textDirName        = "text"
	screenshotsDirName = "screenshots"
	metadataDirName    = "metadata"
	reportsDirName     = "reports"
)

var invalidDomainChars = regexp.MustCompile(`[^a-zA-Z0-9.-]+`)

// Store writes scan artifacts and documents beneath a single scan
// directory. It implements scanner.ScanStore.
type Store struct {
	scanDir string
	logger  *zap.Logger
}

// NewStore creates the scan directory tree under outputRoot, named
// after the root URL's domain and the scan start time.
func NewStore(outputRoot, rootURL string, clock scanner.Clock, logger *zap.Logger) (*Store, error) {
	domain := sanitizeDomain(rootURL)
	stamp := clock.Now().UTC().Format("20060102_150405")
	scanDir := filepath.Join(outputRoot, fmt.Sprintf("%s_%s", domain, stamp))

	for _, sub := range []string{htmlDirName, textDirName, screenshotsDirName, metadataDirName, reportsDirName} {
		if err := os.MkdirAll(filepath.Join(scanDir, sub), 0o750); err != nil {
			return nil, fmt.Errorf("create scan dir %s: %w", sub, err)
		}
	}

	return &Store{scanDir: scanDir, logger: logger}, nil
}

// ScanDir returns the root of this scan's output tree.
func (s *Store) ScanDir() string { return s.scanDir }

// HTMLDir returns the directory for raw HTML artifacts.
func (s *Store) HTMLDir() string { return filepath.Join(s.scanDir, htmlDirName) }

// TextDir returns the directory for extracted text artifacts.
func (s *Store) TextDir() string { return filepath.Join(s.scanDir, textDirName) }

// ScreenshotsDir returns the directory for screenshot artifacts.
func (s *Store) ScreenshotsDir() string { return filepath.Join(s.scanDir, screenshotsDirName) }

// SaveCrawlMetadata writes the crawl metadata document and returns its path.
func (s *Store) SaveCrawlMetadata(_ context.Context, meta scanner.CrawlMetadata) (string, error) {
	path := filepath.Join(s.scanDir, metadataDirName, "crawl_metadata.json")
	if err := writeJSON(path, meta); err != nil {
		return "", fmt.Errorf("save crawl metadata: %w", err)
	}
	s.logger.Debug("crawl metadata saved", zap.String("path", path))
	return path, nil
}

// indexEntry is one page's slice of the extraction index.
type indexEntry struct {
	URL       string            `json:"url"`
	Depth     int               `json:"depth"`
	Artifacts map[string]string `json:"artifacts"`
}

// SaveExtractionIndex writes the url-to-artifact index and returns its path.
func (s *Store) SaveExtractionIndex(_ context.Context, results []scanner.PageResult) (string, error) {
	entries := make([]indexEntry, 0, len(results))
	for _, res := range results {
		if len(res.Artifacts) == 0 {
			continue
		}
		entry := indexEntry{
			URL:       res.Page.URL,
			Depth:     res.Page.Depth,
			Artifacts: make(map[string]string, len(res.Artifacts)),
		}
		for _, ref := range res.Artifacts {
			entry.Artifacts[ref.Extractor] = ref.Path
		}
		entries = append(entries, entry)
	}

	path := filepath.Join(s.scanDir, metadataDirName, "extraction_index.json")
	if err := writeJSON(path, entries); err != nil {
		return "", fmt.Errorf("save extraction index: %w", err)
	}
	return path, nil
}

// analysisReport is the JSON shape of the findings report.
type analysisReport struct {
	ScanID        string                          `json:"scan_id"`
	RootURL       string                          `json:"root_url"`
	Status        scanner.ScanStatus              `json:"status"`
	TotalFindings int                             `json:"total_findings"`
	ByKind        map[string]int                  `json:"findings_by_kind"`
	ByAnalyzer    map[string]int                  `json:"findings_by_analyzer"`
	Pages         []pageReport                    `json:"pages"`
	StageErrors   map[string][]scanner.StageError `json:"stage_errors,omitempty"`
}

type pageReport struct {
	URL      string            `json:"url"`
	Findings []scanner.Finding `json:"findings"`
}

// SaveReport writes the analysis report and a human-readable summary,
// returning the report path.
func (s *Store) SaveReport(_ context.Context, meta scanner.CrawlMetadata, results []scanner.PageResult) (string, error) {
	report := analysisReport{
		ScanID:     meta.ScanID,
		RootURL:    meta.Job.RootURL,
		Status:     meta.Status,
		ByKind:     make(map[string]int),
		ByAnalyzer: make(map[string]int),
	}

	for _, res := range results {
		if len(res.StageErrors) > 0 {
			if report.StageErrors == nil {
				report.StageErrors = make(map[string][]scanner.StageError)
			}
			report.StageErrors[res.Page.URL] = res.StageErrors
		}
		if len(res.Findings) == 0 {
			continue
		}
		report.TotalFindings += len(res.Findings)
		for _, f := range res.Findings {
			report.ByKind[f.Kind]++
			report.ByAnalyzer[f.Analyzer]++
		}
		report.Pages = append(report.Pages, pageReport{URL: res.Page.URL, Findings: res.Findings})
	}

	path := filepath.Join(s.scanDir, reportsDirName, "analysis_report.json")
	if err := writeJSON(path, report); err != nil {
		return "", fmt.Errorf("save analysis report: %w", err)
	}

	if err := s.writeSummary(meta, report); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) writeSummary(meta scanner.CrawlMetadata, report analysisReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Scan %s (%s)\n", meta.ScanID, meta.Status)
	fmt.Fprintf(&b, "Root URL:       %s\n", meta.Job.RootURL)
	fmt.Fprintf(&b, "Started:        %s\n", meta.Started.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Elapsed:        %s\n", meta.Finished.Sub(meta.Started).Round(1e6))
	fmt.Fprintf(&b, "Pages fetched:  %d ok, %d failed, %d skipped by limits\n",
		meta.Counters.FetchedOK, meta.Counters.FetchedFailed, meta.Counters.SkippedByLimit)
	fmt.Fprintf(&b, "Total findings: %d\n", report.TotalFindings)
	for kind, n := range report.ByKind {
		fmt.Fprintf(&b, "  %-28s %d\n", kind, n)
	}
	if len(meta.Errors) > 0 {
		b.WriteString("Errors:\n")
		for _, e := range meta.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}

	path := filepath.Join(s.scanDir, reportsDirName, "summary.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func sanitizeDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "scan"
	}
	return invalidDomainChars.ReplaceAllString(strings.ToLower(u.Hostname()), "_")
}
