// Package analyzer contains the per-page finding producers: broken-link
// probing, grammar checks over extracted text, and OCR of screenshot
// artifacts. Analyzers consume extractor output and never mutate pages.
package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/pcameron/webscan/internal/scanner"
)

// Finding kinds emitted by the link analyzer.
const (
	KindBrokenLink      = "broken_link"
	KindRestrictedLink  = "restricted_link"
	KindServerError     = "server_error"
	KindUnreachableLink = "unreachable_link"
)

// LinksConfig controls the link analyzer.
type LinksConfig struct {
	UserAgent     string
	Timeout       time.Duration
	Parallelism   int64
	CheckExternal bool
	RootURL       string
}

// Links probes every link found on a page and reports targets that are
// broken, restricted, or unreachable. Probe outcomes are cached per
// scan so each target is requested at most once.
type Links struct {
	cfg    LinksConfig
	client *http.Client
	sem    *semaphore.Weighted
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]probeOutcome
}

type probeOutcome struct {
	statusCode int
	err        error
}

// NewLinks builds a link analyzer.
func NewLinks(cfg LinksConfig, logger *zap.Logger) *Links {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Links{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sem:    semaphore.NewWeighted(cfg.Parallelism),
		logger: logger,
		cache:  make(map[string]probeOutcome),
	}
}

// Name implements scanner.Analyzer.
func (a *Links) Name() string { return "links" }

// Analyze probes the page's outbound links concurrently and converts
// failures into findings.
func (a *Links) Analyze(ctx context.Context, input scanner.AnalyzerInput) ([]scanner.Finding, error) {
	page := input.Page
	if len(page.Links) == 0 {
		return nil, nil
	}

	type probed struct {
		target  string
		outcome probeOutcome
	}

	results := make([]probed, len(page.Links))
	var wg sync.WaitGroup
	for i, link := range page.Links {
		if !a.cfg.CheckExternal && !scanner.SameOrigin(link, a.cfg.RootURL) {
			results[i] = probed{target: link, outcome: probeOutcome{statusCode: -1}}
			continue
		}
		wg.Add(1)
		go func(i int, link string) {
			defer wg.Done()
			results[i] = probed{target: link, outcome: a.probe(ctx, link)}
		}(i, link)
	}
	wg.Wait()

	var findings []scanner.Finding
	for _, r := range results {
		if r.target == "" || r.outcome.statusCode == -1 {
			continue
		}
		if f, ok := a.classify(page.URL, r.target, r.outcome); ok {
			findings = append(findings, f)
		}
	}
	return findings, nil
}

// probe requests the target once per scan, caching the outcome. It
// issues a HEAD first and falls back to GET when the server rejects
// HEAD.
func (a *Links) probe(ctx context.Context, target string) probeOutcome {
	a.mu.Lock()
	if cached, ok := a.cache[target]; ok {
		a.mu.Unlock()
		return cached
	}
	a.mu.Unlock()

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return probeOutcome{err: err}
	}
	defer a.sem.Release(1)

	outcome := a.request(ctx, http.MethodHead, target)
	if outcome.err == nil && outcome.statusCode == http.StatusMethodNotAllowed {
		outcome = a.request(ctx, http.MethodGet, target)
	}

	a.mu.Lock()
	a.cache[target] = outcome
	a.mu.Unlock()
	return outcome
}

func (a *Links) request(ctx context.Context, method, target string) probeOutcome {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return probeOutcome{err: err}
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return probeOutcome{err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			a.logger.Debug("close probe body", zap.Error(cerr))
		}
	}()
	return probeOutcome{statusCode: resp.StatusCode}
}

func (a *Links) classify(sourceURL, target string, outcome probeOutcome) (scanner.Finding, bool) {
	finding := scanner.Finding{
		Analyzer:  a.Name(),
		SourceURL: sourceURL,
		TargetURL: target,
	}

	switch {
	case outcome.err != nil:
		finding.Kind = KindUnreachableLink
		finding.Message = fmt.Sprintf("link target unreachable: %v", outcome.err)
	case outcome.statusCode == http.StatusNotFound || outcome.statusCode == http.StatusGone:
		finding.Kind = KindBrokenLink
		finding.Message = fmt.Sprintf("link target returned %d", outcome.statusCode)
	case outcome.statusCode == http.StatusForbidden || outcome.statusCode == http.StatusUnauthorized:
		finding.Kind = KindRestrictedLink
		finding.Message = fmt.Sprintf("link target requires authorization (%d)", outcome.statusCode)
	case outcome.statusCode >= 500:
		finding.Kind = KindServerError
		finding.Message = fmt.Sprintf("link target returned %d", outcome.statusCode)
	default:
		return scanner.Finding{}, false
	}
	return finding, true
}
