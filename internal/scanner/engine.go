package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrRootUnreachable is returned when the scan completes without a
// single successfully fetched page.
var ErrRootUnreachable = errors.New("root page unreachable")

// Engine drives a complete scan: it seeds the frontier with the root
// URL, runs the worker pool, routes each fetched page through the
// dispatcher, aggregates results, and persists the scan outputs.
type Engine struct {
	job        CrawlJob
	fetcher    Fetcher
	dispatcher *Dispatcher
	store      ScanStore
	clock      Clock
	ids        IDGenerator
	logger     *zap.Logger
	progress   func(pagesDone int)
}

// SetProgressFunc registers a callback invoked after each page result
// with the number of pages processed so far. Must be called before Run.
func (e *Engine) SetProgressFunc(fn func(pagesDone int)) {
	e.progress = fn
}

// NewEngine validates the job and assembles an engine. Store may be nil
// to skip persistence.
func NewEngine(
	job CrawlJob,
	fetcher Fetcher,
	dispatcher *Dispatcher,
	store ScanStore,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
) (*Engine, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		job:        job,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		store:      store,
		clock:      clock,
		ids:        ids,
		logger:     logger,
	}, nil
}

// Run executes the scan to completion and returns the aggregated crawl
// metadata. The scan ends when the frontier quiesces, the page ceiling
// is reached, or ctx is canceled; a canceled scan still aggregates and
// persists the pages finished so far.
func (e *Engine) Run(ctx context.Context) (CrawlMetadata, []PageResult, error) {
	scanID, err := e.ids.NewID()
	if err != nil {
		return CrawlMetadata{}, nil, fmt.Errorf("generate scan id: %w", err)
	}

	meta := CrawlMetadata{
		ScanID:  scanID,
		Job:     e.job,
		Started: e.clock.Now(),
	}

	root, err := NormalizeURL(e.job.RootURL, "")
	if err != nil {
		meta.Status = ScanFailed
		meta.Finished = e.clock.Now()
		meta.Errors = append(meta.Errors, err.Error())
		return meta, nil, fmt.Errorf("root url: %w", err)
	}

	e.logger.Info("scan started",
		zap.String("scan_id", scanID),
		zap.String("root", root),
		zap.Int("max_depth", e.job.MaxDepth),
		zap.Int("max_pages", e.job.MaxPages),
		zap.Int("concurrency", e.job.Concurrency),
	)

	frontier := NewFrontier(e.job.MaxDepth, e.job.MaxPages)
	frontier.Enqueue(root, 0, "")

	results := make(chan PageResult, e.job.Concurrency)
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			frontier.Stop()
		case <-watchDone:
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < e.job.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx, frontier, root, results)
		}()
	}
	go func() {
		wg.Wait()
		close(watchDone)
		close(results)
	}()

	var collected []PageResult
	for res := range results {
		e.tally(&meta, res)
		collected = append(collected, res)
		if e.progress != nil {
			e.progress(len(collected))
		}
	}

	meta.Finished = e.clock.Now()
	meta.Counters.Discovered = frontier.Created()
	meta.Counters.SkippedByLimit = frontier.Skipped()

	var scanErr error
	switch {
	case ctx.Err() != nil:
		meta.Status = ScanCanceled
		meta.Errors = append(meta.Errors, ctx.Err().Error())
	case meta.Counters.FetchedOK == 0:
		meta.Status = ScanFailed
		meta.Errors = append(meta.Errors, ErrRootUnreachable.Error())
		scanErr = fmt.Errorf("%w: %s", ErrRootUnreachable, root)
	default:
		meta.Status = ScanCompleted
	}

	if err := e.persist(ctx, meta, collected); err != nil {
		meta.Errors = append(meta.Errors, err.Error())
		if scanErr == nil {
			scanErr = err
		}
	}

	e.logger.Info("scan finished",
		zap.String("scan_id", scanID),
		zap.String("status", string(meta.Status)),
		zap.Int("fetched_ok", meta.Counters.FetchedOK),
		zap.Int("fetched_failed", meta.Counters.FetchedFailed),
		zap.Duration("elapsed", meta.Finished.Sub(meta.Started)),
	)

	return meta, collected, scanErr
}

// worker pulls tasks until the frontier quiesces, fetching each page,
// running the stage pipeline, and feeding newly discovered same-origin
// links back into the frontier.
func (e *Engine) worker(ctx context.Context, frontier *Frontier, root string, results chan<- PageResult) {
	for {
		task, ok := frontier.Dequeue()
		if !ok {
			return
		}

		page := e.fetcher.Fetch(ctx, task)
		page.URL = task.URL
		page.Depth = task.Depth
		TotalPagesCrawled.Inc()

		res := e.dispatcher.Run(ctx, page)
		results <- res

		if page.Status == FetchSuccess {
			for _, link := range page.Links {
				if !SameOrigin(link, root) {
					continue
				}
				frontier.Enqueue(link, task.Depth+1, task.URL)
			}
		}
		frontier.Done()
	}
}

// tally folds one page result into the scan-level counters and summary.
func (e *Engine) tally(meta *CrawlMetadata, res PageResult) {
	page := res.Page
	switch page.Status {
	case FetchSuccess:
		meta.Counters.FetchedOK++
	case FetchSkipped:
		meta.Counters.SkippedByRobots++
	default:
		meta.Counters.FetchedFailed++
	}

	meta.Pages = append(meta.Pages, PageSummary{
		URL:        page.URL,
		Depth:      page.Depth,
		Status:     page.Status,
		StatusCode: page.StatusCode,
		Title:      page.Title,
		LinkCount:  len(page.Links),
		DurationMs: page.Duration.Milliseconds(),
		Retries:    page.Retries,
		Rendered:   page.Rendered,
		Findings:   len(res.Findings),
		Error:      page.Error,
	})
}

// persist writes the scan outputs. Persistence runs even after a
// cancellation so partial scans still leave their metadata behind.
func (e *Engine) persist(ctx context.Context, meta CrawlMetadata, results []PageResult) error {
	if e.store == nil {
		return nil
	}
	saveCtx := context.WithoutCancel(ctx)

	if _, err := e.store.SaveCrawlMetadata(saveCtx, meta); err != nil {
		return fmt.Errorf("save crawl metadata: %w", err)
	}
	if _, err := e.store.SaveExtractionIndex(saveCtx, results); err != nil {
		return fmt.Errorf("save extraction index: %w", err)
	}
	if _, err := e.store.SaveReport(saveCtx, meta, results); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}
