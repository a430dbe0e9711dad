package scanner

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// FetcherConfig controls the HTTP fetch pipeline.
type FetcherConfig struct {
	UserAgent    string
	Timeout      time.Duration
	Concurrency  int
	MaxBodyBytes int
	DomainDelay  time.Duration
}

// CollyFetcher fetches pages through a Colly collector, retrying
// transient failures and optionally promoting JS-dependent pages to a
// headless render. It always returns a CrawledPage: fetch errors are
// carried in the status field, never raised past this boundary.
type CollyFetcher struct {
	base     *colly.Collector
	retry    RetryPolicy
	robots   RobotsPolicy
	renderer Renderer
	detector Detector
	logger   *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based Fetcher. Renderer
// and detector may be nil to disable headless promotion.
func NewCollyFetcher(
	cfg FetcherConfig,
	retry RetryPolicy,
	robots RobotsPolicy,
	renderer Renderer,
	detector Detector,
	logger *zap.Logger,
) (*CollyFetcher, error) {
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	// Dedupe lives in the frontier; the collector must permit revisits so
	// retry attempts of the same URL are not rejected.
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       max(1, cfg.Concurrency) * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)
	if cfg.MaxBodyBytes > 0 {
		base.MaxBodySize = cfg.MaxBodyBytes
	}
	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: max(1, cfg.Concurrency),
		Delay:       cfg.DomainDelay,
	}); err != nil {
		return nil, err
	}

	return &CollyFetcher{
		base:     base,
		retry:    retry,
		robots:   robots,
		renderer: renderer,
		detector: detector,
		logger:   logger,
	}, nil
}

// Fetch retrieves the task's URL with the configured timeout and retry
// policy, extracts outbound links, and returns a CrawledPage.
func (f *CollyFetcher) Fetch(ctx context.Context, task PageTask) CrawledPage {
	page := CrawledPage{URL: task.URL, Depth: task.Depth}

	if f.robots != nil && !f.robots.Allowed(ctx, task.URL) {
		page.Status = FetchSkipped
		page.Error = "disallowed by robots.txt"
		return page
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			page.Status = FetchFailed
			page.Error = err.Error()
			page.Retries = attempt
			return page
		}

		start := time.Now()
		res, err := f.attempt(task.URL)
		elapsed := time.Since(start)

		if err == nil {
			page.Status = FetchSuccess
			page.FinalURL = res.finalURL
			page.StatusCode = res.statusCode
			page.ContentType = res.contentType
			page.Body = res.body
			page.Duration = elapsed
			page.Retries = attempt
			f.decorate(&page)
			f.maybePromote(ctx, &page)
			return page
		}

		if f.retry.ShouldRetry(err, attempt) {
			TotalFetchRetries.Inc()
			f.logger.Warn("fetch retry",
				zap.String("url", task.URL),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if !f.sleep(ctx, f.retry.Backoff(attempt)) {
				page.Status = FetchFailed
				page.Error = ctx.Err().Error()
				page.Retries = attempt
				return page
			}
			continue
		}

		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			page.StatusCode = statusErr.Code
		}
		if isTimeout(err) {
			page.Status = FetchTimeout
		} else {
			page.Status = FetchFailed
		}
		page.Error = err.Error()
		page.Duration = elapsed
		page.Retries = attempt
		TotalFetchErrors.Inc()
		return page
	}
}

type attemptResult struct {
	finalURL    string
	statusCode  int
	contentType string
	body        []byte
}

// attempt performs a single fetch through a cloned collector.
func (f *CollyFetcher) attempt(rawURL string) (attemptResult, error) {
	collector := f.base.Clone()

	resultCh := make(chan attemptOutcome, 1)
	var once sync.Once
	send := func(out attemptOutcome) {
		once.Do(func() { resultCh <- out })
	}

	collector.OnResponse(func(r *colly.Response) {
		res := attemptResult{
			finalURL:   r.Request.URL.String(),
			statusCode: r.StatusCode,
			body:       append([]byte{}, r.Body...),
		}
		if r.Headers != nil {
			res.contentType = r.Headers.Get("Content-Type")
		}
		send(attemptOutcome{res: res})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			send(attemptOutcome{err: &HTTPStatusError{Code: r.StatusCode}})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(attemptOutcome{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return attemptResult{}, err
	}
	collector.Wait()

	select {
	case out := <-resultCh:
		return out.res, out.err
	default:
		return attemptResult{}, errors.New("fetch produced no result")
	}
}

type attemptOutcome struct {
	res attemptResult
	err error
}

// decorate fills the title and the normalized outbound link set from the
// page body. Non-HTML content yields an empty link set.
func (f *CollyFetcher) decorate(page *CrawledPage) {
	if !isHTML(page.ContentType) || len(page.Body) == 0 {
		return
	}
	title, links := parseHTML(page.Body, page.FinalURL)
	page.Title = title
	page.Links = links
	TotalLinksDiscovered.Add(float64(len(links)))
}

// maybePromote re-fetches the page through the headless renderer when
// the detector flags it as JS-dependent. A failed render keeps the
// plain fetch result.
func (f *CollyFetcher) maybePromote(ctx context.Context, page *CrawledPage) {
	if f.detector == nil || f.renderer == nil || !f.detector.NeedsJS(*page) {
		return
	}
	rendered, err := f.renderer.Render(ctx, page.FinalURL)
	if err != nil {
		f.logger.Warn("headless promotion failed",
			zap.String("url", page.URL), zap.Error(err))
		return
	}
	TotalHeadlessRenders.Inc()
	page.Rendered = true
	page.Body = rendered.Body
	if rendered.FinalURL != "" {
		page.FinalURL = rendered.FinalURL
	}
	if rendered.StatusCode != 0 {
		page.StatusCode = rendered.StatusCode
	}
	title, links := parseHTML(page.Body, page.FinalURL)
	if title != "" {
		page.Title = title
	}
	page.Links = links
}

func (f *CollyFetcher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// parseHTML extracts the title and the deduplicated, normalized set of
// outbound link candidates from an HTML body.
func parseHTML(body []byte, baseURL string) (string, []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		normalized, err := NormalizeURL(href, baseURL)
		if err != nil {
			return
		}
		if skippableResource(normalized) {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	})

	return title, links
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	type timeouter interface{ Timeout() bool }
	var t timeouter
	return errors.As(err, &t) && t.Timeout()
}
