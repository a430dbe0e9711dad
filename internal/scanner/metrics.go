package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalPagesCrawled tracks the number of pages that completed the fetch pipeline.
	TotalPagesCrawled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webscan_pages_crawled_total",
		Help: "The total number of pages that reached fetch completion.",
	})
	// TotalFetchErrors tracks the number of pages that ended in a terminal fetch failure.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webscan_fetch_errors_total",
		Help: "The total number of pages whose fetch failed or timed out.",
	})
	// TotalFetchRetries tracks the number of retry attempts across all pages.
	TotalFetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webscan_fetch_retries_total",
		Help: "The total number of fetch retry attempts.",
	})
	// TotalLinksDiscovered tracks the number of outbound links extracted from pages.
	TotalLinksDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webscan_links_discovered_total",
		Help: "The total number of outbound links discovered.",
	})
	// TotalStageFailures tracks isolated extractor and analyzer failures.
	TotalStageFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webscan_stage_failures_total",
		Help: "The total number of extractor or analyzer stage failures.",
	})
	// TotalHeadlessRenders tracks pages promoted to a headless render.
	TotalHeadlessRenders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webscan_headless_renders_total",
		Help: "The total number of pages rendered with headless Chrome.",
	})
)
