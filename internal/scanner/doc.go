// Package scanner implements the crawl orchestration engine: URL
// normalization, the frontier, the fetch pipeline, and the worker pool
// that drives extraction and analysis per page.
package scanner
