package scanner

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL marks URLs that cannot be normalized: unparsable input
// or non-HTTP(S) schemes. Tasks for such URLs are dropped, not retried.
var ErrInvalidURL = errors.New("invalid url")

// NormalizeURL standardizes a URL so that equivalent spellings dedupe to
// the same string. Relative references are resolved against baseURL (the
// fetching page); pass "" for absolute URLs such as the scan root.
// It lowercases the scheme and host, removes default ports, strips the
// fragment and trailing slashes, and sorts query parameters. The result
// is deterministic and idempotent, which is what the frontier's
// dedupe-once invariant rests on.
func NormalizeURL(rawURL, baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: parse %q: %v", ErrInvalidURL, rawURL, err)
	}

	if baseURL != "" {
		base, err := url.Parse(baseURL)
		if err != nil {
			return "", fmt.Errorf("%w: parse base %q: %v", ErrInvalidURL, baseURL, err)
		}
		u = base.ResolveReference(u)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")

	// Re-encoding sorts query parameters by key.
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// SameOrigin reports whether two URLs share scheme and host. Crawl
// traversal is restricted to the root's origin.
func SameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Scheme, ub.Scheme) && strings.EqualFold(ua.Host, ub.Host)
}

// skipExtensions lists path suffixes that are never crawlable pages.
var skipExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".ico",
	".css", ".js", ".xml", ".json", ".zip", ".tar", ".gz",
	".mp3", ".mp4", ".avi", ".mov", ".webm", ".woff", ".woff2",
	".ttf", ".eot", ".map",
}

// skippableResource reports whether a normalized URL points at a static
// asset rather than a page worth fetching.
func skippableResource(normalizedURL string) bool {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, ext := range skipExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
