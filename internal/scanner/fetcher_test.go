package scanner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// MockRobotsPolicy is a mock implementation of the RobotsPolicy interface.
type MockRobotsPolicy struct {
	mock.Mock
}

func (m *MockRobotsPolicy) Allowed(ctx context.Context, rawURL string) bool {
	args := m.Called(ctx, rawURL)
	return args.Bool(0)
}

// zeroBackoffPolicy wraps the real classification but skips the waits so
// retry tests stay fast.
type zeroBackoffPolicy struct {
	inner RetryPolicy
}

func (p zeroBackoffPolicy) ShouldRetry(err error, attempt int) bool {
	return p.inner.ShouldRetry(err, attempt)
}

func (p zeroBackoffPolicy) Backoff(int) time.Duration { return 0 }

func newTestFetcher(t *testing.T, timeout time.Duration, maxAttempts int, logger *zap.Logger) *CollyFetcher {
	t.Helper()
	f, err := NewCollyFetcher(
		FetcherConfig{
			UserAgent:   "webscan-test/1.0",
			Timeout:     timeout,
			Concurrency: 2,
		},
		zeroBackoffPolicy{inner: NewExponentialRetryPolicy(maxAttempts)},
		nil,
		nil,
		nil,
		logger,
	)
	require.NoError(t, err)
	return f
}

func TestCollyFetcher_Fetch(t *testing.T) {
	t.Run("success extracts title and links", func(t *testing.T) {
		// Arrange
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body>
				<a href="/about">About</a>
				<a href="/about">Dup</a>
				<a href="/logo.png">Logo</a>
				<a href="mailto:x@example.com">Mail</a>
			</body></html>`))
		}))
		defer srv.Close()
		fetcher := newTestFetcher(t, 2*time.Second, 3, zap.NewNop())

		// Act
		page := fetcher.Fetch(context.Background(), PageTask{URL: srv.URL, Depth: 0})

		// Assert
		require.Equal(t, FetchSuccess, page.Status)
		require.Equal(t, http.StatusOK, page.StatusCode)
		require.Equal(t, "Home", page.Title)
		require.Equal(t, []string{srv.URL + "/about"}, page.Links)
		require.Zero(t, page.Retries)
		require.Positive(t, page.Duration)
	})

	t.Run("transient 500 succeeds on retry and logs each retry", func(t *testing.T) {
		// Arrange
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><head><title>Recovered</title></head></html>"))
		}))
		defer srv.Close()
		core, logs := observer.New(zap.WarnLevel)
		fetcher := newTestFetcher(t, 2*time.Second, 3, zap.New(core))

		// Act
		page := fetcher.Fetch(context.Background(), PageTask{URL: srv.URL, Depth: 0})

		// Assert
		require.Equal(t, FetchSuccess, page.Status)
		require.Equal(t, "Recovered", page.Title)
		require.Equal(t, 2, page.Retries)
		require.Equal(t, 2, logs.FilterMessage("fetch retry").Len())
	})

	t.Run("404 is terminal without retries", func(t *testing.T) {
		// Arrange
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.NotFound(w, r)
		}))
		defer srv.Close()
		fetcher := newTestFetcher(t, 2*time.Second, 3, zap.NewNop())

		// Act
		page := fetcher.Fetch(context.Background(), PageTask{URL: srv.URL + "/missing", Depth: 1})

		// Assert
		require.Equal(t, FetchFailed, page.Status)
		require.Equal(t, http.StatusNotFound, page.StatusCode)
		require.Zero(t, page.Retries)
		require.EqualValues(t, 1, hits.Load())
		require.NotEmpty(t, page.Error)
	})

	t.Run("slow server times out twice then succeeds", func(t *testing.T) {
		// Arrange
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) <= 2 {
				time.Sleep(800 * time.Millisecond)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><head><title>Slow</title></head></html>"))
		}))
		defer srv.Close()
		fetcher := newTestFetcher(t, 200*time.Millisecond, 3, zap.NewNop())

		// Act
		page := fetcher.Fetch(context.Background(), PageTask{URL: srv.URL, Depth: 0})

		// Assert
		require.Equal(t, FetchSuccess, page.Status)
		require.Equal(t, 2, page.Retries)
		// Duration covers only the final, fast attempt.
		require.Less(t, page.Duration, 800*time.Millisecond)
	})

	t.Run("exhausted timeout budget reports FetchTimeout", func(t *testing.T) {
		// Arrange
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(800 * time.Millisecond)
		}))
		defer srv.Close()
		fetcher := newTestFetcher(t, 100*time.Millisecond, 2, zap.NewNop())

		// Act
		page := fetcher.Fetch(context.Background(), PageTask{URL: srv.URL, Depth: 0})

		// Assert
		require.Equal(t, FetchTimeout, page.Status)
		require.Equal(t, 1, page.Retries)
		require.NotEmpty(t, page.Error)
	})

	t.Run("robots disallow skips without fetching", func(t *testing.T) {
		// Arrange
		robots := new(MockRobotsPolicy)
		robots.On("Allowed", mock.Anything, "http://example.com/private").Return(false)
		f, err := NewCollyFetcher(
			FetcherConfig{UserAgent: "webscan-test/1.0", Timeout: time.Second, Concurrency: 1},
			NewExponentialRetryPolicy(1),
			robots,
			nil,
			nil,
			zap.NewNop(),
		)
		require.NoError(t, err)

		// Act
		page := f.Fetch(context.Background(), PageTask{URL: "http://example.com/private"})

		// Assert
		require.Equal(t, FetchSkipped, page.Status)
		require.Equal(t, "disallowed by robots.txt", page.Error)
		robots.AssertExpectations(t)
	})

	t.Run("non-html body yields no links", func(t *testing.T) {
		// Arrange
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"a":"<a href='/x'>not html</a>"}`))
		}))
		defer srv.Close()
		fetcher := newTestFetcher(t, time.Second, 1, zap.NewNop())

		// Act
		page := fetcher.Fetch(context.Background(), PageTask{URL: srv.URL + "/data", Depth: 0})

		// Assert
		require.Equal(t, FetchSuccess, page.Status)
		require.Empty(t, page.Links)
		require.Empty(t, page.Title)
	})
}
