package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pcameron/webscan/internal/scanner"
)

func linksInput(pageURL string, links ...string) scanner.AnalyzerInput {
	return scanner.AnalyzerInput{
		Page: scanner.CrawledPage{
			URL:    pageURL,
			Status: scanner.FetchSuccess,
			Links:  links,
		},
	}
}

func TestLinks_Analyze(t *testing.T) {
	t.Run("classifies broken, restricted, and server errors", func(t *testing.T) {
		// Arrange
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/ok":
				w.WriteHeader(http.StatusOK)
			case "/gone":
				w.WriteHeader(http.StatusNotFound)
			case "/private":
				w.WriteHeader(http.StatusForbidden)
			case "/flaky":
				w.WriteHeader(http.StatusInternalServerError)
			}
		}))
		defer srv.Close()
		a := NewLinks(LinksConfig{
			UserAgent: "webscan-test/1.0",
			RootURL:   srv.URL,
		}, zap.NewNop())
		input := linksInput(srv.URL+"/page",
			srv.URL+"/ok", srv.URL+"/gone", srv.URL+"/private", srv.URL+"/flaky")

		// Act
		findings, err := a.Analyze(context.Background(), input)

		// Assert
		require.NoError(t, err)
		require.Len(t, findings, 3)
		kinds := map[string]scanner.Finding{}
		for _, f := range findings {
			kinds[f.Kind] = f
			require.Equal(t, srv.URL+"/page", f.SourceURL)
		}
		require.Contains(t, kinds, KindBrokenLink)
		require.Contains(t, kinds, KindRestrictedLink)
		require.Contains(t, kinds, KindServerError)
		require.Equal(t, srv.URL+"/gone", kinds[KindBrokenLink].TargetURL)
	})

	t.Run("probes each target once per scan", func(t *testing.T) {
		// Arrange
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()
		a := NewLinks(LinksConfig{RootURL: srv.URL}, zap.NewNop())

		// Act
		for i := 0; i < 3; i++ {
			findings, err := a.Analyze(context.Background(), linksInput(srv.URL+"/page", srv.URL+"/gone"))
			require.NoError(t, err)
			require.Len(t, findings, 1)
		}

		// Assert
		require.EqualValues(t, 1, hits.Load())
	})

	t.Run("falls back to GET when HEAD is rejected", func(t *testing.T) {
		// Arrange
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()
		a := NewLinks(LinksConfig{RootURL: srv.URL}, zap.NewNop())

		// Act
		findings, err := a.Analyze(context.Background(), linksInput(srv.URL+"/page", srv.URL+"/headless"))

		// Assert
		require.NoError(t, err)
		require.Empty(t, findings)
	})

	t.Run("external targets are skipped unless enabled", func(t *testing.T) {
		// Arrange
		var hits atomic.Int32
		external := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer external.Close()

		skipping := NewLinks(LinksConfig{RootURL: "http://site.test"}, zap.NewNop())
		probing := NewLinks(LinksConfig{RootURL: "http://site.test", CheckExternal: true}, zap.NewNop())
		input := linksInput("http://site.test/page", external.URL+"/gone")

		// Act + Assert
		findings, err := skipping.Analyze(context.Background(), input)
		require.NoError(t, err)
		require.Empty(t, findings)
		require.Zero(t, hits.Load())

		findings, err = probing.Analyze(context.Background(), input)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		require.Equal(t, KindBrokenLink, findings[0].Kind)
	})

	t.Run("unreachable host produces a finding", func(t *testing.T) {
		// Arrange
		dead := httptest.NewServer(nil)
		dead.Close()
		a := NewLinks(LinksConfig{RootURL: dead.URL, Timeout: time.Second}, zap.NewNop())

		// Act
		findings, err := a.Analyze(context.Background(), linksInput(dead.URL+"/page", dead.URL+"/x"))

		// Assert
		require.NoError(t, err)
		require.Len(t, findings, 1)
		require.Equal(t, KindUnreachableLink, findings[0].Kind)
	})

	t.Run("page without links yields nothing", func(t *testing.T) {
		a := NewLinks(LinksConfig{RootURL: "http://site.test"}, zap.NewNop())
		findings, err := a.Analyze(context.Background(), linksInput("http://site.test/page"))
		require.NoError(t, err)
		require.Empty(t, findings)
	})
}
