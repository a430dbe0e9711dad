package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServerEndpoints(t *testing.T) {
	srv := NewServer("127.0.0.1:0", zap.NewNop())

	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "ok", rec.Body.String())
	})

	t.Run("status reflects the latest snapshot", func(t *testing.T) {
		srv.Update(Snapshot{
			ScanID:    "scan-0001",
			RootURL:   "https://example.com",
			Started:   time.Unix(1700000000, 0).UTC(),
			PagesDone: 7,
			Running:   true,
		})

		rec := httptest.NewRecorder()
		srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var snapshot Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
		require.Equal(t, "scan-0001", snapshot.ScanID)
		require.Equal(t, 7, snapshot.PagesDone)
		require.True(t, snapshot.Running)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "go_goroutines")
	})
}
