package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pressfeed/ingestor/internal/consumer"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	s := New(":0", func() consumer.Stats { return consumer.Stats{} }, zap.NewNop())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStatsSnapshot(t *testing.T) {
	t.Parallel()

	s := New(":0", func() consumer.Stats {
		return consumer.Stats{Processed: 7, Successful: 5, Failed: 1, Duplicates: 1, Cached: 2, ConcurrentPeak: 4}
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got consumer.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 7, got.Processed)
	assert.Equal(t, 2, got.Cached)
	assert.Equal(t, 4, got.ConcurrentPeak)
}

func TestMetricsEndpointMounted(t *testing.T) {
	t.Parallel()

	s := New(":0", func() consumer.Stats { return consumer.Stats{} }, zap.NewNop())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
