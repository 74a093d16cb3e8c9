package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/progress"
	"github.com/marketharvest/carharvest/internal/progress/sinks"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(sinks.NewStatusSink(), prometheus.NewRegistry(), zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestProgressServesSnapshot(t *testing.T) {
	t.Parallel()

	status := sinks.NewStatusSink()
	runID := uuid.New()
	now := time.Now().UTC()
	err := status.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart},
		{RunID: runID, TS: now, Stage: progress.StageCityStart, City: "mumbai"},
		{RunID: runID, TS: now, Stage: progress.StageCityDiscovered, City: "mumbai", Listings: 12},
		{RunID: runID, TS: now, Stage: progress.StageBatchFlushed, City: "mumbai", Rows: 12},
		{RunID: runID, TS: now, Stage: progress.StageCityDone, City: "mumbai", Listings: 12, Rows: 12},
	})
	require.NoError(t, err)

	srv := NewServer(status, prometheus.NewRegistry(), zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap sinks.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, runID.String(), snap.RunID)
	assert.Equal(t, 1, snap.CitiesDone)
	assert.Equal(t, 12, snap.RowsWritten)
	require.Len(t, snap.Cities, 1)
	assert.Equal(t, sinks.CityDone, snap.Cities[0].Status)
}

func TestProgressWithoutStatusSource(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, prometheus.NewRegistry(), zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "harvester_test_total"})
	require.NoError(t, reg.Register(counter))
	counter.Inc()

	srv := NewServer(sinks.NewStatusSink(), reg, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "harvester_test_total 1")
}
