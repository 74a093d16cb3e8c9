package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketharvest/carharvest/internal/progress"
)

func TestPrometheusSinkCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := uuid.New()
	ts := time.Now().UTC()
	require.NoError(t, s.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: ts, Stage: progress.StageRunStart},
		{RunID: runID, TS: ts, Stage: progress.StageCityDiscovered, City: "mumbai", Listings: 45},
		{RunID: runID, TS: ts, Stage: progress.StageBatchFlushed, City: "mumbai", Rows: 20},
		{RunID: runID, TS: ts, Stage: progress.StageBatchFlushed, City: "mumbai", Rows: 25},
		{RunID: runID, TS: ts, Stage: progress.StageCityDone, City: "mumbai", Rows: 45, Dur: time.Minute},
		{RunID: runID, TS: ts, Stage: progress.StageCityFailed, City: "agra"},
		{RunID: runID, TS: ts, Stage: progress.StageRunDone},
	}))

	assert.Equal(t, float64(1), testutil.ToFloat64(s.runsStarted))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.runsCompleted.WithLabelValues("success")))
	assert.Equal(t, float64(45), testutil.ToFloat64(s.listingsDiscovered))
	assert.Equal(t, float64(45), testutil.ToFloat64(s.rowsWritten))
	assert.Equal(t, float64(2), testutil.ToFloat64(s.batchesFlushed))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.citiesCompleted.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.citiesCompleted.WithLabelValues("failed")))
}

func TestPrometheusSinkDoubleRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
