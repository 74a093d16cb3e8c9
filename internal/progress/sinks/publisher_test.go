package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/progress"
	"github.com/marketharvest/carharvest/internal/publisher/memory"
)

func TestPublisherSinkForwardsTerminalEvents(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	s := NewPublisherSink(pub, "harvest-events", zap.NewNop())

	runID := uuid.New()
	ts := time.Now().UTC()
	require.NoError(t, s.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: ts, Stage: progress.StageRunStart},
		{RunID: runID, TS: ts, Stage: progress.StageCityStart, City: "mumbai"},
		{RunID: runID, TS: ts, Stage: progress.StageBatchFlushed, City: "mumbai", Rows: 20},
		{RunID: runID, TS: ts, Stage: progress.StageCityDone, City: "mumbai", Rows: 45},
		{RunID: runID, TS: ts, Stage: progress.StageRunDone},
	}))

	msgs := pub.Messages()
	require.Len(t, msgs, 2, "only terminal events are forwarded")
	assert.Equal(t, "harvest-events", msgs[0].Topic)

	payload, ok := msgs[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, runID.String(), payload["run_id"])
	assert.Equal(t, "CITY_DONE", payload["stage"])
	assert.Equal(t, "mumbai", payload["city"])
	assert.Equal(t, 45, payload["rows"])
}
