package sinks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/progress"
	"github.com/marketharvest/carharvest/internal/publisher"
)

// PublisherSink forwards terminal city and run events to an external
// publisher. Publish failures are logged and swallowed: notification
// delivery must never stall or fail the crawl.
type PublisherSink struct {
	pub    publisher.Publisher
	topic  string
	logger *zap.Logger
}

// NewPublisherSink wires a publisher to the sink interface.
func NewPublisherSink(pub publisher.Publisher, topic string, logger *zap.Logger) *PublisherSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{pub: pub, topic: topic, logger: logger}
}

// Consume publishes the forwardable events in the batch.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageCityDone, progress.StageCityFailed,
			progress.StageRunDone, progress.StageRunError:
		default:
			continue
		}
		payload := map[string]any{
			"run_id":    evt.RunID.String(),
			"stage":     string(evt.Stage),
			"city":      evt.City,
			"rows":      evt.Rows,
			"listings":  evt.Listings,
			"timestamp": evt.TS.UTC().Format(time.RFC3339),
			"note":      evt.Note,
		}
		if _, err := s.pub.Publish(ctx, s.topic, payload); err != nil {
			s.logger.Warn("progress publish failed",
				zap.String("stage", string(evt.Stage)),
				zap.String("city", evt.City),
				zap.Error(err))
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
