package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marketharvest/carharvest/internal/progress"
)

// PrometheusSink exports run and city progress via Prometheus.
type PrometheusSink struct {
	runsStarted        prometheus.Counter
	runsCompleted      *prometheus.CounterVec
	citiesCompleted    *prometheus.CounterVec
	listingsDiscovered prometheus.Counter
	rowsWritten        prometheus.Counter
	batchesFlushed     prometheus.Counter
	cityDuration       *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against the provided
// registry (the default registerer when nil).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_runs_started_total",
			Help: "Harvest runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_runs_completed_total",
			Help: "Harvest runs completed partitioned by result.",
		}, []string{"result"}),
		citiesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_cities_completed_total",
			Help: "Cities finished partitioned by result.",
		}, []string{"result"}),
		listingsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_listings_discovered_total",
			Help: "Listings discovered across all cities.",
		}),
		rowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_rows_written_total",
			Help: "Rows durably appended to the store.",
		}),
		batchesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_batches_flushed_total",
			Help: "Checkpoint batches flushed to the store.",
		}),
		cityDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_city_duration_seconds",
			Help:    "Wall time per finished city.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.citiesCompleted,
		s.listingsDiscovered,
		s.rowsWritten,
		s.batchesFlushed,
		s.cityDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
	case progress.StageCityDiscovered:
		s.listingsDiscovered.Add(float64(evt.Listings))
	case progress.StageCityDone:
		s.citiesCompleted.WithLabelValues("success").Inc()
		s.observeCity(evt, "success")
	case progress.StageCityFailed:
		s.citiesCompleted.WithLabelValues("failed").Inc()
		s.observeCity(evt, "failed")
	case progress.StageBatchFlushed:
		s.batchesFlushed.Inc()
		s.rowsWritten.Add(float64(evt.Rows))
	}
}

func (s *PrometheusSink) observeCity(evt progress.Event, result string) {
	if evt.Dur > 0 {
		s.cityDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
