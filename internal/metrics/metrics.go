// Package metrics exposes Prometheus collectors for the harvester's
// extraction layer. Run and city level metrics live in the progress
// Prometheus sink; these cover the per-page details that never surface
// as progress events.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detailPagesTotal *prometheus.CounterVec
	fieldMissesTotal *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		detailPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_detail_pages_total",
				Help: "Detail pages processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		fieldMissesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_field_misses_total",
				Help: "Detail fields that fell back to the sentinel, labeled by field.",
			},
			[]string{"field"},
		)
	})
}

// ObserveDetailPage records one processed detail page.
func ObserveDetailPage(outcome string) {
	if detailPagesTotal != nil {
		detailPagesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveFieldMiss records one field lookup that used the sentinel.
func ObserveFieldMiss(field string) {
	if fieldMissesTotal != nil {
		fieldMissesTotal.WithLabelValues(field).Inc()
	}
}
