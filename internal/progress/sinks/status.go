package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/marketharvest/carharvest/internal/progress"
)

// CityStatus is the lifecycle state of one city within the current run.
type CityStatus string

// City lifecycle states surfaced by the status API.
const (
	CityDiscovering CityStatus = "discovering"
	CityExtracting  CityStatus = "extracting"
	CityDone        CityStatus = "done"
	CityFailed      CityStatus = "failed"
)

// CitySnapshot summarizes one city's progress.
type CitySnapshot struct {
	City     string     `json:"city"`
	Status   CityStatus `json:"status"`
	Listings int        `json:"listings"`
	Rows     int        `json:"rows"`
	Note     string     `json:"note,omitempty"`
}

// Snapshot is the run-level view served by the status API.
type Snapshot struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	Result       string         `json:"result,omitempty"`
	CitiesDone   int            `json:"cities_done"`
	CitiesFailed int            `json:"cities_failed"`
	RowsWritten  int            `json:"rows_written"`
	Cities       []CitySnapshot `json:"cities"`
}

// StatusSink folds the event stream into an in-memory snapshot.
type StatusSink struct {
	mu       sync.RWMutex
	snapshot Snapshot
	order    []string
	cities   map[string]*CitySnapshot
}

// NewStatusSink returns an empty status tracker.
func NewStatusSink() *StatusSink {
	return &StatusSink{cities: make(map[string]*CitySnapshot)}
}

// Consume applies the batch to the snapshot.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *StatusSink) apply(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.snapshot = Snapshot{RunID: evt.RunID.String(), StartedAt: evt.TS}
		s.order = nil
		s.cities = make(map[string]*CitySnapshot)
	case progress.StageRunDone:
		ts := evt.TS
		s.snapshot.FinishedAt = &ts
		s.snapshot.Result = "success"
	case progress.StageRunError:
		ts := evt.TS
		s.snapshot.FinishedAt = &ts
		s.snapshot.Result = "error"
	case progress.StageCityStart:
		s.city(evt.City).Status = CityDiscovering
	case progress.StageCityDiscovered:
		c := s.city(evt.City)
		c.Status = CityExtracting
		c.Listings = evt.Listings
	case progress.StageBatchFlushed:
		c := s.city(evt.City)
		c.Rows += evt.Rows
		s.snapshot.RowsWritten += evt.Rows
	case progress.StageCityDone:
		s.city(evt.City).Status = CityDone
		s.snapshot.CitiesDone++
	case progress.StageCityFailed:
		c := s.city(evt.City)
		c.Status = CityFailed
		c.Note = evt.Note
		s.snapshot.CitiesFailed++
	}
}

func (s *StatusSink) city(key string) *CitySnapshot {
	c, ok := s.cities[key]
	if !ok {
		c = &CitySnapshot{City: key}
		s.cities[key] = c
		s.order = append(s.order, key)
	}
	return c
}

// Snapshot returns a copy of the current run view.
func (s *StatusSink) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snapshot
	out.Cities = make([]CitySnapshot, 0, len(s.order))
	for _, key := range s.order {
		out.Cities = append(out.Cities, *s.cities[key])
	}
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
