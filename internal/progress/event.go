// Package progress defines the event stream emitted by a harvest run and
// the hub that fans it out to sinks (logs, Prometheus, publishers, the
// status API).
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart       Stage = "RUN_START"
	StageRunDone        Stage = "RUN_DONE"
	StageRunError       Stage = "RUN_ERROR"
	StageCityStart      Stage = "CITY_START"
	StageCityDiscovered Stage = "CITY_DISCOVERED"
	StageCityDone       Stage = "CITY_DONE"
	StageCityFailed     Stage = "CITY_FAILED"
	StageBatchFlushed   Stage = "BATCH_FLUSHED"
)

// Event captures one milestone of harvester progress.
type Event struct {
	// RunID identifies the harvest run.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage is the milestone type.
	Stage Stage
	// City scopes city and batch events to a normalized city key.
	City string
	// URL is the optional page URL involved.
	URL string
	// Listings carries the discovery count for CITY_DISCOVERED.
	Listings int
	// Rows carries the flushed row count for BATCH_FLUSHED and the
	// total for CITY_DONE.
	Rows int
	// Dur captures elapsed time for terminal city/run events.
	Dur time.Duration
	// Note holds low-volume debug context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageCityStart, StageCityDiscovered, StageCityDone, StageCityFailed, StageBatchFlushed:
		if e.City == "" {
			return fmt.Errorf("%s requires a city", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
