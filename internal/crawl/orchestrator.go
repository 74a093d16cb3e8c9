package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/market"
	"github.com/marketharvest/carharvest/internal/progress"
)

// OrchestratorConfig tunes the run sequencer.
type OrchestratorConfig struct {
	// BaseURL is the marketplace origin listing pages hang off of.
	BaseURL string
}

// Orchestrator sequences cities strictly one at a time through discovery
// and scheduling. It is the only component aware of the full pipeline.
//
// Per-city failure policy: a page-load failure skips the city — no rows
// were written, so its key never enters the completed set and a future
// run re-attempts it in full. A store write failure halts the whole run.
// There are no retries within a run; cross-run retry is emergent from
// the store-as-checkpoint design.
type Orchestrator struct {
	planner    Planner
	discoverer Discoverer
	scheduler  Scheduler
	emitter    progress.Emitter
	cfg        OrchestratorConfig
	logger     *zap.Logger
}

// NewOrchestrator constructs the run sequencer.
func NewOrchestrator(planner Planner, discoverer Discoverer, scheduler Scheduler, emitter progress.Emitter, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		planner:    planner,
		discoverer: discoverer,
		scheduler:  scheduler,
		emitter:    emitter,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes one harvest pass over the planned city queue.
func (o *Orchestrator) Run(ctx context.Context) error {
	runID := uuid.New()
	start := time.Now()
	o.emit(progress.Event{RunID: runID, Stage: progress.StageRunStart})

	cities, err := o.planner.Plan(ctx)
	if err != nil {
		o.emit(progress.Event{RunID: runID, Stage: progress.StageRunError, Note: err.Error()})
		return fmt.Errorf("plan run: %w", err)
	}
	o.logger.Info("harvest run starting",
		zap.String("run_id", runID.String()), zap.Int("cities", len(cities)))

	for _, city := range cities {
		if err := ctx.Err(); err != nil {
			o.emit(progress.Event{RunID: runID, Stage: progress.StageRunError, Note: err.Error()})
			return fmt.Errorf("run interrupted: %w", err)
		}
		if err := o.runCity(ctx, runID, city); err != nil {
			o.emit(progress.Event{
				RunID: runID,
				Stage: progress.StageRunError,
				Dur:   time.Since(start),
				Note:  err.Error(),
			})
			return err
		}
	}

	o.emit(progress.Event{RunID: runID, Stage: progress.StageRunDone, Dur: time.Since(start)})
	o.logger.Info("harvest run finished",
		zap.String("run_id", runID.String()), zap.Duration("dur", time.Since(start)))
	return nil
}

// runCity takes one city through Discovering → Extracting → Done, or
// Discovering → Failed. Only store write failures return an error.
func (o *Orchestrator) runCity(ctx context.Context, runID uuid.UUID, city market.City) error {
	start := time.Now()
	pageURL := city.ListingPageURL(o.cfg.BaseURL)
	o.emit(progress.Event{RunID: runID, Stage: progress.StageCityStart, City: city.Key, URL: pageURL})
	o.logger.Info("city discovery", zap.String("city", city.Key), zap.String("url", pageURL))

	listings, err := o.discoverer.Discover(ctx, pageURL)
	if err != nil {
		if !errors.Is(err, ErrPageLoad) {
			// Unexpected discovery faults degrade the same way: skip,
			// never mark completed, retry next run.
			o.logger.Error("discovery failed with unexpected error",
				zap.String("city", city.Key), zap.Error(err))
		} else {
			o.logger.Warn("city listing page failed to load",
				zap.String("city", city.Key), zap.Error(err))
		}
		o.emit(progress.Event{
			RunID: runID,
			Stage: progress.StageCityFailed,
			City:  city.Key,
			URL:   pageURL,
			Dur:   time.Since(start),
			Note:  err.Error(),
		})
		return nil
	}
	o.emit(progress.Event{
		RunID:    runID,
		Stage:    progress.StageCityDiscovered,
		City:     city.Key,
		URL:      pageURL,
		Listings: len(listings),
	})
	o.logger.Info("city discovered",
		zap.String("city", city.Key), zap.Int("listings", len(listings)))

	if err := o.scheduler.Run(ctx, runID, city, listings); err != nil {
		o.emit(progress.Event{
			RunID: runID,
			Stage: progress.StageCityFailed,
			City:  city.Key,
			Dur:   time.Since(start),
			Note:  err.Error(),
		})
		return fmt.Errorf("city %s: %w", city.Key, err)
	}

	o.emit(progress.Event{
		RunID:    runID,
		Stage:    progress.StageCityDone,
		City:     city.Key,
		Listings: len(listings),
		Rows:     len(listings),
		Dur:      time.Since(start),
	})
	return nil
}

func (o *Orchestrator) emit(evt progress.Event) {
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	o.emitter.Emit(evt)
}
