package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/market"
	"github.com/marketharvest/carharvest/internal/progress"
	"github.com/marketharvest/carharvest/internal/store"
)

// SchedulerConfig tunes the per-city extraction pool.
type SchedulerConfig struct {
	// PoolWidth is the number of concurrent extraction workers.
	PoolWidth int
	// FlushThreshold is the row count that triggers a checkpoint flush.
	FlushThreshold int
}

// BatchScheduler runs the detail extractor over a city's listings with a
// fixed-width worker pool and flushes completed rows to the store every
// FlushThreshold rows, plus a final partial batch.
//
// Results are consumed in listing order regardless of completion order:
// each listing gets an index-tagged slot its worker fills. The scheduler
// is the single writer to the store; flushes are never concurrent.
type BatchScheduler struct {
	extractor Extractor
	store     store.Store
	emitter   progress.Emitter
	cfg       SchedulerConfig
	logger    *zap.Logger
}

// NewBatchScheduler constructs a scheduler. Zero config fields take the
// defaults: pool width 5, flush threshold 20.
func NewBatchScheduler(extractor Extractor, st store.Store, emitter progress.Emitter, cfg SchedulerConfig, logger *zap.Logger) *BatchScheduler {
	if cfg.PoolWidth <= 0 {
		cfg.PoolWidth = 5
	}
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = 20
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchScheduler{
		extractor: extractor,
		store:     st,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run processes the city's listings. A store append failure aborts
// immediately and propagates: losing a durable write silently is unsafe.
func (s *BatchScheduler) Run(ctx context.Context, runID uuid.UUID, city market.City, listings []market.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	// In-flight results land in per-index slots so consumption below can
	// pair each record with its originating listing positionally.
	slots := make([]chan market.DetailRecord, len(listings))
	for i := range slots {
		slots[i] = make(chan market.DetailRecord, 1)
	}
	jobs := make(chan int)

	var wg sync.WaitGroup
	defer wg.Wait()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	width := s.cfg.PoolWidth
	if width > len(listings) {
		width = len(listings)
	}
	for w := 0; w < width; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				slots[idx] <- s.extractor.Extract(runCtx, listings[idx].DetailURL)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for i := range listings {
			select {
			case jobs <- i:
			case <-runCtx.Done():
				return
			}
		}
	}()

	batch := make([]market.Row, 0, s.cfg.FlushThreshold)
	for i, listing := range listings {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extraction interrupted for %s: %w", city.Key, err)
		}
		var record market.DetailRecord
		select {
		case record = <-slots[i]:
		case <-ctx.Done():
			return fmt.Errorf("extraction interrupted for %s: %w", city.Key, ctx.Err())
		}
		batch = append(batch, market.NewRow(city, listing, record))
		if len(batch) >= s.cfg.FlushThreshold {
			if err := s.flush(ctx, runID, city, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := s.flush(ctx, runID, city, batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *BatchScheduler) flush(ctx context.Context, runID uuid.UUID, city market.City, batch []market.Row) error {
	if err := s.store.Append(ctx, batch); err != nil {
		return fmt.Errorf("checkpoint flush for %s: %w", city.Key, err)
	}
	s.emitter.Emit(progress.Event{
		RunID: runID,
		TS:    time.Now().UTC(),
		Stage: progress.StageBatchFlushed,
		City:  city.Key,
		Rows:  len(batch),
	})
	s.logger.Info("batch flushed",
		zap.String("city", city.Key), zap.Int("rows", len(batch)))
	return nil
}
