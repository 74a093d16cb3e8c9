package crawl

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/market"
	"github.com/marketharvest/carharvest/internal/metrics"
)

// ExtractConfig tunes detail extraction.
type ExtractConfig struct {
	// SettleDelay is how long to let the detail page render before the
	// first field lookup.
	SettleDelay time.Duration
}

// DetailExtractor pulls the ten detail fields off one listing page.
// Every field lookup is independently best-effort: marketplace detail
// pages are inconsistent, and a missing insurance line must not void the
// rest of the record. A session-level fault degrades to an all-sentinel
// record instead of an error.
type DetailExtractor struct {
	renderer Renderer
	cfg      ExtractConfig
	logger   *zap.Logger
}

// NewDetailExtractor constructs an extractor.
func NewDetailExtractor(renderer Renderer, cfg ExtractConfig, logger *zap.Logger) *DetailExtractor {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailExtractor{renderer: renderer, cfg: cfg, logger: logger}
}

// Extract opens a fresh session per URL so a stuck page cannot corrupt
// another worker's extraction, and releases it on every exit path.
func (e *DetailExtractor) Extract(ctx context.Context, detailURL string) market.DetailRecord {
	record := market.NewDetailRecord()

	session, err := e.renderer.NewSession(ctx)
	if err != nil {
		e.logger.Warn("detail session open failed",
			zap.String("url", detailURL), zap.Error(err))
		metrics.ObserveDetailPage("session_error")
		return record
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			e.logger.Warn("detail session close failed",
				zap.String("url", detailURL), zap.Error(cerr))
		}
	}()

	if err := session.Navigate(ctx, detailURL); err != nil {
		e.logger.Warn("detail navigate failed",
			zap.String("url", detailURL), zap.Error(err))
		metrics.ObserveDetailPage("navigate_error")
		return record
	}
	// Let dynamic content render; if the wait is cut short the lookups
	// below still run and simply miss.
	_ = sleepCtx(ctx, e.cfg.SettleDelay)

	misses := 0
	for _, fl := range detailLocators {
		text, err := session.Text(ctx, fl.Locator)
		text = strings.TrimSpace(text)
		if err != nil || text == "" {
			metrics.ObserveFieldMiss(fl.Field)
			misses++
			continue
		}
		record[fl.Field] = text
	}
	if misses == len(detailLocators) {
		metrics.ObserveDetailPage("empty")
	} else {
		metrics.ObserveDetailPage("ok")
	}
	e.logger.Debug("detail extracted",
		zap.String("url", detailURL), zap.Int("field_misses", misses))
	return record
}
