// Package planner builds the ordered city work queue for a harvest run.
// There is no separate resume pointer: the plan is recomputed from scratch
// each run by subtracting the store's completed cities from the reference
// list, so the store itself is the checkpoint.
package planner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/market"
)

// DefaultPriorityCities is the hand-ordered list of high-value markets
// crawled before the remainder of the reference list.
var DefaultPriorityCities = []string{
	"mumbai", "bangalore", "hyderabad", "pune",
	"delhi", "gurgaon", "gurugram", "noida", "faridabad", "ghaziabad", "meerut",
	"lucknow", "nashik", "nagpur", "kerala", "trivandrum", "patna",
}

// Progress reports which cities already have rows in the store.
type Progress interface {
	CompletedCities(ctx context.Context) (map[string]struct{}, error)
}

// Planner produces the ordered, filtered work queue.
type Planner struct {
	listPath string
	priority []string
	progress Progress
	logger   *zap.Logger
}

// New constructs a Planner. An empty priority list falls back to
// DefaultPriorityCities.
func New(listPath string, priority []string, progress Progress, logger *zap.Logger) *Planner {
	if len(priority) == 0 {
		priority = DefaultPriorityCities
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		listPath: listPath,
		priority: priority,
		progress: progress,
		logger:   logger,
	}
}

// Plan loads the reference list, drops completed cities, and returns the
// priority partition followed by the remainder in reference-list order.
// Priority entries absent from the reference list are silently skipped.
func (p *Planner) Plan(ctx context.Context) ([]market.City, error) {
	list, err := market.LoadCityList(p.listPath)
	if err != nil {
		return nil, err
	}

	completed, err := p.progress.CompletedCities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load completed cities: %w", err)
	}

	inPriority := make(map[string]struct{}, len(p.priority))
	queue := make([]market.City, 0, list.Len())

	for _, raw := range p.priority {
		key := market.NormalizeKey(raw)
		if key == "" {
			continue
		}
		inPriority[key] = struct{}{}
		city, ok := list.City(key)
		if !ok {
			continue
		}
		if _, done := completed[key]; done {
			continue
		}
		queue = append(queue, city)
	}

	for _, key := range list.Keys() {
		if _, prioritized := inPriority[key]; prioritized {
			continue
		}
		if _, done := completed[key]; done {
			continue
		}
		city, _ := list.City(key)
		queue = append(queue, city)
	}

	p.logger.Info("harvest plan built",
		zap.Int("candidates", list.Len()),
		zap.Int("completed", len(completed)),
		zap.Int("queued", len(queue)),
	)
	return queue, nil
}
