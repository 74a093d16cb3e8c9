// Package store defines the durable row store contract. The store is both
// the harvest's output product and its resumption checkpoint: completed
// cities are derived from its contents, never from a side-channel file.
package store

import (
	"context"

	"github.com/marketharvest/carharvest/internal/market"
)

// Store appends harvested rows durably and reports which cities already
// have rows.
type Store interface {
	// Append durably writes one batch of rows. It is never called
	// concurrently with itself.
	Append(ctx context.Context, rows []market.Row) error
	// CompletedCities returns the set of normalized city keys present in
	// the store. A store that does not exist yet yields an empty set,
	// not an error.
	CompletedCities(ctx context.Context) (map[string]struct{}, error)
	Close() error
}
