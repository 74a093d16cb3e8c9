// Package csvstore implements the row store as an append-only CSV file.
// The file doubles as the crawl checkpoint: any row for a city marks that
// city completed on the next run.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/market"
)

// Store appends rows to a CSV file, writing the column header exactly
// once when the file is first created.
type Store struct {
	path   string
	logger *zap.Logger
}

// New returns a Store writing to path. The file is created lazily on the
// first append so that a run that never flushes leaves nothing behind.
func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Append opens the file for append, writes the header if the file is
// empty, then writes every row in column order and flushes once.
func (s *Store) Append(ctx context.Context, rows []market.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("append canceled: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open store %s: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat store %s: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(market.Columns); err != nil {
			return fmt.Errorf("write store header: %w", err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row.Record()); err != nil {
			return fmt.Errorf("write store row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush store rows: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync store %s: %w", s.path, err)
	}
	return nil
}

// CompletedCities scans the City column and returns its distinct values,
// lowercased and trimmed. A missing or unreadable store means "nothing
// completed" so a cold start always works.
func (s *Store) CompletedCities(ctx context.Context) (map[string]struct{}, error) {
	done := make(map[string]struct{})
	if err := ctx.Err(); err != nil {
		return done, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("store unreadable, assuming empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return done, nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return done, nil
	}
	cityIdx := -1
	for i, col := range header {
		if col == "City" {
			cityIdx = i
			break
		}
	}
	if cityIdx < 0 {
		return done, nil
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A torn final row from a killed process is expected;
			// everything read so far still counts.
			s.logger.Warn("store row unreadable, stopping scan",
				zap.String("path", s.path), zap.Error(err))
			break
		}
		if cityIdx >= len(record) {
			continue
		}
		city := strings.ToLower(strings.TrimSpace(record[cityIdx]))
		if city != "" {
			done[city] = struct{}{}
		}
	}
	return done, nil
}

// Close is a no-op; each append opens and closes the file itself.
func (s *Store) Close() error {
	return nil
}
