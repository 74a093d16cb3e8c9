// Package postgres implements the row store on PostgreSQL via pgx. It is
// an optional backend for deployments where the CSV file is replaced by a
// shared database; the checkpoint contract is identical.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/market"
)

const (
	createTableSQL = `
		CREATE TABLE IF NOT EXISTS listings (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			city TEXT NOT NULL,
			car_name TEXT NOT NULL,
			price TEXT NOT NULL,
			kilometers_driven TEXT NOT NULL,
			transmission TEXT NOT NULL,
			fuel_type TEXT NOT NULL,
			manufacturing_year TEXT NOT NULL,
			number_of_owners TEXT NOT NULL,
			color TEXT NOT NULL,
			car_available_at TEXT NOT NULL,
			insurance TEXT NOT NULL,
			registration TEXT NOT NULL,
			url TEXT NOT NULL,
			harvested_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`

	insertRowSQL = `
		INSERT INTO listings (
			city, car_name, price, kilometers_driven, transmission,
			fuel_type, manufacturing_year, number_of_owners, color,
			car_available_at, insurance, registration, url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`

	completedCitiesSQL = `SELECT DISTINCT lower(btrim(city)) FROM listings;`

	// undefined_table; a store that does not exist yet is not an error.
	pgUndefinedTable = "42P01"
)

// DB is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Store persists harvest rows in a listings table.
type Store struct {
	db     DB
	logger *zap.Logger
}

// New creates a Store over an existing pool or mock.
func New(db DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Connect opens a pgx pool for dsn and ensures the schema exists.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	s := New(pool, logger)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the listings table when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("ensure listings table: %w", err)
	}
	return nil
}

// Append inserts the batch inside a single transaction so a failure
// leaves no partial batch behind.
func (s *Store) Append(ctx context.Context, rows []market.Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}

	for _, row := range rows {
		record := row.Record()
		args := make([]any, len(record))
		for i, v := range record {
			args[i] = v
		}
		if _, err := tx.Exec(ctx, insertRowSQL, args...); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Warn("rollback failed", zap.Error(rbErr))
			}
			return fmt.Errorf("insert listing row: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// CompletedCities returns the distinct normalized city values present in
// the listings table. A missing table reads as an empty set.
func (s *Store) CompletedCities(ctx context.Context) (map[string]struct{}, error) {
	done := make(map[string]struct{})

	rows, err := s.db.Query(ctx, completedCitiesSQL)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			return done, nil
		}
		s.logger.Warn("completed-cities query failed, assuming empty", zap.Error(err))
		return done, nil
	}
	defer rows.Close()

	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return done, fmt.Errorf("scan completed city: %w", err)
		}
		if city != "" {
			done[city] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return done, fmt.Errorf("iterate completed cities: %w", err)
	}
	return done, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}
