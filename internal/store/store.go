// Package store persists run output to SQLite. It records sampled
// capability values and pool provenance per run, so results survive
// the process and later runs can be compared against earlier ones.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tellus/internal/pool"
	"github.com/roach88/tellus/internal/unit"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for run output.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun records a new run and returns its id for subsequent writes.
func (s *Store) BeginRun(ctx context.Context, name string, startDate, endDate float64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (name, start_date, end_date)
		VALUES (?, ?, ?)
	`, name, startDate, endDate)
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// WriteSample records one sampled capability value for a run.
// Uses ON CONFLICT DO NOTHING for idempotency - a replay that revisits
// a date writes the same row and is silently ignored.
func (s *Store) WriteSample(ctx context.Context, runID int64, date float64, capability string, v unit.Value) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO samples (run_id, date, capability, value, units)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, runID, date, capability, v.Magnitude(), v.Unit().String())
	if err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	return nil
}

// WriteProvenance records a tracked pool's source fractions at a date,
// one row per source. Untracked pools write nothing.
func (s *Store) WriteProvenance(ctx context.Context, runID int64, date float64, p pool.Pool) error {
	if !p.Tracking() {
		return nil
	}
	for _, source := range p.Sources() {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO pool_provenance
			(run_id, date, pool_name, pool_value, pool_units, source_name, source_fraction)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`,
			runID,
			date,
			p.Name(),
			p.Value().Magnitude(),
			p.Value().Unit().String(),
			source,
			p.Fraction(source),
		)
		if err != nil {
			return fmt.Errorf("write provenance: %w", err)
		}
	}
	return nil
}

// Sample is one stored capability value.
type Sample struct {
	Date  float64
	Value float64
	Units string
}

// Samples reads the stored values of one capability for a run, in
// date order.
func (s *Store) Samples(ctx context.Context, runID int64, capability string) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, value, units FROM samples
		WHERE run_id = ? AND capability = ?
		ORDER BY date
	`, runID, capability)
	if err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var sm Sample
		if err := rows.Scan(&sm.Date, &sm.Value, &sm.Units); err != nil {
			return nil, fmt.Errorf("read samples: %w", err)
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	return out, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}
