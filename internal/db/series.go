package db

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/units"
)

// ErrNotFound is returned when a run or series does not exist.
var ErrNotFound = errors.New("not found")

// Run describes one stored pipeline run.
type Run struct {
	ID      string
	Source  string
	Created time.Time
}

// SeriesInfo summarises one stored series.
type SeriesInfo struct {
	Kind       metric.Kind
	Units      units.Unit
	Components int
	Samples    int
}

// RunInfo is a run together with the series stored under it.
type RunInfo struct {
	Run
	Series []SeriesInfo
}

// CreateRun records a new run. The ID must be unique.
func (db *DB) CreateRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, source, created_unix) VALUES (?, ?, ?)`,
		run.ID, run.Source, run.Created.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

// InsertSeries stores every sample of s under runID in one transaction.
// A run holds at most one series per kind.
func (db *DB) InsertSeries(ctx context.Context, runID string, s *metric.Series) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	kind := s.Kind().String()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO series (run_id, kind, units, components, samples) VALUES (?, ?, ?, ?, ?)`,
		runID, kind, string(s.Units()), s.Components(), s.Len(),
	); err != nil {
		return fmt.Errorf("insert %s series for run %s: %w", kind, runID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (run_id, kind, seq, time, time_bits, vals) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	buf := make([]byte, 8*s.Components())
	for i := 0; i < s.Len(); i++ {
		t := s.Time(i)
		for j := 0; j < s.Components(); j++ {
			binary.LittleEndian.PutUint64(buf[8*j:], math.Float64bits(s.Value(i, j)))
		}
		if _, err := stmt.ExecContext(ctx, runID, kind, i, t, int64(math.Float64bits(t)), buf); err != nil {
			return fmt.Errorf("insert %s sample %d: %w", kind, i, err)
		}
	}
	return tx.Commit()
}

// LoadSeries reloads the series of kind stored under runID exactly as it
// was inserted.
func (db *DB) LoadSeries(ctx context.Context, runID string, kind metric.Kind) (*metric.Series, error) {
	var (
		unit       string
		components int
		samples    int
	)
	err := db.QueryRowContext(ctx,
		`SELECT units, components, samples FROM series WHERE run_id = ? AND kind = ?`,
		runID, kind.String(),
	).Scan(&unit, &components, &samples)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s series for run %s", ErrNotFound, kind, runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT time_bits, vals FROM samples WHERE run_id = ? AND kind = ? ORDER BY seq`,
		runID, kind.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := metric.NewSeries(kind, units.Unit(unit), components)
	s.Grow(samples)
	values := make([]float64, components)
	for rows.Next() {
		var (
			bits int64
			vals []byte
		)
		if err := rows.Scan(&bits, &vals); err != nil {
			return nil, err
		}
		if len(vals) != 8*components {
			return nil, fmt.Errorf("%s sample at seq %d: %d value bytes, want %d", kind, s.Len(), len(vals), 8*components)
		}
		for j := range values {
			values[j] = math.Float64frombits(binary.LittleEndian.Uint64(vals[8*j:]))
		}
		if err := s.AppendValues(math.Float64frombits(uint64(bits)), values); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// ListRuns returns every run, newest first, with its series.
func (db *DB) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.run_id, r.source, r.created_unix, s.kind, s.units, s.components, s.samples
		FROM runs r LEFT JOIN series s ON s.run_id = r.run_id
		ORDER BY r.created_unix DESC, r.run_id, s.kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			id, source string
			created    int64
			kind, unit sql.NullString
			comps, n   sql.NullInt64
		)
		if err := rows.Scan(&id, &source, &created, &kind, &unit, &comps, &n); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, RunInfo{Run: Run{ID: id, Source: source, Created: time.Unix(0, created)}})
		}
		if !kind.Valid {
			continue
		}
		k, err := metric.ParseKind(kind.String)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", id, err)
		}
		last := &out[len(out)-1]
		last.Series = append(last.Series, SeriesInfo{
			Kind:       k,
			Units:      units.Unit(unit.String),
			Components: int(comps.Int64),
			Samples:    int(n.Int64),
		})
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything stored under it.
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return nil
}
