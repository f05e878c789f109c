package export

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/lom/internal/db"
	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/timeutil"
)

// SQLiteSink stores series under a fresh run in the database.
type SQLiteSink struct {
	db    *db.DB
	runID string
}

// NewSQLiteSink creates a run with a random id, recording source as its
// origin and the clock's current time as its creation time.
func NewSQLiteSink(ctx context.Context, database *db.DB, source string, clock timeutil.Clock) (*SQLiteSink, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	id := uuid.NewString()
	if err := database.CreateRun(ctx, db.Run{ID: id, Source: source, Created: clock.Now()}); err != nil {
		return nil, err
	}
	logf("created run %s for %s", id, source)
	return &SQLiteSink{db: database, runID: id}, nil
}

// RunID identifies the run the sink writes to.
func (s *SQLiteSink) RunID() string { return s.runID }

// WriteSeries stores each series under the run.
func (s *SQLiteSink) WriteSeries(ctx context.Context, series ...*metric.Series) error {
	for _, ms := range series {
		if err := s.db.InsertSeries(ctx, s.runID, ms); err != nil {
			return err
		}
		logf("stored %d %s samples in run %s", ms.Len(), ms.Kind(), s.runID)
	}
	return nil
}

// SQLiteSource reads the series of one stored run.
type SQLiteSource struct {
	db    *db.DB
	runID string
	kinds []metric.Kind
}

// NewSQLiteSource reads the given kinds of run runID, or every stored kind
// when none is given.
func NewSQLiteSource(database *db.DB, runID string, kinds ...metric.Kind) *SQLiteSource {
	return &SQLiteSource{db: database, runID: runID, kinds: kinds}
}

// ReadSeries loads the run's series in kind order.
func (s *SQLiteSource) ReadSeries(ctx context.Context) ([]*metric.Series, error) {
	kinds := s.kinds
	if len(kinds) == 0 {
		runs, err := s.db.ListRuns(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range runs {
			if r.ID != s.runID {
				continue
			}
			for _, info := range r.Series {
				kinds = append(kinds, info.Kind)
			}
		}
		if len(kinds) == 0 {
			return nil, fmt.Errorf("%w: no series for run %s", db.ErrNotFound, s.runID)
		}
	}
	out := make([]*metric.Series, 0, len(kinds))
	for _, k := range kinds {
		ms, err := s.db.LoadSeries(ctx, s.runID, k)
		if err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	return out, nil
}
