package db

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/monitoring"
	"github.com/banshee-data/lom/internal/units"
)

func init() {
	monitoring.SetLogger(nil)
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "lom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func pistonSeries(t *testing.T) *metric.Series {
	t.Helper()
	s := metric.NewSeries(metric.SegmentPiston, units.Meter, 7)
	for i := 0; i < 20; i++ {
		v := make([]float64, 7)
		for j := range v {
			v[j] = float64(i*7+j) * 1e-9
		}
		v[0] = 0.1 + 0.2
		v[6] = math.Copysign(0, -1)
		require.NoError(t, s.AppendValues(float64(i)*0.002, v))
	}
	return s
}

func TestOpen_Pragmas(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
	var timeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestMigrations(t *testing.T) {
	t.Parallel()

	latest, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), latest)

	db, err := OpenDB(filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	defer db.Close()

	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp())
	require.NoError(t, db.MigrateUp(), "second run is a no-op")
	v, dirty, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, latest, v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateDown())
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'runs'`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestSeriesRoundTrip(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	created := time.Unix(1700000000, 123)
	require.NoError(t, db.CreateRun(ctx, Run{ID: "run-1", Source: "rbm.csv", Created: created}))

	want := pistonSeries(t)
	require.NoError(t, db.InsertSeries(ctx, "run-1", want))

	got, err := db.LoadSeries(ctx, "run-1", metric.SegmentPiston)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
	assert.Equal(t, units.Meter, got.Units())
	assert.True(t, math.Signbit(got.Value(0, 6)))

	_, err = db.LoadSeries(ctx, "run-1", metric.TipTilt)
	assert.ErrorIs(t, err, ErrNotFound)

	err = db.InsertSeries(ctx, "run-1", want)
	assert.Error(t, err, "one series per kind and run")

	err = db.InsertSeries(ctx, "missing-run", want)
	assert.Error(t, err, "foreign key on runs")
}

func TestListRunsAndDelete(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateRun(ctx, Run{ID: "old", Created: time.Unix(100, 0)}))
	require.NoError(t, db.CreateRun(ctx, Run{ID: "new", Source: "s3://bucket/rbm.csv", Created: time.Unix(200, 0)}))
	require.NoError(t, db.InsertSeries(ctx, "new", pistonSeries(t)))

	tt := metric.NewSeries(metric.TipTilt, units.Radian, 2)
	require.NoError(t, tt.AppendValues(0, []float64{1, 2}))
	require.NoError(t, db.InsertSeries(ctx, "new", tt))

	runs, err := db.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "s3://bucket/rbm.csv", runs[0].Source)
	assert.Equal(t, time.Unix(200, 0), runs[0].Created)
	assert.Equal(t, []SeriesInfo{
		{Kind: metric.SegmentPiston, Units: units.Meter, Components: 7, Samples: 20},
		{Kind: metric.TipTilt, Units: units.Radian, Components: 2, Samples: 1},
	}, runs[0].Series)
	assert.Equal(t, "old", runs[1].ID)
	assert.Empty(t, runs[1].Series)

	require.NoError(t, db.DeleteRun(ctx, "new"))
	_, err = db.LoadSeries(ctx, "new", metric.TipTilt)
	assert.ErrorIs(t, err, ErrNotFound)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&n))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, db.DeleteRun(ctx, "new"), ErrNotFound)

	assert.Error(t, db.CreateRun(ctx, Run{}))
}
