package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lom/internal/blob"
	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/monitoring"
	"github.com/banshee-data/lom/internal/optics"
	"github.com/banshee-data/lom/internal/rbm"
	"github.com/banshee-data/lom/internal/segment"
	"github.com/banshee-data/lom/internal/sensitivity"
	"github.com/banshee-data/lom/internal/testutil"
	"github.com/banshee-data/lom/internal/timeutil"
	"github.com/banshee-data/lom/internal/units"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func newStore(t *testing.T) *sensitivity.Store {
	t.Helper()
	piston, err := sensitivity.NewMatrix(sensitivity.Spec{
		Kind:       metric.SegmentPiston,
		InputBasis: units.SI,
		Segments:   segment.Full(segment.M1),
		Rows:       7,
		Cols:       42,
		Data:       testutil.Random(100, 7*42),
	})
	require.NoError(t, err)
	tiptilt, err := sensitivity.NewMatrix(sensitivity.Spec{
		Kind:       metric.TipTilt,
		InputBasis: units.SI,
		Segments:   segment.Full(),
		Rows:       2,
		Cols:       84,
		Data:       testutil.Random(101, 2*84),
	})
	require.NoError(t, err)
	s, err := sensitivity.New(piston, tiptilt)
	require.NoError(t, err)
	return s
}

// records returns n snapshots of all 14 segments sampled at 1 kHz.
func records(t *testing.T, n int) []rbm.Record {
	t.Helper()
	out := make([]rbm.Record, n)
	for i := range out {
		v := testutil.RandomScaled(uint64(i+1), 84, 1e-6)
		snap, err := rbm.FromFlat(v[:42], v[42:])
		require.NoError(t, err)
		out[i] = rbm.Record{Time: float64(i) * 1e-3, Snapshot: snap}
	}
	return out
}

func newPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p, err := New(newStore(t), opts)
	require.NoError(t, err)
	return p
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	t.Parallel()

	recs := records(t, 100)
	recs[49].Snapshot.Delete(segment.MustNew(segment.M1, 3))

	p := newPipeline(t, Options{BatchSize: 16})
	res, err := p.Run(context.Background(), SliceSource(recs), metric.SegmentPiston)
	require.NoError(t, err)

	series := res.Series[metric.SegmentPiston]
	require.NotNil(t, series)
	assert.Equal(t, 99, series.Len())
	assert.Equal(t, 100, res.Processed)
	require.Len(t, res.Skips, 1)
	assert.Equal(t, recs[49].Time, res.Skips[0].Time)
	assert.Equal(t, metric.SegmentPiston, res.Skips[0].Kind)
	assert.ErrorIs(t, res.Skips[0].Err, rbm.ErrMissingSegment)
	assert.ErrorIs(t, res.Skips[0].Err, optics.ErrDimensionMismatch)
	assert.Equal(t, "missing_segment", res.Skips[0].Reason())
	assert.Equal(t, []float64{recs[49].Time}, res.SkippedTimes())
	assert.NotContains(t, series.Times(), recs[49].Time)
}

func TestRun_PerKindSkips(t *testing.T) {
	t.Parallel()

	recs := records(t, 10)
	// An M2 segment only matters to the tip-tilt matrix.
	recs[4].Snapshot.Delete(segment.MustNew(segment.M2, 7))

	p := newPipeline(t, Options{})
	res, err := p.Run(context.Background(), SliceSource(recs))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Series[metric.SegmentPiston].Len())
	assert.Equal(t, 9, res.Series[metric.TipTilt].Len())
	assert.Len(t, res.SkipsFor(metric.TipTilt), 1)
	assert.Empty(t, res.SkipsFor(metric.SegmentPiston))
	assert.Equal(t, []metric.Kind{metric.TipTilt, metric.SegmentPiston}, res.Kinds())
}

func TestRun_MatchesPerSampleApply(t *testing.T) {
	t.Parallel()

	recs := records(t, 75)
	store := newStore(t)
	for _, opts := range []Options{
		{BatchSize: 1},
		{BatchSize: 7},
		{BatchSize: 256},
		{BatchSize: 10, Workers: 4},
	} {
		p, err := New(store, opts)
		require.NoError(t, err)
		res, err := p.Run(context.Background(), SliceSource(recs), metric.TipTilt, metric.SegmentPiston)
		require.NoError(t, err)
		for _, k := range []metric.Kind{metric.TipTilt, metric.SegmentPiston} {
			m, err := store.Get(k)
			require.NoError(t, err)
			series := res.Series[k]
			require.Equal(t, len(recs), series.Len())
			for i, rec := range recs {
				want, err := optics.ApplySnapshot(m, rec.Snapshot)
				require.NoError(t, err)
				got := series.At(i)
				assert.Equal(t, rec.Time, got.Time)
				testutil.AssertClose(t, want, got.Values, 1e-9)
			}
		}
	}
}

func TestRun_OutOfOrder(t *testing.T) {
	t.Parallel()

	recs := records(t, 20)
	recs[12].Time = recs[11].Time

	p := newPipeline(t, Options{BatchSize: 5})
	res, err := p.Run(context.Background(), SliceSource(recs), metric.SegmentPiston)
	require.ErrorIs(t, err, ErrOutOfOrderInput)
	var oe *OrderError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, recs[12].Time, oe.Time)
	assert.Equal(t, recs[11].Time, oe.Previous)
	require.NotNil(t, res)
	assert.Equal(t, 12, res.Series[metric.SegmentPiston].Len())
	assert.Equal(t, 12, res.Processed)

	recs = records(t, 20)
	recs[3].Time = -1
	_, err = p.Run(context.Background(), SliceSource(recs), metric.SegmentPiston)
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, -1.0, oe.Time)

	recs = records(t, 20)
	for i := range recs {
		recs[i].Time -= 1
	}
	res, err = p.Run(context.Background(), SliceSource(recs), metric.SegmentPiston)
	require.NoError(t, err, "negative but increasing times are in order")
	assert.Equal(t, -1.0, res.Series[metric.SegmentPiston].Time(0))

	recs[5].Time = math.NaN()
	_, err = p.Run(context.Background(), SliceSource(recs), metric.SegmentPiston)
	require.ErrorIs(t, err, ErrOutOfOrderInput)

	_, err = p.Run(context.Background(), SliceSource(records(t, 50)), metric.SegmentPiston)
	assert.NoError(t, err)
}

func TestRun_UnknownMetric(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, Options{})
	res, err := p.Run(context.Background(), SliceSource(records(t, 5)), metric.Wavefront, metric.SegmentPiston)
	require.NoError(t, err)
	assert.Equal(t, []metric.Kind{metric.Wavefront}, res.Unavailable)
	assert.Equal(t, 5, res.Series[metric.SegmentPiston].Len())
	_, ok := res.Series[metric.Wavefront]
	assert.False(t, ok)

	res, err = p.Run(context.Background(), SliceSource(records(t, 5)), metric.Wavefront, metric.SegmentTipTilt)
	assert.ErrorIs(t, err, sensitivity.ErrUnknownMetric)
	assert.ElementsMatch(t, []metric.Kind{metric.Wavefront, metric.SegmentTipTilt}, res.Unavailable)
}

func TestRun_Window(t *testing.T) {
	t.Parallel()

	recs := records(t, 40)
	p := newPipeline(t, Options{BatchSize: 6, Window: 10})
	res, err := p.Run(context.Background(), SliceSource(recs), metric.TipTilt)
	require.NoError(t, err)

	w := res.Window(metric.TipTilt)
	require.NotNil(t, w)
	assert.Equal(t, 10, w.Len())
	full := res.Series[metric.TipTilt]
	assert.Equal(t, 40, full.Len())
	assert.True(t, full.Last(10).Equal(w.Series()))
	assert.Nil(t, res.Window(metric.SegmentPiston))

	res, err = newPipeline(t, Options{}).Run(context.Background(), SliceSource(recs), metric.TipTilt)
	require.NoError(t, err)
	assert.Nil(t, res.Window(metric.TipTilt))
}

func TestRun_Cancellation(t *testing.T) {
	t.Parallel()

	recs := records(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := FuncSource(func(context.Context) (Iterator, error) {
		i := 0
		return IteratorFunc(func() (rbm.Record, error) {
			rec := recs[i]
			i++
			if i == 30 {
				cancel()
			}
			return rec, nil
		}), nil
	})

	p := newPipeline(t, Options{BatchSize: 8})
	res, err := p.Run(ctx, src, metric.SegmentPiston)
	require.ErrorIs(t, err, context.Canceled)
	// The record read before cancellation was observed is kept.
	assert.Equal(t, 30, res.Series[metric.SegmentPiston].Len())
	assert.Equal(t, 30, res.Processed)
}

func TestRun_CSVSourceRestartable(t *testing.T) {
	t.Parallel()

	recs := records(t, 25)
	path := filepath.Join(t.TempDir(), "rbm.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, rbm.WriteCSV(f, segment.Full(), recs))
	require.NoError(t, f.Close())

	p := newPipeline(t, Options{BatchSize: 4})
	src := CSVSource{Path: path, Basis: units.SI}
	first, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	for _, k := range first.Kinds() {
		assert.True(t, first.Series[k].Equal(second.Series[k]), k.String())
		assert.Equal(t, 25, first.Series[k].Len())
	}

	inMemory, err := p.Run(context.Background(), SliceSource(recs))
	require.NoError(t, err)
	assert.True(t, inMemory.Series[metric.TipTilt].Equal(first.Series[metric.TipTilt]))

	_, err = p.Run(context.Background(), CSVSource{Path: filepath.Join(t.TempDir(), "missing.csv")})
	assert.Error(t, err)
}

// corruptCSV writes recs as CSV with cells overwritten by edits, keyed by
// record index and then column name.
func corruptCSV(t *testing.T, recs []rbm.Record, edits map[int]map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, rbm.WriteCSV(&buf, segment.Full(), recs))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	header := strings.Split(lines[0], ",")
	for i, cells := range edits {
		row := strings.Split(lines[1+i], ",")
		for col, v := range cells {
			j := slices.Index(header, col)
			require.GreaterOrEqual(t, j, 0, col)
			row[j] = v
		}
		lines[1+i] = strings.Join(row, ",")
	}
	path := filepath.Join(t.TempDir(), "rbm.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestRun_CSVMalformedSegment(t *testing.T) {
	t.Parallel()

	recs := records(t, 100)
	path := corruptCSV(t, recs, map[int]map[string]string{
		49: {"M1S3_Tx": ""},
		69: {"M2S7_Rz": "abc"},
	})

	collector, err := monitoring.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	p := newPipeline(t, Options{BatchSize: 16, Collector: collector})
	res, err := p.Run(context.Background(), CSVSource{Path: path, Basis: units.SI})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Processed)
	assert.Equal(t, 98, res.Series[metric.TipTilt].Len())
	assert.Equal(t, 99, res.Series[metric.SegmentPiston].Len())
	assert.Equal(t, []float64{recs[49].Time, recs[69].Time}, res.SkippedTimes())

	piston := res.SkipsFor(metric.SegmentPiston)
	require.Len(t, piston, 1)
	assert.Equal(t, recs[49].Time, piston[0].Time)
	assert.Equal(t, "malformed_segment", piston[0].Reason())
	var segErr *rbm.SegmentError
	require.ErrorAs(t, piston[0].Err, &segErr)
	assert.Equal(t, segment.MustNew(segment.M1, 3), segErr.Segment)
	assert.Equal(t, 51, segErr.Line)

	assert.Len(t, res.SkipsFor(metric.TipTilt), 2)
	assert.Equal(t, 2.0, promtest.ToFloat64(collector.SamplesSkipped.WithLabelValues(metric.TipTilt.String(), "malformed_segment")))

	clean, err := p.Run(context.Background(), SliceSource(recs))
	require.NoError(t, err)
	for _, k := range res.Kinds() {
		assert.NotContains(t, res.Series[k].Times(), recs[49].Time)
		assert.Equal(t, clean.Series[k].Value(0, 0), res.Series[k].Value(0, 0))
	}
}

func TestRun_CSVUnparseableTimeStops(t *testing.T) {
	t.Parallel()

	recs := records(t, 20)
	path := corruptCSV(t, recs, map[int]map[string]string{10: {"time": "later"}})
	p := newPipeline(t, Options{BatchSize: 4})
	res, err := p.Run(context.Background(), CSVSource{Path: path, Basis: units.SI})
	assert.ErrorContains(t, err, "read record 11")
	assert.Equal(t, 10, res.Processed)
	assert.Equal(t, 10, res.Series[metric.TipTilt].Len())
}

func TestRun_SkipCauses(t *testing.T) {
	t.Parallel()

	recs := records(t, 6)
	recs[1].Snapshot = nil
	recs[2].Snapshot.Basis = units.Basis{Translation: units.Nanometer, Rotation: units.Arcsec}
	recs[3].Snapshot.Basis = units.Basis{}

	reg := prometheus.NewRegistry()
	collector, err := monitoring.NewCollector(reg)
	require.NoError(t, err)
	p := newPipeline(t, Options{Collector: collector, Clock: timeutil.NewSteppingClock(time.Unix(0, 0), time.Millisecond)})
	res, err := p.Run(context.Background(), SliceSource(recs), metric.SegmentPiston)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Series[metric.SegmentPiston].Len())
	require.Len(t, res.Skips, 2)
	assert.ErrorIs(t, res.Skips[0].Err, ErrEmptySnapshot)
	assert.ErrorIs(t, res.Skips[1].Err, optics.ErrUnitMismatch)

	kind := metric.SegmentPiston.String()
	assert.Equal(t, 4.0, promtest.ToFloat64(collector.SamplesProcessed.WithLabelValues(kind)))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.SamplesSkipped.WithLabelValues(kind, "empty_snapshot")))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.SamplesSkipped.WithLabelValues(kind, "unit_mismatch")))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.BatchesFlushed.WithLabelValues(kind)))
}

func TestRun_OnSample(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	got := map[metric.Kind][]float64{}
	windowed := map[metric.Kind][]int{}
	p := newPipeline(t, Options{BatchSize: 3, Workers: 2, Window: 4, OnSample: func(k metric.Kind, s metric.Sample, w *metric.Window) {
		mu.Lock()
		defer mu.Unlock()
		got[k] = append(got[k], s.Time)
		windowed[k] = append(windowed[k], w.Len())
		samples := w.Samples()
		assert.Equal(t, s.Time, samples[len(samples)-1].Time)
	}})
	recs := records(t, 10)
	res, err := p.Run(context.Background(), SliceSource(recs))
	require.NoError(t, err)
	for k, series := range res.Series {
		assert.Equal(t, series.Times(), got[k], k.String())
		assert.Equal(t, []int{1, 2, 3, 4, 4, 4, 4, 4, 4, 4}, windowed[k], k.String())
	}
}

func TestRun_OnSampleWithoutWindow(t *testing.T) {
	t.Parallel()

	calls := 0
	p := newPipeline(t, Options{OnSample: func(k metric.Kind, s metric.Sample, w *metric.Window) {
		calls++
		assert.Nil(t, w)
	}})
	_, err := p.Run(context.Background(), SliceSource(records(t, 5)), metric.TipTilt)
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
}

func TestRun_SourceErrors(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, Options{})
	boom := errors.New("boom")
	_, err := p.Run(context.Background(), FuncSource(func(context.Context) (Iterator, error) { return nil, boom }))
	assert.ErrorIs(t, err, boom)

	recs := records(t, 3)
	src := FuncSource(func(context.Context) (Iterator, error) {
		i := 0
		return IteratorFunc(func() (rbm.Record, error) {
			if i == len(recs) {
				return rbm.Record{}, boom
			}
			i++
			return recs[i-1], nil
		}), nil
	})
	res, err := p.Run(context.Background(), src, metric.TipTilt)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, res.Series[metric.TipTilt].Len())
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Options{})
	assert.Error(t, err)
	_, err = New(newStore(t), Options{BatchSize: -1})
	assert.Error(t, err)
	p, err := New(newStore(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, p.opts.BatchSize)
	assert.Equal(t, 1, p.opts.Workers)
}

func TestRun_BlobSource(t *testing.T) {
	t.Parallel()

	recs := records(t, 12)
	var buf bytes.Buffer
	require.NoError(t, rbm.WriteCSV(&buf, segment.Full(), recs))
	store := blob.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "runs/rbm.csv", &buf, "text/csv"))

	p := newPipeline(t, Options{BatchSize: 5})
	res, err := p.Run(ctx, BlobSource{Store: store, Key: "runs/rbm.csv", Basis: units.SI}, metric.TipTilt)
	require.NoError(t, err)
	want, err := p.Run(ctx, SliceSource(recs), metric.TipTilt)
	require.NoError(t, err)
	assert.True(t, want.Series[metric.TipTilt].Equal(res.Series[metric.TipTilt]))

	_, err = p.Run(ctx, BlobSource{Store: store, Key: "missing.csv"})
	assert.ErrorIs(t, err, blob.ErrNotFound)
}
