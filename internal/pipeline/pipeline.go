package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/monitoring"
	"github.com/banshee-data/lom/internal/optics"
	"github.com/banshee-data/lom/internal/rbm"
	"github.com/banshee-data/lom/internal/segment"
	"github.com/banshee-data/lom/internal/sensitivity"
	"github.com/banshee-data/lom/internal/timeutil"
)

var logf = monitoring.Component("Pipeline")

// DefaultBatchSize is the number of snapshots buffered per batched product.
const DefaultBatchSize = 256

// Options tunes a Pipeline. The zero value is usable.
type Options struct {
	// BatchSize is the number of snapshots per batched matrix product.
	// Zero means DefaultBatchSize.
	BatchSize int

	// Window retains the Window most recent samples of each kind for
	// contemporaneous statistics. Zero disables windowing.
	Window int

	// Workers bounds how many kinds are flushed concurrently. Values
	// below 2 flush kinds one after the other on the calling goroutine.
	Workers int

	// Collector receives run metrics. Nil disables metrics.
	Collector *monitoring.Collector

	// Clock times runs. Nil means the wall clock.
	Clock timeutil.Clock

	// OnSample, when set, is called for each produced sample in time order
	// per kind, as each batch is flushed. w is the kind's window with s
	// already pushed, or nil when windowing is disabled; it is only valid
	// during the call. With Workers > 1 it may be called concurrently for
	// different kinds.
	OnSample func(kind metric.Kind, s metric.Sample, w *metric.Window)
}

// Pipeline applies the matrices of a store to record streams.
type Pipeline struct {
	store *sensitivity.Store
	opts  Options
}

// New returns a pipeline over store.
func New(store *sensitivity.Store, opts Options) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("pipeline requires a sensitivity store")
	}
	if opts.BatchSize < 0 || opts.Window < 0 || opts.Workers < 0 {
		return nil, fmt.Errorf("invalid pipeline options: batch %d, window %d, workers %d", opts.BatchSize, opts.Window, opts.Workers)
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers == 0 {
		opts.Workers = 1
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Pipeline{store: store, opts: opts}, nil
}

// lane accumulates one metric kind during a run.
type lane struct {
	m        *sensitivity.Matrix
	segments segment.Set
	series   *metric.Series
	window   *metric.Window
	buf      []float64 // BatchSize × InputDim staged states
	times    []float64
	n        int
}

func (l *lane) kind() metric.Kind { return l.m.Kind() }

// Run streams src through the matrices of the requested kinds, or of every
// stored kind when none is given.
//
// Kinds missing from the store are listed in Result.Unavailable; Run fails
// with sensitivity.ErrUnknownMetric only when no requested kind is
// available. A record whose timestamp does not strictly increase stops the
// run with an *OrderError. Cancelling ctx stops the run between records.
// In both cases, and on source errors, the samples accumulated so far are
// returned along with the error.
func (p *Pipeline) Run(ctx context.Context, src Source, kinds ...metric.Kind) (*Result, error) {
	start := p.opts.Clock.Now()
	res := &Result{Series: make(map[metric.Kind]*metric.Series)}
	if p.opts.Window > 0 {
		res.windows = make(map[metric.Kind]*metric.Window)
	}

	if len(kinds) == 0 {
		kinds = p.store.Kinds()
	}
	var lanes []*lane
	seen := make(map[metric.Kind]bool, len(kinds))
	for _, k := range kinds {
		if seen[k] {
			continue
		}
		seen[k] = true
		m, err := p.store.Get(k)
		if err != nil {
			res.Unavailable = append(res.Unavailable, k)
			logf("skipping %s: %v", k, err)
			continue
		}
		l := &lane{
			m:        m,
			segments: m.Segments(),
			series:   metric.NewSeries(k, m.Units(), m.OutputDim()),
			buf:      make([]float64, p.opts.BatchSize*m.InputDim()),
			times:    make([]float64, p.opts.BatchSize),
		}
		if p.opts.Window > 0 {
			l.window = metric.NewWindow(k, m.Units(), p.opts.Window)
			res.windows[k] = l.window
		}
		res.Series[k] = l.series
		lanes = append(lanes, l)
	}
	if len(lanes) == 0 {
		return res, fmt.Errorf("%w: none of %v in store", sensitivity.ErrUnknownMetric, kinds)
	}

	runErr := p.stream(ctx, src, lanes, res)
	if err := p.flush(lanes); err != nil && runErr == nil {
		runErr = err
	}

	elapsed := p.opts.Clock.Since(start)
	p.opts.Collector.ObserveRun(elapsed)
	logf("run finished: %d records, %d kinds, %d skips in %v", res.Processed, len(lanes), len(res.Skips), elapsed)
	if runErr != nil {
		logf("run stopped early: %v", runErr)
	}
	return res, runErr
}

func (p *Pipeline) stream(ctx context.Context, src Source, lanes []*lane, res *Result) error {
	it, err := src.Open(ctx)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer it.Close()

	prev := math.Inf(-1)
	staged := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read record %d: %w", res.Processed+1, err)
		}
		if !(rec.Time > prev) {
			return &OrderError{Time: rec.Time, Previous: prev}
		}
		prev = rec.Time
		res.Processed++

		for _, l := range lanes {
			if err := p.stage(l, rec); err != nil {
				res.Skips = append(res.Skips, Skip{Time: rec.Time, Kind: l.kind(), Err: err})
				p.opts.Collector.ObserveSkip(l.kind().String(), skipReason(err))
			}
		}
		staged++
		if staged == p.opts.BatchSize {
			if err := p.flush(lanes); err != nil {
				return err
			}
			staged = 0
		}
	}
}

// stage validates rec for the lane and copies its state vector into the
// next buffer row. A rejected snapshot leaves the buffer untouched.
func (p *Pipeline) stage(l *lane, rec rbm.Record) error {
	if err := rec.Fault(l.segments); err != nil {
		return err
	}
	snap := rec.Snapshot
	if snap == nil {
		return ErrEmptySnapshot
	}
	if err := optics.CheckUnits(l.m, snap); err != nil {
		return err
	}
	dim := l.m.InputDim()
	row := l.buf[l.n*dim : (l.n+1)*dim]
	if err := snap.FillVector(row, l.segments); err != nil {
		return optics.SegmentDimensionError(l.kind(), l.segments, snap, err)
	}
	l.times[l.n] = rec.Time
	l.n++
	return nil
}

// flush computes the buffered samples of every lane.
func (p *Pipeline) flush(lanes []*lane) error {
	if p.opts.Workers < 2 || len(lanes) < 2 {
		for _, l := range lanes {
			if err := p.flushLane(l); err != nil {
				return err
			}
		}
		return nil
	}
	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for _, l := range lanes {
		g.Go(func() error { return p.flushLane(l) })
	}
	return g.Wait()
}

func (p *Pipeline) flushLane(l *lane) error {
	if l.n == 0 {
		return nil
	}
	dim := l.m.InputDim()
	out, err := optics.ApplyBatch(l.m, mat.NewDense(l.n, dim, l.buf[:l.n*dim]))
	if err != nil {
		return fmt.Errorf("flush %s: %w", l.kind(), err)
	}
	l.series.Grow(l.n)
	for i := 0; i < l.n; i++ {
		s := metric.Sample{Time: l.times[i], Values: out.RawRowView(i)}
		if err := l.series.Append(s); err != nil {
			return fmt.Errorf("flush %s: %w", l.kind(), err)
		}
		if l.window != nil {
			l.window.Push(s)
		}
		if p.opts.OnSample != nil {
			p.opts.OnSample(l.kind(), l.series.At(l.series.Len()-1), l.window)
		}
	}
	p.opts.Collector.ObserveSamples(l.kind().String(), l.n)
	p.opts.Collector.ObserveBatch(l.kind().String())
	l.n = 0
	return nil
}
