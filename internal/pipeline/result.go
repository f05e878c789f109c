package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/optics"
	"github.com/banshee-data/lom/internal/rbm"
)

// ErrOutOfOrderInput is returned when a record timestamp does not strictly
// increase.
var ErrOutOfOrderInput = errors.New("out of order input")

// ErrEmptySnapshot is the skip cause of a record without a snapshot.
var ErrEmptySnapshot = errors.New("record has no snapshot")

// OrderError names the offending timestamp and the one before it.
type OrderError struct {
	Time     float64
	Previous float64
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("%v: timestamp %v does not follow %v", ErrOutOfOrderInput, e.Time, e.Previous)
}

func (e *OrderError) Unwrap() error { return ErrOutOfOrderInput }

// Skip records a snapshot rejected for one metric kind.
type Skip struct {
	Time float64
	Kind metric.Kind
	Err  error
}

// Reason is a short label of the skip cause.
func (s Skip) Reason() string {
	return skipReason(s.Err)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, rbm.ErrMissingSegment):
		return "missing_segment"
	case errors.Is(err, rbm.ErrMalformedSegment):
		return "malformed_segment"
	case errors.Is(err, optics.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, optics.ErrUnitMismatch):
		return "unit_mismatch"
	case errors.Is(err, ErrEmptySnapshot):
		return "empty_snapshot"
	default:
		return "other"
	}
}

// Result holds what a run produced. The caller owns every series; the
// pipeline keeps no reference after Run returns.
type Result struct {
	// Series holds one series per available requested kind.
	Series map[metric.Kind]*metric.Series
	// Skips lists rejected snapshots in stream order.
	Skips []Skip
	// Unavailable lists requested kinds without a matrix in the store.
	Unavailable []metric.Kind
	// Processed is the number of records read from the source, skipped or not.
	Processed int

	windows map[metric.Kind]*metric.Window
}

// Window returns the most recent samples of kind at the end of the run, or
// nil when windowing is disabled or the kind was not produced. Use
// Options.OnSample to observe the window while the run progresses.
func (r *Result) Window(kind metric.Kind) *metric.Window {
	return r.windows[kind]
}

// SkippedTimes returns the distinct timestamps with at least one skip, in
// increasing order.
func (r *Result) SkippedTimes() []float64 {
	seen := make(map[float64]struct{}, len(r.Skips))
	var out []float64
	for _, s := range r.Skips {
		if _, ok := seen[s.Time]; ok {
			continue
		}
		seen[s.Time] = struct{}{}
		out = append(out, s.Time)
	}
	sort.Float64s(out)
	return out
}

// SkipsFor returns the skips recorded for kind.
func (r *Result) SkipsFor(kind metric.Kind) []Skip {
	var out []Skip
	for _, s := range r.Skips {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Kinds returns the produced kinds in ascending order.
func (r *Result) Kinds() []metric.Kind {
	out := make([]metric.Kind, 0, len(r.Series))
	for k := range r.Series {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
