package metric

import "github.com/banshee-data/lom/internal/units"

// Window retains the most recent samples of a metric up to a fixed
// capacity. Older samples are overwritten.
type Window struct {
	kind  Kind
	units units.Unit
	buf   []Sample
	head  int // index of the oldest sample once full
	full  bool
}

// NewWindow returns a window holding at most capacity samples. A capacity
// below 1 is treated as 1.
func NewWindow(kind Kind, unit units.Unit, capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{kind: kind, units: unit, buf: make([]Sample, 0, capacity)}
}

// Push adds a sample, evicting the oldest one when the window is full. The
// values are copied.
func (w *Window) Push(s Sample) {
	s.Values = append([]float64(nil), s.Values...)
	if !w.full {
		w.buf = append(w.buf, s)
		if len(w.buf) == cap(w.buf) {
			w.full = true
		}
		return
	}
	w.buf[w.head] = s
	w.head = (w.head + 1) % len(w.buf)
}

// Len is the number of retained samples.
func (w *Window) Len() int { return len(w.buf) }

// Cap is the window capacity.
func (w *Window) Cap() int { return cap(w.buf) }

// Full reports whether the window holds Cap samples.
func (w *Window) Full() bool { return w.full }

// Samples returns the retained samples from oldest to newest.
func (w *Window) Samples() []Sample {
	out := make([]Sample, 0, len(w.buf))
	for i := 0; i < len(w.buf); i++ {
		s := w.buf[(w.head+i)%len(w.buf)]
		out = append(out, Sample{Time: s.Time, Values: append([]float64(nil), s.Values...)})
	}
	return out
}

// Series copies the retained samples into a new series.
func (w *Window) Series() *Series {
	s := NewSeries(w.kind, w.units, 0)
	s.Grow(len(w.buf))
	for _, sample := range w.Samples() {
		// Window samples come from an ordered series so this cannot fail.
		_ = s.Append(sample)
	}
	return s
}
