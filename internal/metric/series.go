package metric

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/lom/internal/units"
)

var (
	// ErrOutOfOrder is returned when a sample does not strictly follow the
	// last sample of a series in time.
	ErrOutOfOrder = errors.New("sample timestamp does not strictly increase")
	// ErrComponentCount is returned when a sample has the wrong number of values.
	ErrComponentCount = errors.New("sample component count mismatch")
)

// Sample is one metric vector at one timestamp (seconds).
type Sample struct {
	Time   float64
	Values []float64
}

// Series is the time ordered sequence of samples of a single metric kind.
// Every sample has the same number of components. Values are stored
// row-major, one row per sample.
type Series struct {
	kind       Kind
	units      units.Unit
	components int
	times      []float64
	values     []float64
}

// NewSeries returns an empty series. A components count of 0 is fixed by the
// first appended sample.
func NewSeries(kind Kind, unit units.Unit, components int) *Series {
	return &Series{kind: kind, units: unit, components: components}
}

// Kind is the metric kind of the series.
func (s *Series) Kind() Kind { return s.kind }

// Units is the unit of every value.
func (s *Series) Units() units.Unit { return s.units }

// Components is the number of values per sample.
func (s *Series) Components() int { return s.components }

// Len is the number of samples.
func (s *Series) Len() int { return len(s.times) }

// Grow reserves room for n more samples.
func (s *Series) Grow(n int) {
	if n <= 0 {
		return
	}
	if cap(s.times)-len(s.times) < n {
		t := make([]float64, len(s.times), len(s.times)+n)
		copy(t, s.times)
		s.times = t
	}
	if s.components > 0 && cap(s.values)-len(s.values) < n*s.components {
		v := make([]float64, len(s.values), len(s.values)+n*s.components)
		copy(v, s.values)
		s.values = v
	}
}

// Append adds a sample. The values are copied.
func (s *Series) Append(sample Sample) error {
	return s.AppendValues(sample.Time, sample.Values)
}

// AppendValues adds a sample from its timestamp and values. The values are
// copied.
func (s *Series) AppendValues(t float64, values []float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("%s series: invalid timestamp %v", s.kind, t)
	}
	if n := len(s.times); n > 0 && !(t > s.times[n-1]) {
		return fmt.Errorf("%w: %s series: %v after %v", ErrOutOfOrder, s.kind, t, s.times[n-1])
	}
	if s.components == 0 && len(s.times) == 0 {
		if len(values) == 0 {
			return fmt.Errorf("%w: %s series: empty sample", ErrComponentCount, s.kind)
		}
		s.components = len(values)
	}
	if len(values) != s.components {
		return fmt.Errorf("%w: %s series: got %d, want %d", ErrComponentCount, s.kind, len(values), s.components)
	}
	s.times = append(s.times, t)
	s.values = append(s.values, values...)
	return nil
}

// At returns sample i. Its values are a copy.
func (s *Series) At(i int) Sample {
	return Sample{Time: s.times[i], Values: append([]float64(nil), s.row(i)...)}
}

// Time returns the timestamp of sample i.
func (s *Series) Time(i int) float64 { return s.times[i] }

// Value returns component j of sample i.
func (s *Series) Value(i, j int) float64 { return s.values[i*s.components+j] }

func (s *Series) row(i int) []float64 {
	return s.values[i*s.components : (i+1)*s.components]
}

// Times returns a copy of the timestamps.
func (s *Series) Times() []float64 {
	return append([]float64(nil), s.times...)
}

// Component returns component j of every sample.
func (s *Series) Component(j int) []float64 {
	out := make([]float64, len(s.times))
	for i := range out {
		out[i] = s.values[i*s.components+j]
	}
	return out
}

// Last returns a new series holding the last n samples, or every sample when
// n <= 0 or n exceeds Len.
func (s *Series) Last(n int) *Series {
	start := 0
	if n > 0 && n < len(s.times) {
		start = len(s.times) - n
	}
	out := NewSeries(s.kind, s.units, s.components)
	out.times = append([]float64(nil), s.times[start:]...)
	out.values = append([]float64(nil), s.values[start*s.components:]...)
	return out
}

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	return s.Last(0)
}

// Matrix returns the values as a samples × components matrix, or nil for an
// empty series.
func (s *Series) Matrix() *mat.Dense {
	if len(s.times) == 0 || s.components == 0 {
		return nil
	}
	return mat.NewDense(len(s.times), s.components, append([]float64(nil), s.values...))
}

// Equal reports whether both series carry the same metadata and bit-for-bit
// identical timestamps and values.
func (s *Series) Equal(o *Series) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.kind != o.kind || s.units != o.units || s.components != o.components {
		return false
	}
	if len(s.times) != len(o.times) || len(s.values) != len(o.values) {
		return false
	}
	for i, v := range s.times {
		if math.Float64bits(v) != math.Float64bits(o.times[i]) {
			return false
		}
	}
	for i, v := range s.values {
		if math.Float64bits(v) != math.Float64bits(o.values[i]) {
			return false
		}
	}
	return true
}
