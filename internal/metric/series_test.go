package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lom/internal/units"
)

func pistonSeries(t *testing.T, n int) *Series {
	t.Helper()
	s := NewSeries(SegmentPiston, units.Meter, 7)
	for i := 0; i < n; i++ {
		v := make([]float64, 7)
		for j := range v {
			v[j] = float64(i*10 + j)
		}
		require.NoError(t, s.AppendValues(float64(i)*0.002, v))
	}
	return s
}

func TestSeriesAppend(t *testing.T) {
	t.Parallel()

	s := NewSeries(TipTilt, units.Radian, 2)
	require.NoError(t, s.Append(Sample{Time: 0, Values: []float64{1, 2}}))
	require.NoError(t, s.Append(Sample{Time: 1, Values: []float64{3, 4}}))

	err := s.Append(Sample{Time: 1, Values: []float64{5, 6}})
	assert.ErrorIs(t, err, ErrOutOfOrder)
	err = s.Append(Sample{Time: 0.5, Values: []float64{5, 6}})
	assert.ErrorIs(t, err, ErrOutOfOrder)
	err = s.Append(Sample{Time: 2, Values: []float64{5}})
	assert.ErrorIs(t, err, ErrComponentCount)
	assert.Error(t, s.AppendValues(math.NaN(), []float64{1, 2}))
	assert.Equal(t, 2, s.Len())

	// The series owns a copy of appended values.
	v := []float64{7, 8}
	require.NoError(t, s.AppendValues(3, v))
	v[0] = -1
	assert.Equal(t, 7.0, s.Value(2, 0))
}

func TestSeriesVariableComponents(t *testing.T) {
	t.Parallel()

	s := NewSeries(Wavefront, units.Meter, 0)
	assert.ErrorIs(t, s.AppendValues(0, nil), ErrComponentCount)
	require.NoError(t, s.AppendValues(0, []float64{1, 2, 3}))
	assert.Equal(t, 3, s.Components())
	assert.ErrorIs(t, s.AppendValues(1, []float64{1, 2}), ErrComponentCount)
}

func TestSeriesAccessors(t *testing.T) {
	t.Parallel()

	s := pistonSeries(t, 5)
	assert.Equal(t, SegmentPiston, s.Kind())
	assert.Equal(t, units.Meter, s.Units())
	assert.Equal(t, []float64{0, 0.002, 0.004, 0.006, 0.008}, s.Times())
	assert.Equal(t, []float64{3, 13, 23, 33, 43}, s.Component(3))

	at := s.At(2)
	assert.Equal(t, 0.004, at.Time)
	assert.Equal(t, []float64{20, 21, 22, 23, 24, 25, 26}, at.Values)
	at.Values[0] = 999
	assert.Equal(t, 20.0, s.Value(2, 0))

	last := s.Last(2)
	assert.Equal(t, 2, last.Len())
	assert.Equal(t, 0.006, last.Time(0))
	assert.Equal(t, 5, s.Last(0).Len())
	assert.Equal(t, 5, s.Last(10).Len())

	m := s.Matrix()
	require.NotNil(t, m)
	r, c := m.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 7, c)
	assert.Equal(t, 46.0, m.At(4, 6))
	assert.Nil(t, NewSeries(TipTilt, units.Radian, 2).Matrix())
}

func TestSeriesEqual(t *testing.T) {
	t.Parallel()

	a := pistonSeries(t, 3)
	b := a.Clone()
	assert.True(t, a.Equal(b))
	require.NoError(t, b.AppendValues(1, make([]float64, 7)))
	assert.False(t, a.Equal(b))

	c := NewSeries(SegmentPiston, units.Nanometer, 7)
	assert.False(t, NewSeries(SegmentPiston, units.Meter, 7).Equal(c))
	assert.True(t, (*Series)(nil).Equal(nil))
	assert.False(t, a.Equal(nil))

	// Bitwise comparison distinguishes signed zeros.
	z1 := NewSeries(TipTilt, units.Radian, 2)
	z2 := NewSeries(TipTilt, units.Radian, 2)
	require.NoError(t, z1.AppendValues(0, []float64{0, 0}))
	require.NoError(t, z2.AppendValues(0, []float64{math.Copysign(0, -1), 0}))
	assert.False(t, z1.Equal(z2))
}

func TestWindow(t *testing.T) {
	t.Parallel()

	w := NewWindow(TipTilt, units.Radian, 3)
	assert.Equal(t, 3, w.Cap())
	assert.False(t, w.Full())
	for i := 0; i < 5; i++ {
		w.Push(Sample{Time: float64(i), Values: []float64{float64(i), -float64(i)}})
	}
	assert.True(t, w.Full())
	assert.Equal(t, 3, w.Len())

	samples := w.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, 2.0, samples[0].Time)
	assert.Equal(t, 4.0, samples[2].Time)
	assert.Equal(t, []float64{3, -3}, samples[1].Values)

	s := w.Series()
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{2, 3, 4}, s.Times())
	assert.Equal(t, TipTilt, s.Kind())

	assert.Equal(t, 1, NewWindow(TipTilt, units.Radian, 0).Cap())
	assert.Equal(t, 0, NewWindow(TipTilt, units.Radian, 4).Series().Len())
}
