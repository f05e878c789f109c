package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lom/internal/metric"
)

var (
	// ErrEmptySeries is returned for statistics over a series with no samples.
	ErrEmptySeries = errors.New("empty series")

	// ErrInsufficientSamples is returned when a statistic needs more samples
	// than the series holds, or a sample rate that is not positive.
	ErrInsufficientSamples = errors.New("insufficient samples")
)

// RMS returns the root mean square over every sample and component of s.
func RMS(s *metric.Series) (float64, error) {
	if s == nil || s.Len() == 0 {
		return 0, ErrEmptySeries
	}
	var sum float64
	for j := 0; j < s.Components(); j++ {
		c := s.Component(j)
		sum += floats.Dot(c, c)
	}
	return math.Sqrt(sum / float64(s.Len()*s.Components())), nil
}

// ComponentRMS returns the root mean square of each component of s.
func ComponentRMS(s *metric.Series) ([]float64, error) {
	if s == nil || s.Len() == 0 {
		return nil, ErrEmptySeries
	}
	out := make([]float64, s.Components())
	for j := range out {
		c := s.Component(j)
		out[j] = math.Sqrt(floats.Dot(c, c) / float64(len(c)))
	}
	return out, nil
}

// tail returns the last n samples of s, or all of them when n is 0.
func tail(s *metric.Series, n int) (*metric.Series, error) {
	if s == nil || s.Len() == 0 {
		return nil, ErrEmptySeries
	}
	if n < 0 {
		return nil, fmt.Errorf("invalid sample count %d", n)
	}
	if n > s.Len() {
		return nil, fmt.Errorf("%w: want last %d, have %d", ErrInsufficientSamples, n, s.Len())
	}
	if n == 0 {
		return s, nil
	}
	return s.Last(n), nil
}

// Mean returns the per-component mean of the last n samples (0 means all).
func Mean(s *metric.Series, n int) ([]float64, error) {
	s, err := tail(s, n)
	if err != nil {
		return nil, err
	}
	out := make([]float64, s.Components())
	for j := range out {
		out[j] = stat.Mean(s.Component(j), nil)
	}
	return out, nil
}

// Var returns the per-component population variance of the last n samples
// (0 means all).
func Var(s *metric.Series, n int) ([]float64, error) {
	s, err := tail(s, n)
	if err != nil {
		return nil, err
	}
	out := make([]float64, s.Components())
	for j := range out {
		out[j] = stat.PopVariance(s.Component(j), nil)
	}
	return out, nil
}

// Std returns the per-component population standard deviation of the last
// n samples (0 means all).
func Std(s *metric.Series, n int) ([]float64, error) {
	v, err := Var(s, n)
	if err != nil {
		return nil, err
	}
	for j := range v {
		v[j] = math.Sqrt(v[j])
	}
	return v, nil
}

// TimeWise returns the last n samples (0 means all) laid out component by
// component: all values of component 0 in time order, then component 1, and
// so on.
func TimeWise(s *metric.Series, n int) ([]float64, error) {
	s, err := tail(s, n)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, s.Len()*s.Components())
	for j := 0; j < s.Components(); j++ {
		out = append(out, s.Component(j)...)
	}
	return out, nil
}

// SampleRate returns the sampling rate in Hz implied by the first two
// timestamps of s.
func SampleRate(s *metric.Series) (float64, error) {
	if s == nil || s.Len() < 2 {
		return 0, fmt.Errorf("%w: sample rate needs two samples", ErrInsufficientSamples)
	}
	return 1 / (s.Time(1) - s.Time(0)), nil
}

// Summary holds the moments of each component of a series.
type Summary struct {
	Kind       metric.Kind
	Components []string
	Samples    int
	Mean       []float64
	Std        []float64
	RMS        []float64
}

// Summarize computes the moments of the last n samples of s (0 means all).
func Summarize(s *metric.Series, n int) (*Summary, error) {
	t, err := tail(s, n)
	if err != nil {
		return nil, err
	}
	mean, err := Mean(t, 0)
	if err != nil {
		return nil, err
	}
	std, err := Std(t, 0)
	if err != nil {
		return nil, err
	}
	rms, err := ComponentRMS(t)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Kind:       t.Kind(),
		Components: t.Kind().ComponentNames(t.Components()),
		Samples:    t.Len(),
		Mean:       mean,
		Std:        std,
		RMS:        rms,
	}, nil
}
