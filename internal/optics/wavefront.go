package optics

import (
	"fmt"
	"math"

	"github.com/banshee-data/lom/internal/segment"
)

// SegmentWavefront splits an in-pupil wavefront by segment. mask holds the
// segment number of each sample; element k of the result holds, in pupil
// order, the samples of segment k+1. Samples with mask 0 are dropped.
func SegmentWavefront(wf []float64, mask []int32) ([][]float64, error) {
	if len(wf) != len(mask) {
		return nil, fmt.Errorf("%w: wavefront has %d samples, segment mask %d", ErrDimensionMismatch, len(wf), len(mask))
	}
	out := make([][]float64, segment.SegmentsPerAssembly)
	for i, id := range mask {
		if id < 1 || int(id) > segment.SegmentsPerAssembly {
			continue
		}
		out[id-1] = append(out[id-1], wf[i])
	}
	return out, nil
}

// SegmentWFERMS returns the wavefront error RMS of each segment multiplied
// by scale (1 keeps meters, 1e9 gives nanometers). A segment without samples
// has an RMS of 0.
func SegmentWFERMS(wf []float64, mask []int32, scale float64) ([]float64, error) {
	segs, err := SegmentWavefront(wf, mask)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(segs))
	for k, s := range segs {
		if len(s) == 0 {
			continue
		}
		var sum float64
		for _, v := range s {
			sum += v * v
		}
		out[k] = math.Sqrt(sum/float64(len(s))) * scale
	}
	return out, nil
}

// PupilWavefront expands an in-pupil wavefront onto the full pupil grid,
// filling points outside the pupil with 0.
func PupilWavefront(wf []float64, pupil []bool) ([]float64, error) {
	out := make([]float64, len(pupil))
	k := 0
	for i, in := range pupil {
		if !in {
			continue
		}
		if k >= len(wf) {
			return nil, fmt.Errorf("%w: pupil mask has more than %d inside samples", ErrDimensionMismatch, len(wf))
		}
		out[i] = wf[k]
		k++
	}
	if k != len(wf) {
		return nil, fmt.Errorf("%w: wavefront has %d samples, pupil mask %d inside", ErrDimensionMismatch, len(wf), k)
	}
	return out, nil
}

// DifferentialPiston returns p[j] - p[i] for every pair i < j, ordered by i
// then j: 21 values for 7 segments.
func DifferentialPiston(p []float64) []float64 {
	n := len(p)
	if n < 2 {
		return nil
	}
	out := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, p[j]-p[i])
		}
	}
	return out
}
