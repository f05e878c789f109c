package stats

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/units"
)

// DefaultSegmentLength is the Welch segment length used when none is set.
const DefaultSegmentLength = 256

// WelchOptions tunes a Welch estimate. The zero value uses 256 sample
// segments overlapping by half.
type WelchOptions struct {
	// SegmentLength is the number of samples per segment.
	SegmentLength int

	// Overlap is the number of samples shared by consecutive segments.
	// Zero means half a segment and a negative value disables overlap.
	Overlap int
}

func (o WelchOptions) segment() (length, step int, err error) {
	length = o.SegmentLength
	if length == 0 {
		length = DefaultSegmentLength
	}
	if length < 2 {
		return 0, 0, fmt.Errorf("%w: segment length %d", ErrInsufficientSamples, length)
	}
	overlap := o.Overlap
	switch {
	case overlap == 0:
		overlap = length / 2
	case overlap < 0:
		overlap = 0
	}
	if overlap >= length {
		return 0, 0, fmt.Errorf("overlap %d must be shorter than segment length %d", overlap, length)
	}
	return length, length - overlap, nil
}

// Welch estimates the one-sided power spectral density of x sampled at fs
// Hz. Each segment has its mean removed and is tapered with a Hann window;
// the periodograms are averaged and scaled to units²/Hz.
//
// It returns the bin frequencies in Hz and the density at each bin.
func Welch(x []float64, fs float64, opts WelchOptions) (freqs, power []float64, err error) {
	if !(fs > 0) {
		return nil, nil, fmt.Errorf("%w: sample rate %g", ErrInsufficientSamples, fs)
	}
	n, step, err := opts.segment()
	if err != nil {
		return nil, nil, err
	}
	if len(x) < n {
		return nil, nil, fmt.Errorf("%w: %d samples for a %d sample segment", ErrInsufficientSamples, len(x), n)
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	window.Hann(w)
	scale := 1 / (fs * floats.Dot(w, w))

	fft := fourier.NewFFT(n)
	bins := n/2 + 1
	power = make([]float64, bins)
	seg := make([]float64, n)
	coeff := make([]complex128, bins)
	count := 0
	for start := 0; start+n <= len(x); start += step {
		copy(seg, x[start:start+n])
		floats.AddConst(-stat.Mean(seg, nil), seg)
		floats.Mul(seg, w)
		coeff = fft.Coefficients(coeff, seg)
		for k, c := range coeff {
			power[k] += real(c)*real(c) + imag(c)*imag(c)
		}
		count++
	}

	freqs = make([]float64, bins)
	for k := range power {
		power[k] *= scale / float64(count)
		// Fold the negative frequencies in, leaving DC and an even
		// length's Nyquist bin alone.
		if k > 0 && !(n%2 == 0 && k == bins-1) {
			power[k] *= 2
		}
		freqs[k] = fft.Freq(k) * fs
	}
	return freqs, power, nil
}

// Spectrum is the power spectral density of each component of a series.
type Spectrum struct {
	Kind metric.Kind

	// Units is the unit of the series; power is in Units²/Hz.
	Units units.Unit

	Frequencies []float64

	// Power[j][k] is the density of component j at Frequencies[k].
	Power [][]float64
}

// PSD estimates the power spectral density of every component of s sampled
// at sampleRate Hz.
func PSD(s *metric.Series, sampleRate float64, opts WelchOptions) (*Spectrum, error) {
	if s == nil || s.Len() == 0 {
		return nil, ErrEmptySeries
	}
	sp := &Spectrum{Kind: s.Kind(), Units: s.Units(), Power: make([][]float64, s.Components())}
	for j := range sp.Power {
		freqs, p, err := Welch(s.Component(j), sampleRate, opts)
		if err != nil {
			return nil, fmt.Errorf("%s component %d: %w", s.Kind(), j, err)
		}
		sp.Frequencies = freqs
		sp.Power[j] = p
	}
	return sp, nil
}

// Peak returns the frequency of the largest density of component j,
// ignoring the DC bin.
func (sp *Spectrum) Peak(j int) float64 {
	p := sp.Power[j]
	if len(p) < 2 {
		return 0
	}
	return sp.Frequencies[1+floats.MaxIdx(p[1:])]
}
