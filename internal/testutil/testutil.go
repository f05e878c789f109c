// Package testutil provides shared test utilities and numeric fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files. It imports no other lom package so that every package
// can use it from its own tests.
package testutil

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertClose fails the test unless want and got have the same length and
// agree element-wise within the relative tolerance rel (absolute near zero).
func AssertClose(t testing.TB, want, got []float64, rel float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !scalar.EqualWithinAbsOrRel(want[i], got[i], rel, rel) {
			t.Errorf("element %d = %.17g, want %.17g (rel tol %g)", i, got[i], want[i], rel)
		}
	}
}

// Random returns n deterministic pseudo-random values in [-1, 1).
func Random(seed uint64, n int) []float64 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]float64, n)
	for i := range out {
		out[i] = 2*r.Float64() - 1
	}
	return out
}

// RandomScaled is Random with every value multiplied by scale, e.g. 1e-6
// for micrometre-level rigid body motions.
func RandomScaled(seed uint64, n int, scale float64) []float64 {
	out := Random(seed, n)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// Sine samples a sum of sinusoids a·sin(2π·f·t) at rate fs for n samples.
// freqs and amps are paired.
func Sine(fs float64, n int, freqs, amps []float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / fs
		for k, f := range freqs {
			out[i] += amps[k] * math.Sin(2*math.Pi*f*t)
		}
	}
	return out
}

// WriteFile writes content to name inside a fresh temporary directory and
// returns the path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
	return path
}
