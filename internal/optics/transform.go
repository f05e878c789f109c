package optics

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/rbm"
	"github.com/banshee-data/lom/internal/sensitivity"
)

// Apply maps one state vector to a metric vector. len(state) must equal
// m.InputDim().
func Apply(m *sensitivity.Matrix, state []float64) ([]float64, error) {
	if len(state) != m.InputDim() {
		return nil, &DimensionError{Kind: m.Kind(), Want: m.InputDim(), Got: len(state)}
	}
	out, err := ApplyBatch(m, mat.NewDense(1, len(state), state))
	if err != nil {
		return nil, err
	}
	return out.RawRowView(0), nil
}

// ApplyBatch maps a samples × InputDim matrix of states to a samples ×
// OutputDim matrix of metric vectors with a single matrix product.
func ApplyBatch(m *sensitivity.Matrix, states mat.Matrix) (*mat.Dense, error) {
	r, c := states.Dims()
	if c != m.InputDim() {
		return nil, &DimensionError{Kind: m.Kind(), Want: m.InputDim(), Got: c}
	}
	if r == 0 {
		return nil, fmt.Errorf("%s: empty state batch", m.Kind())
	}
	return m.Project(states), nil
}

// CheckUnits returns a *UnitError when snap and m are both tagged with
// different unit bases. Untagged data is accepted; aligning its units is
// the caller's job.
func CheckUnits(m *sensitivity.Matrix, snap *rbm.Snapshot) error {
	if !snap.Basis.Compatible(m.InputBasis()) {
		return &UnitError{Kind: m.Kind(), State: snap.Basis, Calibration: m.InputBasis()}
	}
	return nil
}

// StateVector concatenates the states of snap in the calibration segment
// order of m, after checking units. Segments of snap outside the
// calibration set are ignored; missing ones fail with a *DimensionError
// that also matches rbm.ErrMissingSegment.
func StateVector(m *sensitivity.Matrix, snap *rbm.Snapshot) ([]float64, error) {
	if err := CheckUnits(m, snap); err != nil {
		return nil, err
	}
	set := m.Segments()
	v, err := snap.VectorFor(set)
	if err != nil {
		return nil, SegmentDimensionError(m.Kind(), set, snap, err)
	}
	return v, nil
}

// ApplySnapshot maps a snapshot to a metric vector.
func ApplySnapshot(m *sensitivity.Matrix, snap *rbm.Snapshot) ([]float64, error) {
	v, err := StateVector(m, snap)
	if err != nil {
		return nil, err
	}
	return Apply(m, v)
}

// ApplyEach applies every matrix to the same state independently. Kinds
// whose matrix rejects the state are left out of the result and their
// errors joined.
func ApplyEach(ms []*sensitivity.Matrix, state []float64) (map[metric.Kind][]float64, error) {
	out := make(map[metric.Kind][]float64, len(ms))
	var errs []error
	for _, m := range ms {
		v, err := Apply(m, state)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[m.Kind()] = v
	}
	return out, errors.Join(errs...)
}
