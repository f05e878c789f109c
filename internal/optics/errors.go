package optics

import (
	"errors"
	"fmt"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/rbm"
	"github.com/banshee-data/lom/internal/segment"
	"github.com/banshee-data/lom/internal/units"
)

var (
	// ErrDimensionMismatch is returned when a state vector length differs
	// from the input dimension of a matrix.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrUnitMismatch is returned when a tagged state basis differs from the
	// tagged calibration basis of a matrix.
	ErrUnitMismatch = errors.New("unit mismatch")
)

// DimensionError reports the expected and supplied state lengths. Cause is
// set when the state was built from a snapshot lacking calibration segments.
type DimensionError struct {
	Kind  metric.Kind
	Want  int
	Got   int
	Cause error
}

func (e *DimensionError) Error() string {
	msg := fmt.Sprintf("%v: %s matrix takes %d inputs, got %d", ErrDimensionMismatch, e.Kind, e.Want, e.Got)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DimensionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDimensionMismatch}
	}
	return []error{ErrDimensionMismatch, e.Cause}
}

// SegmentDimensionError describes a snapshot that cannot fill the state
// vector of a kind calibrated on set. Got counts the components of the
// calibration segments snap does carry.
func SegmentDimensionError(kind metric.Kind, set segment.Set, snap *rbm.Snapshot, cause error) *DimensionError {
	got := 0
	for _, id := range set {
		if _, ok := snap.Get(id); ok {
			got += segment.DOF
		}
	}
	return &DimensionError{Kind: kind, Want: set.Dim(), Got: got, Cause: cause}
}

// UnitError reports the state and calibration bases of a unit mismatch.
type UnitError struct {
	Kind        metric.Kind
	State       units.Basis
	Calibration units.Basis
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%v: %s matrix calibrated in %s, state in %s", ErrUnitMismatch, e.Kind, e.Calibration, e.State)
}

func (e *UnitError) Unwrap() error { return ErrUnitMismatch }
