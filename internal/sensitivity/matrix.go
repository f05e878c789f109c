package sensitivity

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/segment"
	"github.com/banshee-data/lom/internal/units"
)

// Spec describes a matrix before validation. Data is row-major:
// Rows outputs by Cols inputs.
type Spec struct {
	Kind metric.Kind

	// Units of the outputs. Empty means Kind.DefaultUnits().
	Units units.Unit

	// InputBasis is the unit basis the matrix was calibrated in. The zero
	// value leaves the input untagged.
	InputBasis units.Basis

	// Segments is the calibration segment set; it fixes the column order.
	Segments segment.Set

	Rows int
	Cols int
	Data []float64
}

// Matrix is an immutable sensitivity matrix with its calibration metadata.
type Matrix struct {
	kind     metric.Kind
	units    units.Unit
	basis    units.Basis
	segments segment.Set
	data     *mat.Dense
}

// NewMatrix validates spec and returns a matrix owning a copy of its data.
func NewMatrix(spec Spec) (*Matrix, error) {
	k := spec.Kind
	if !k.Valid() {
		return nil, malformed(k, "missing or unknown metric kind %d", uint8(k))
	}
	if spec.Rows <= 0 || spec.Cols <= 0 {
		return nil, malformed(k, "non-positive dimensions %dx%d", spec.Rows, spec.Cols)
	}
	if len(spec.Data) != spec.Rows*spec.Cols {
		return nil, malformed(k, "%d values for declared %dx%d", len(spec.Data), spec.Rows, spec.Cols)
	}
	if len(spec.Segments) == 0 {
		return nil, malformed(k, "missing calibration segment set")
	}
	set, err := segment.NewSet(spec.Segments...)
	if err != nil {
		return nil, malformed(k, "calibration segment set: %v", err)
	}
	if spec.Cols != set.Dim() {
		return nil, malformed(k, "input dimension %d does not match %d segments (%d)", spec.Cols, len(set), set.Dim())
	}
	if n := k.Outputs(); n > 0 && spec.Rows != n {
		return nil, malformed(k, "output dimension %d, want %d", spec.Rows, n)
	}
	u := spec.Units
	if u == "" {
		u = k.DefaultUnits()
	}
	if !units.IsValid(u) {
		return nil, malformed(k, "invalid output unit %q", u)
	}
	if u.Dimension() != k.DefaultUnits().Dimension() {
		return nil, malformed(k, "output unit %s is not a %s", u, k.DefaultUnits().Dimension())
	}
	if err := spec.InputBasis.Validate(); err != nil {
		return nil, malformed(k, "input basis: %v", err)
	}
	for i, v := range spec.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, malformed(k, "non-finite value at row %d column %d", i/spec.Cols, i%spec.Cols)
		}
	}
	data := make([]float64, len(spec.Data))
	copy(data, spec.Data)
	return &Matrix{
		kind:     k,
		units:    u,
		basis:    spec.InputBasis,
		segments: set,
		data:     mat.NewDense(spec.Rows, spec.Cols, data),
	}, nil
}

// Kind is the metric the matrix produces.
func (m *Matrix) Kind() metric.Kind { return m.kind }

// Units is the unit of the outputs.
func (m *Matrix) Units() units.Unit { return m.units }

// InputBasis is the calibration unit basis of the inputs.
func (m *Matrix) InputBasis() units.Basis { return m.basis }

// Segments returns a copy of the calibration segment set.
func (m *Matrix) Segments() segment.Set { return m.segments.Clone() }

// InputDim is the required state vector length.
func (m *Matrix) InputDim() int {
	_, c := m.data.Dims()
	return c
}

// OutputDim is the number of metric components produced.
func (m *Matrix) OutputDim() int {
	r, _ := m.data.Dims()
	return r
}

// At returns element (i, j).
func (m *Matrix) At(i, j int) float64 { return m.data.At(i, j) }

// Row returns a copy of output row i.
func (m *Matrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.data)
}

// View returns a read-only view of the matrix values.
func (m *Matrix) View() mat.Matrix { return view{m.data} }

// Spec returns a deep copy of the matrix as a Spec.
func (m *Matrix) Spec() Spec {
	r, c := m.data.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.data.RawRowView(i)...)
	}
	return Spec{
		Kind:       m.kind,
		Units:      m.units,
		InputBasis: m.basis,
		Segments:   m.segments.Clone(),
		Rows:       r,
		Cols:       c,
		Data:       data,
	}
}

// Project computes states × Mᵀ, mapping each row of states (samples × InputDim)
// to a row of metric components (samples × OutputDim). Dimensions are the
// caller's to check; a mismatch panics as in gonum.
func (m *Matrix) Project(states mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(states, m.data.T())
	return &out
}

// view hides the mutable methods of the backing Dense.
type view struct{ d *mat.Dense }

func (v view) Dims() (int, int) { return v.d.Dims() }

func (v view) At(i, j int) float64 { return v.d.At(i, j) }

func (v view) T() mat.Matrix { return mat.Transpose{Matrix: v} }
