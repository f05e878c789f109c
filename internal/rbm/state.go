package rbm

import "github.com/banshee-data/lom/internal/segment"

// State is the rigid body motion of one segment: Tx, Ty, Tz followed by
// Rx, Ry, Rz.
type State [segment.DOF]float64

// Translation returns the Tx, Ty, Tz components.
func (s State) Translation() [3]float64 {
	return [3]float64{s[0], s[1], s[2]}
}

// Rotation returns the Rx, Ry, Rz components.
func (s State) Rotation() [3]float64 {
	return [3]float64{s[3], s[4], s[5]}
}

// Scale returns s multiplied by k.
func (s State) Scale(k float64) State {
	for i := range s {
		s[i] *= k
	}
	return s
}

// Add returns the component-wise sum of s and o.
func (s State) Add(o State) State {
	for i := range s {
		s[i] += o[i]
	}
	return s
}

// StateFromSlice copies a 6-element slice into a State.
func StateFromSlice(v []float64) (State, error) {
	var s State
	if len(v) != segment.DOF {
		return s, &ShapeError{What: "segment state", Want: segment.DOF, Got: len(v)}
	}
	copy(s[:], v)
	return s, nil
}
