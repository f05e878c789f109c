package rbm

import (
	"fmt"
	"sort"

	"github.com/banshee-data/lom/internal/segment"
	"github.com/banshee-data/lom/internal/units"
)

// Snapshot maps segments to their rigid body state at one instant.
//
// Segments are always kept in canonical (assembly, index) order whatever the
// order of Put calls, so Vector concatenates states in the same column
// order sensitivity matrices are calibrated in.
type Snapshot struct {
	ids    []segment.ID
	states map[segment.ID]State

	// Basis tags the units of the states. The zero value means untagged.
	Basis units.Basis
}

// NewSnapshot returns an empty snapshot with the given unit basis.
func NewSnapshot(basis units.Basis) *Snapshot {
	return &Snapshot{states: make(map[segment.ID]State), Basis: basis}
}

// Put stores the state of segment id, replacing any previous value.
func (s *Snapshot) Put(id segment.ID, st State) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %v", segment.ErrInvalidID, id)
	}
	if s.states == nil {
		s.states = make(map[segment.ID]State)
	}
	if _, ok := s.states[id]; !ok {
		i := sort.Search(len(s.ids), func(i int) bool { return !s.ids[i].Less(id) })
		s.ids = append(s.ids, segment.ID{})
		copy(s.ids[i+1:], s.ids[i:])
		s.ids[i] = id
	}
	s.states[id] = st
	return nil
}

// Get returns the state of segment id.
func (s *Snapshot) Get(id segment.ID) (State, bool) {
	st, ok := s.states[id]
	return st, ok
}

// Delete removes segment id from the snapshot.
func (s *Snapshot) Delete(id segment.ID) {
	if _, ok := s.states[id]; !ok {
		return
	}
	delete(s.states, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
}

// Len is the number of segments present.
func (s *Snapshot) Len() int {
	return len(s.ids)
}

// Segments returns the present segments in canonical order.
func (s *Snapshot) Segments() segment.Set {
	out := make(segment.Set, len(s.ids))
	copy(out, s.ids)
	return out
}

// Vector concatenates the states of all present segments. Its length is
// 6 × Len().
func (s *Snapshot) Vector() []float64 {
	out := make([]float64, 0, segment.DOF*len(s.ids))
	for _, id := range s.ids {
		st := s.states[id]
		out = append(out, st[:]...)
	}
	return out
}

// VectorFor concatenates the states of the segments of set, in set order.
// Every segment of set must be present; extra segments are ignored.
func (s *Snapshot) VectorFor(set segment.Set) ([]float64, error) {
	out := make([]float64, set.Dim())
	if err := s.FillVector(out, set); err != nil {
		return nil, err
	}
	return out, nil
}

// FillVector is VectorFor writing into dst, which must be set.Dim() long.
func (s *Snapshot) FillVector(dst []float64, set segment.Set) error {
	if len(dst) != set.Dim() {
		return &ShapeError{What: "destination vector", Want: set.Dim(), Got: len(dst)}
	}
	for i, id := range set {
		st, ok := s.states[id]
		if !ok {
			return &MissingSegmentError{Segment: id}
		}
		copy(dst[i*segment.DOF:], st[:])
	}
	return nil
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	c := NewSnapshot(s.Basis)
	c.ids = append(c.ids, s.ids...)
	for k, v := range s.states {
		c.states[k] = v
	}
	return c
}

// FromAssemblies builds a snapshot from per-segment M1 and M2 states:
// m1 and m2 each hold 7 rows of 6 values. Either may be nil to omit
// that assembly.
func FromAssemblies(m1, m2 [][]float64) (*Snapshot, error) {
	snap := NewSnapshot(units.SI)
	for _, asm := range []struct {
		a    segment.Assembly
		rows [][]float64
	}{{segment.M1, m1}, {segment.M2, m2}} {
		if asm.rows == nil {
			continue
		}
		if len(asm.rows) != segment.SegmentsPerAssembly {
			return nil, &ShapeError{What: asm.a.String() + " segments", Want: segment.SegmentsPerAssembly, Got: len(asm.rows)}
		}
		for i, row := range asm.rows {
			st, err := StateFromSlice(row)
			if err != nil {
				return nil, fmt.Errorf("%sS%d: %w", asm.a, i+1, err)
			}
			if err := snap.Put(segment.MustNew(asm.a, i+1), st); err != nil {
				return nil, err
			}
		}
	}
	return snap, nil
}

// FromFlat builds a snapshot from flat M1 and M2 vectors of 42 values each
// (segment-major, 6 DOF per segment).
func FromFlat(m1, m2 []float64) (*Snapshot, error) {
	split := func(a segment.Assembly, v []float64) ([][]float64, error) {
		if v == nil {
			return nil, nil
		}
		want := segment.SegmentsPerAssembly * segment.DOF
		if len(v) != want {
			return nil, &ShapeError{What: a.String() + " vector", Want: want, Got: len(v)}
		}
		rows := make([][]float64, segment.SegmentsPerAssembly)
		for i := range rows {
			rows[i] = v[i*segment.DOF : (i+1)*segment.DOF]
		}
		return rows, nil
	}
	r1, err := split(segment.M1, m1)
	if err != nil {
		return nil, err
	}
	r2, err := split(segment.M2, m2)
	if err != nil {
		return nil, err
	}
	return FromAssemblies(r1, r2)
}

// Record is one timestamped snapshot of a rigid body motion time series.
// Time is in seconds.
type Record struct {
	Time     float64
	Snapshot *Snapshot

	// Faults lists segments present in the source but unreadable. They are
	// left out of Snapshot.
	Faults []*SegmentError
}

// Fault returns the first fault among the segments of set, or nil.
func (r Record) Fault(set segment.Set) error {
	for _, f := range r.Faults {
		if set.Contains(f.Segment) {
			return f
		}
	}
	return nil
}
