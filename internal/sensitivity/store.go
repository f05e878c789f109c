package sensitivity

import (
	"fmt"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/segment"
)

// Masks are the pupil sampling auxiliaries shipped with wavefront
// sensitivities. Segment holds the segment number (1..7, 0 when outside
// every segment) of each in-pupil wavefront sample; Pupil flags which points
// of the full pupil grid are inside the pupil.
type Masks struct {
	Segment []int32
	Pupil   []bool
}

// IsZero reports whether no mask is set.
func (m Masks) IsZero() bool {
	return m.Segment == nil && m.Pupil == nil
}

// Store indexes sensitivity matrices by metric kind. It is immutable.
type Store struct {
	order  []metric.Kind
	byKind map[metric.Kind]*Matrix
	masks  Masks
}

// New builds a store from matrices, rejecting duplicate kinds.
func New(matrices ...*Matrix) (*Store, error) {
	return NewWithMasks(Masks{}, matrices...)
}

// NewWithMasks builds a store holding matrices and pupil masks. The masks
// are copied.
func NewWithMasks(masks Masks, matrices ...*Matrix) (*Store, error) {
	s := &Store{byKind: make(map[metric.Kind]*Matrix, len(matrices))}
	for i, m := range matrices {
		if m == nil {
			return nil, malformed(metric.Invalid, "nil matrix at position %d", i)
		}
		if _, dup := s.byKind[m.kind]; dup {
			return nil, malformed(m.kind, "duplicate matrix")
		}
		s.byKind[m.kind] = m
		s.order = append(s.order, m.kind)
	}
	if err := validateMasks(masks, s.byKind[metric.Wavefront]); err != nil {
		return nil, err
	}
	if masks.Segment != nil {
		s.masks.Segment = append([]int32{}, masks.Segment...)
	}
	if masks.Pupil != nil {
		s.masks.Pupil = append([]bool{}, masks.Pupil...)
	}
	return s, nil
}

func validateMasks(masks Masks, wavefront *Matrix) error {
	for i, id := range masks.Segment {
		if id < 0 || id > segment.SegmentsPerAssembly {
			return malformed(metric.Wavefront, "segment mask value %d at %d outside 0..%d", id, i, segment.SegmentsPerAssembly)
		}
	}
	if masks.Segment != nil && masks.Pupil != nil {
		inside := 0
		for _, in := range masks.Pupil {
			if in {
				inside++
			}
		}
		if inside != len(masks.Segment) {
			return malformed(metric.Wavefront, "pupil mask has %d samples inside the pupil, segment mask has %d", inside, len(masks.Segment))
		}
	}
	if wavefront != nil && masks.Segment != nil && wavefront.OutputDim() != len(masks.Segment) {
		return malformed(metric.Wavefront, "%d wavefront outputs, segment mask has %d", wavefront.OutputDim(), len(masks.Segment))
	}
	return nil
}

// Get returns the matrix for kind or ErrUnknownMetric.
func (s *Store) Get(kind metric.Kind) (*Matrix, error) {
	m, ok := s.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, kind)
	}
	return m, nil
}

// Has reports whether the store holds a matrix for kind.
func (s *Store) Has(kind metric.Kind) bool {
	_, ok := s.byKind[kind]
	return ok
}

// Kinds returns the stored kinds in load order.
func (s *Store) Kinds() []metric.Kind {
	return append([]metric.Kind(nil), s.order...)
}

// Len is the number of matrices.
func (s *Store) Len() int { return len(s.order) }

// SegmentMask returns a copy of the wavefront segment mask, or nil.
func (s *Store) SegmentMask() []int32 {
	if s.masks.Segment == nil {
		return nil
	}
	return append([]int32{}, s.masks.Segment...)
}

// PupilMask returns a copy of the pupil mask, or nil.
func (s *Store) PupilMask() []bool {
	if s.masks.Pupil == nil {
		return nil
	}
	return append([]bool{}, s.masks.Pupil...)
}

// Masks returns copies of both masks.
func (s *Store) Masks() Masks {
	return Masks{Segment: s.SegmentMask(), Pupil: s.PupilMask()}
}
