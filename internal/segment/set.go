package segment

import (
	"fmt"
	"strings"
)

// Set is an ordered list of segments in strictly increasing canonical order.
// It defines the column layout of a concatenated rigid body motion vector.
type Set []ID

// NewSet validates ids and returns them as a Set. The ids must be valid,
// unique and already in canonical order: reordering would silently change
// the column alignment of any matrix calibrated against them.
func NewSet(ids ...ID) (Set, error) {
	for i, id := range ids {
		if !id.Valid() {
			return nil, fmt.Errorf("%w: %v at position %d", ErrInvalidID, id, i)
		}
		if i > 0 && !ids[i-1].Less(id) {
			return nil, fmt.Errorf("segment %s at position %d is not in canonical order after %s", id, i, ids[i-1])
		}
	}
	s := make(Set, len(ids))
	copy(s, ids)
	return s, nil
}

// ParseSet parses a list of segment names such as ["M1S1", "M1S2"].
func ParseSet(names []string) (Set, error) {
	ids := make([]ID, 0, len(names))
	for _, n := range names {
		id, err := Parse(n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return NewSet(ids...)
}

// Full returns all seven segments of each given assembly in canonical order.
// With no arguments it returns the 14 segments of M1 and M2.
func Full(assemblies ...Assembly) Set {
	if len(assemblies) == 0 {
		assemblies = []Assembly{M1, M2}
	}
	var s Set
	for _, a := range []Assembly{M1, M2} {
		for _, want := range assemblies {
			if want != a {
				continue
			}
			for i := 1; i <= SegmentsPerAssembly; i++ {
				s = append(s, ID{Assembly: a, Index: uint8(i)})
			}
			break
		}
	}
	return s
}

// Dim is the concatenated state vector length for the set.
func (s Set) Dim() int {
	return DOF * len(s)
}

// IndexOf returns the position of id in the set or -1.
func (s Set) IndexOf(id ID) int {
	for i, v := range s {
		if v == id {
			return i
		}
	}
	return -1
}

// Contains reports whether id belongs to the set.
func (s Set) Contains(id ID) bool {
	return s.IndexOf(id) >= 0
}

// Equal reports whether both sets hold the same ids in the same order.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Strings returns the set as segment names.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, id := range s {
		out[i] = id.String()
	}
	return out
}

func (s Set) String() string {
	return "[" + strings.Join(s.Strings(), " ") + "]"
}

// Clone returns a copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	c := make(Set, len(s))
	copy(c, s)
	return c
}

// ColumnNames returns "M1S1_Tx" style labels for every column of the
// concatenated vector.
func (s Set) ColumnNames() []string {
	out := make([]string, 0, s.Dim())
	for _, id := range s {
		for _, d := range DOFNames {
			out = append(out, id.String()+"_"+d)
		}
	}
	return out
}
