// Package segment defines the identifiers of the segmented mirror
// assemblies and the ordered segment sets sensitivity matrices are
// calibrated against.
//
// Canonical order is (assembly, index): M1S1..M1S7 then M2S1..M2S7. Every
// concatenated rigid body motion vector follows that order, six degrees of
// freedom per segment.
package segment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// SegmentsPerAssembly is the number of segments of M1 and of M2.
	SegmentsPerAssembly = 7
	// DOF is the number of rigid body degrees of freedom per segment.
	DOF = 6
)

// DOFNames labels the six rigid body degrees of freedom in vector order.
var DOFNames = [DOF]string{"Tx", "Ty", "Tz", "Rx", "Ry", "Rz"}

// Assembly identifies a segmented mirror.
type Assembly uint8

const (
	M1 Assembly = iota + 1
	M2
)

func (a Assembly) String() string {
	switch a {
	case M1:
		return "M1"
	case M2:
		return "M2"
	default:
		return fmt.Sprintf("Assembly(%d)", uint8(a))
	}
}

// Valid reports whether a is M1 or M2.
func (a Assembly) Valid() bool {
	return a == M1 || a == M2
}

// ParseAssembly parses "M1" or "M2" (case-insensitive).
func ParseAssembly(s string) (Assembly, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M1":
		return M1, nil
	case "M2":
		return M2, nil
	}
	return 0, fmt.Errorf("unknown mirror assembly %q", s)
}

// ID identifies one segment of one assembly. The zero ID is invalid.
type ID struct {
	Assembly Assembly
	Index    uint8
}

// ErrInvalidID is returned for out of range assemblies or segment indices.
var ErrInvalidID = errors.New("invalid segment id")

// New returns the ID of segment index (1..7) of assembly a.
func New(a Assembly, index int) (ID, error) {
	if !a.Valid() {
		return ID{}, fmt.Errorf("%w: assembly %d", ErrInvalidID, a)
	}
	if index < 1 || index > SegmentsPerAssembly {
		return ID{}, fmt.Errorf("%w: %s segment index %d out of range 1..%d", ErrInvalidID, a, index, SegmentsPerAssembly)
	}
	return ID{Assembly: a, Index: uint8(index)}, nil
}

// MustNew is like New but panics on invalid input. Intended for fixtures
// and package-level tables.
func MustNew(a Assembly, index int) ID {
	id, err := New(a, index)
	if err != nil {
		panic(err)
	}
	return id
}

// Valid reports whether id names an existing segment.
func (id ID) Valid() bool {
	return id.Assembly.Valid() && id.Index >= 1 && id.Index <= SegmentsPerAssembly
}

// String formats the id as "M1S3".
func (id ID) String() string {
	return fmt.Sprintf("%sS%d", id.Assembly, id.Index)
}

// Parse parses ids formatted like "M1S3" (case-insensitive).
func Parse(s string) (ID, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	if len(u) < 4 || u[2] != 'S' {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	a, err := ParseAssembly(u[:2])
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	idx, err := strconv.Atoi(u[3:])
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return New(a, idx)
}

// Less reports whether id precedes other in canonical order.
func (id ID) Less(other ID) bool {
	if id.Assembly != other.Assembly {
		return id.Assembly < other.Assembly
	}
	return id.Index < other.Index
}

// Ordinal returns the zero-based canonical position of id among all
// segments of both assemblies (M1S1 = 0, M2S7 = 13).
func (id ID) Ordinal() int {
	return int(id.Assembly-1)*SegmentsPerAssembly + int(id.Index) - 1
}
