// Package units provides shared unit tags, validation and conversions for
// rigid body motions and optical metrics.
//
// Rigid body motions and sensitivity matrices are stored in SI units (meters
// and radians). The tags here let callers state which units a vector or a
// matrix actually carries so that mismatches can be caught before a transform.
package units

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a physical unit tag. The empty Unit means "untagged".
type Unit string

// Unit constants
const (
	Meter       Unit = "m"
	Micrometer  Unit = "um"
	Nanometer   Unit = "nm"
	Radian      Unit = "rad"
	Arcsec      Unit = "arcsec"
	MilliArcsec Unit = "mas"
)

// Dimension groups units that can be converted into one another.
type Dimension int

const (
	// Unknown is returned for untagged or unrecognised units.
	Unknown Dimension = iota
	Length
	Angle
)

func (d Dimension) String() string {
	switch d {
	case Length:
		return "length"
	case Angle:
		return "angle"
	default:
		return "unknown"
	}
}

// ValidUnits contains all valid unit values
var ValidUnits = []Unit{Meter, Micrometer, Nanometer, Radian, Arcsec, MilliArcsec}

// toSI holds the factor that converts one unit into the SI unit of its dimension.
var toSI = map[Unit]float64{
	Meter:       1,
	Micrometer:  1e-6,
	Nanometer:   1e-9,
	Radian:      1,
	Arcsec:      math.Pi / 180 / 3600,
	MilliArcsec: math.Pi / 180 / 3600 / 1000,
}

// IsValid checks if the given unit is in the list of valid units
func IsValid(u Unit) bool {
	_, ok := toSI[u]
	return ok
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	names := make([]string, len(ValidUnits))
	for i, u := range ValidUnits {
		names[i] = string(u)
	}
	return strings.Join(names, ", ")
}

// ParseUnit parses a unit tag. The empty string parses to the untagged unit.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.TrimSpace(s))
	if u == "" || IsValid(u) {
		return u, nil
	}
	if u == "µm" {
		return Micrometer, nil
	}
	return "", fmt.Errorf("unknown unit %q (valid: %s)", s, GetValidUnitsString())
}

// Dimension reports whether u measures a length or an angle.
func (u Unit) Dimension() Dimension {
	switch u {
	case Meter, Micrometer, Nanometer:
		return Length
	case Radian, Arcsec, MilliArcsec:
		return Angle
	default:
		return Unknown
	}
}

// Convert converts v expressed in from into to. Both units must share a
// dimension.
func Convert(v float64, from, to Unit) (float64, error) {
	f, ok := toSI[from]
	if !ok {
		return 0, fmt.Errorf("cannot convert from unit %q", from)
	}
	g, ok := toSI[to]
	if !ok {
		return 0, fmt.Errorf("cannot convert to unit %q", to)
	}
	if from.Dimension() != to.Dimension() {
		return 0, fmt.Errorf("cannot convert %s (%s) to %s (%s)", from, from.Dimension(), to, to.Dimension())
	}
	if from == to {
		return v, nil
	}
	return v * f / g, nil
}

// Scale returns the factor k such that v[to] = k * v[from].
func Scale(from, to Unit) (float64, error) {
	return Convert(1, from, to)
}

// FromArcsec converts an angle in arcseconds to radians.
func FromArcsec(v float64) float64 {
	return v * toSI[Arcsec]
}

// ToArcsec converts an angle in radians to arcseconds.
func ToArcsec(rad float64) float64 {
	return rad / toSI[Arcsec]
}

// ToMas converts an angle in radians to milli-arcseconds.
func ToMas(rad float64) float64 {
	return rad / toSI[MilliArcsec]
}

// Basis tags the units of the translation and rotation components of a
// rigid body motion vector.
type Basis struct {
	Translation Unit
	Rotation    Unit
}

// SI is the basis rigid body motions and sensitivities are calibrated in.
var SI = Basis{Translation: Meter, Rotation: Radian}

// IsZero reports whether the basis is untagged.
func (b Basis) IsZero() bool {
	return b.Translation == "" && b.Rotation == ""
}

// Validate checks that a tagged basis has a length unit for translations and
// an angle unit for rotations.
func (b Basis) Validate() error {
	if b.IsZero() {
		return nil
	}
	if b.Translation.Dimension() != Length {
		return fmt.Errorf("translation unit %q is not a length", b.Translation)
	}
	if b.Rotation.Dimension() != Angle {
		return fmt.Errorf("rotation unit %q is not an angle", b.Rotation)
	}
	return nil
}

// Compatible reports whether vectors tagged with b can be fed to a matrix
// calibrated in other. An untagged basis on either side is accepted since
// unit alignment is then the caller's responsibility.
func (b Basis) Compatible(other Basis) bool {
	if b.IsZero() || other.IsZero() {
		return true
	}
	return b == other
}

func (b Basis) String() string {
	if b.IsZero() {
		return "untagged"
	}
	return fmt.Sprintf("%s/%s", b.Translation, b.Rotation)
}
