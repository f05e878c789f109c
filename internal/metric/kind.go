package metric

import (
	"fmt"
	"strings"

	"github.com/banshee-data/lom/internal/units"
)

// Kind identifies an optical metric. The set is closed: sensitivity artifacts
// only ever ship these variants.
type Kind uint8

const (
	// Invalid is the zero value and never names a metric.
	Invalid Kind = iota
	// TipTilt is the pupil-average tip-tilt, i.e. the image pointing error.
	TipTilt
	// SegmentTipTilt is the tip-tilt of each M1 segment, x1..x7 then y1..y7.
	SegmentTipTilt
	// SegmentPiston is the piston of each M1 segment.
	SegmentPiston
	// Wavefront is the wavefront error sampled over the pupil.
	Wavefront
)

type kindInfo struct {
	name    string
	outputs int
	units   units.Unit
}

var kindTable = [...]kindInfo{
	Invalid:        {"invalid", 0, ""},
	TipTilt:        {"tiptilt", 2, units.Radian},
	SegmentTipTilt: {"segment-tiptilt", 14, units.Radian},
	SegmentPiston:  {"segment-piston", 7, units.Meter},
	Wavefront:      {"wavefront", 0, units.Meter},
}

var kindAliases = map[string]Kind{
	"tiptilt":          TipTilt,
	"tip-tilt":         TipTilt,
	"pointing":         TipTilt,
	"segment-tiptilt":  SegmentTipTilt,
	"segment-tip-tilt": SegmentTipTilt,
	"segmenttiptilt":   SegmentTipTilt,
	"segment-piston":   SegmentPiston,
	"segmentpiston":    SegmentPiston,
	"piston":           SegmentPiston,
	"wavefront":        Wavefront,
	"wfe":              Wavefront,
}

// Kinds lists every valid kind in declaration order.
func Kinds() []Kind {
	return []Kind{TipTilt, SegmentTipTilt, SegmentPiston, Wavefront}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k > Invalid && int(k) < len(kindTable)
}

func (k Kind) String() string {
	if int(k) < len(kindTable) {
		return kindTable[k].name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Outputs is the fixed number of components of the kind, or 0 when the
// count depends on the artifact (wavefront pupil sampling).
func (k Kind) Outputs() int {
	if !k.Valid() {
		return 0
	}
	return kindTable[k].outputs
}

// DefaultUnits is the unit metric values of this kind are calibrated in.
func (k Kind) DefaultUnits() units.Unit {
	if !k.Valid() {
		return ""
	}
	return kindTable[k].units
}

// ComponentNames returns the column names of an n-component sample.
func (k Kind) ComponentNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		switch {
		case k == TipTilt && n == 2:
			names[i] = [...]string{"x", "y"}[i]
		case k == SegmentTipTilt && n == 14:
			axis := "x"
			if i >= 7 {
				axis = "y"
			}
			names[i] = fmt.Sprintf("%s%d", axis, i%7+1)
		case k == SegmentPiston && n == 7:
			names[i] = fmt.Sprintf("s%d", i+1)
		default:
			names[i] = fmt.Sprintf("c%d", i)
		}
	}
	return names
}

// ParseKind parses a metric kind name. Matching ignores case and
// surrounding whitespace; "pointing" is an alias of TipTilt.
func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return Invalid, fmt.Errorf("unknown metric kind %q", s)
	}
	return k, nil
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid metric kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
