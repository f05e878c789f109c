package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lom/internal/units"
)

func TestParseKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Kind
	}{
		{"tiptilt", TipTilt},
		{"Tip-Tilt", TipTilt},
		{" pointing ", TipTilt},
		{"segment-tiptilt", SegmentTipTilt},
		{"segment-piston", SegmentPiston},
		{"WAVEFRONT", Wavefront},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseKind("strehl")
	assert.Error(t, err)
}

func TestKindMetadata(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, TipTilt.Outputs())
	assert.Equal(t, 14, SegmentTipTilt.Outputs())
	assert.Equal(t, 7, SegmentPiston.Outputs())
	assert.Equal(t, 0, Wavefront.Outputs())
	assert.Equal(t, units.Radian, SegmentTipTilt.DefaultUnits())
	assert.Equal(t, units.Meter, SegmentPiston.DefaultUnits())
	assert.False(t, Invalid.Valid())
	assert.False(t, Kind(42).Valid())
	assert.Equal(t, "kind(42)", Kind(42).String())
	assert.Len(t, Kinds(), 4)

	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestComponentNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"x", "y"}, TipTilt.ComponentNames(2))
	names := SegmentTipTilt.ComponentNames(14)
	assert.Equal(t, "x1", names[0])
	assert.Equal(t, "x7", names[6])
	assert.Equal(t, "y1", names[7])
	assert.Equal(t, "y7", names[13])
	assert.Equal(t, "s3", SegmentPiston.ComponentNames(7)[2])
	assert.Equal(t, []string{"c0", "c1", "c2"}, Wavefront.ComponentNames(3))
}

func TestKindText(t *testing.T) {
	t.Parallel()

	b, err := SegmentPiston.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "segment-piston", string(b))

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("pointing")))
	assert.Equal(t, TipTilt, k)

	_, err = Invalid.MarshalText()
	assert.Error(t, err)
	assert.Error(t, k.UnmarshalText([]byte("nope")))
}
