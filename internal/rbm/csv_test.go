package rbm

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lom/internal/segment"
	"github.com/banshee-data/lom/internal/units"
)

func TestCSVRoundTrip(t *testing.T) {
	t.Parallel()

	set := segment.Full(segment.M1)
	var records []Record
	for k := 0; k < 3; k++ {
		snap := NewSnapshot(units.SI)
		for _, id := range set {
			if k == 1 && id.Index == 4 {
				continue // M1S4 missing from the second record
			}
			require.NoError(t, snap.Put(id, stateOf(float64(k)+float64(id.Index)*1e-7)))
		}
		records = append(records, Record{Time: float64(k) * 1e-3, Snapshot: snap})
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, set, records))

	r, err := NewCSVReader(&buf, units.SI)
	require.NoError(t, err)
	assert.True(t, r.Segments().Equal(set))

	for k := 0; ; k++ {
		rec, err := r.Read()
		if err == io.EOF {
			assert.Equal(t, 3, k)
			break
		}
		require.NoError(t, err)
		assert.Equal(t, records[k].Time, rec.Time)
		assert.Equal(t, records[k].Snapshot.Vector(), rec.Snapshot.Vector())
		assert.Equal(t, records[k].Snapshot.Len(), rec.Snapshot.Len())
	}
}

func TestCSVReader_HeaderOrder(t *testing.T) {
	t.Parallel()

	cols := segment.MustNew(segment.M2, 1).String()
	var header []string
	for i := len(segment.DOFNames) - 1; i >= 0; i-- {
		header = append(header, cols+"_"+segment.DOFNames[i])
	}
	header = append(header, "time")
	input := strings.Join(header, ",") + "\n6,5,4,3,2,1,0.5\n"

	r, err := NewCSVReader(strings.NewReader(input), units.Basis{})
	require.NoError(t, err)
	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, 0.5, rec.Time)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, rec.Snapshot.Vector())
	assert.True(t, rec.Snapshot.Basis.IsZero())
}

func TestCSVReader_Errors(t *testing.T) {
	t.Parallel()

	full := "time," + strings.Join(segment.Full(segment.M1)[:1].ColumnNames(), ",")
	for _, tc := range []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"missing time column", "M1S1_Tx\n1\n"},
		{"unknown column", "time,foo\n"},
		{"unknown segment", "time,M3S1_Tx\n"},
		{"unknown dof", "time,M1S1_Qx\n"},
		{"duplicate column", "time,M1S1_Tx,M1S1_Tx\n"},
		{"incomplete segment", "time,M1S1_Tx,M1S1_Ty\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCSVReader(strings.NewReader(tc.input), units.SI)
			assert.Error(t, err)
		})
	}

	for _, tc := range []struct {
		name string
		row  string
	}{
		{"bad time", "x,1,2,3,4,5,6"},
		{"short row", "0,1,2"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewCSVReader(strings.NewReader(full+"\n"+tc.row+"\n"), units.SI)
			require.NoError(t, err)
			_, err = r.Read()
			assert.Error(t, err)
		})
	}
}

func TestCSVReader_EmptySegment(t *testing.T) {
	t.Parallel()

	full := "time," + strings.Join(segment.Full(segment.M1)[:2].ColumnNames(), ",")
	r, err := NewCSVReader(strings.NewReader(full+"\n0,,,,,,,1,2,3,4,5,6\n"), units.SI)
	require.NoError(t, err)
	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"M1S2"}, rec.Snapshot.Segments().Strings())
}

func TestCSVReader_SegmentFaults(t *testing.T) {
	t.Parallel()

	header := "time," + strings.Join(segment.Full(segment.M1)[:2].ColumnNames(), ",")
	for _, tc := range []struct {
		name string
		row  string
	}{
		{"bad value", "0.5,1,2,3,4,5,y,1,2,3,4,5,6"},
		{"partially empty segment", "0.5,1,2,,4,5,6,1,2,3,4,5,6"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewCSVReader(strings.NewReader(header+"\n"+tc.row+"\n"), units.SI)
			require.NoError(t, err)
			rec, err := r.Read()
			require.NoError(t, err)
			assert.Equal(t, 0.5, rec.Time)
			assert.Equal(t, []string{"M1S2"}, rec.Snapshot.Segments().Strings())
			require.Len(t, rec.Faults, 1)
			assert.Equal(t, segment.MustNew(segment.M1, 1), rec.Faults[0].Segment)
			assert.Equal(t, 2, rec.Faults[0].Line)

			err = rec.Fault(segment.Full(segment.M1))
			assert.ErrorIs(t, err, ErrMalformedSegment)
			assert.NoError(t, rec.Fault(segment.Full(segment.M2)))

			_, err = r.Read()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}
