package rbm

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/lom/internal/segment"
	"github.com/banshee-data/lom/internal/units"
)

// TimeColumn is the header of the timestamp column of rigid body motion CSV files.
const TimeColumn = "time"

// CSVReader decodes a rigid body motion time series from delimited text.
//
// The header holds "time" followed by "<segment>_<dof>" columns such as
// M1S1_Tx ... M2S7_Rz, in any order. Each segment named in the header must
// carry all six degrees of freedom. A row where all six cells of a segment
// are empty yields a snapshot without that segment.
type CSVReader struct {
	r        *csv.Reader
	timeCol  int
	segments segment.Set
	// cols[i][d] is the CSV column of DOF d of segments[i].
	cols  [][segment.DOF]int
	line  int
	basis units.Basis
}

// NewCSVReader reads the header of r. Records are tagged with basis.
func NewCSVReader(r io.Reader, basis units.Basis) (*CSVReader, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("rigid body motion csv: missing header")
		}
		return nil, fmt.Errorf("rigid body motion csv header: %w", err)
	}

	timeCol := -1
	found := make(map[segment.ID]*[segment.DOF]int)
	var ids []segment.ID
	for i, h := range header {
		h = strings.TrimSpace(h)
		if strings.EqualFold(h, TimeColumn) {
			timeCol = i
			continue
		}
		name, dof, ok := strings.Cut(h, "_")
		if !ok {
			return nil, fmt.Errorf("rigid body motion csv: unexpected column %q", h)
		}
		id, err := segment.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("rigid body motion csv column %q: %w", h, err)
		}
		d := dofIndex(dof)
		if d < 0 {
			return nil, fmt.Errorf("rigid body motion csv column %q: unknown degree of freedom", h)
		}
		idx, ok := found[id]
		if !ok {
			idx = &[segment.DOF]int{-1, -1, -1, -1, -1, -1}
			found[id] = idx
			ids = append(ids, id)
		}
		if idx[d] >= 0 {
			return nil, fmt.Errorf("rigid body motion csv: duplicate column %q", h)
		}
		idx[d] = i
	}
	if timeCol < 0 {
		return nil, fmt.Errorf("rigid body motion csv: missing %q column", TimeColumn)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	set, err := segment.NewSet(ids...)
	if err != nil {
		return nil, err
	}
	cols := make([][segment.DOF]int, len(set))
	for i, id := range set {
		c := found[id]
		for d, col := range c {
			if col < 0 {
				return nil, fmt.Errorf("rigid body motion csv: segment %s lacks column %s_%s", id, id, segment.DOFNames[d])
			}
		}
		cols[i] = *c
	}
	return &CSVReader{r: cr, timeCol: timeCol, segments: set, cols: cols, line: 1, basis: basis}, nil
}

// Segments returns the segments declared by the header.
func (c *CSVReader) Segments() segment.Set {
	return c.segments.Clone()
}

// Read returns the next record or io.EOF. A row whose time parses yields a
// record even when some segments are unreadable; those are listed in
// Record.Faults. Unparseable times and malformed rows are errors.
func (c *CSVReader) Read() (Record, error) {
	row, err := c.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("rigid body motion csv line %d: %w", c.line+1, err)
	}
	c.line++

	t, err := strconv.ParseFloat(strings.TrimSpace(row[c.timeCol]), 64)
	if err != nil {
		return Record{}, fmt.Errorf("rigid body motion csv line %d: invalid time %q", c.line, row[c.timeCol])
	}
	rec := Record{Time: t, Snapshot: NewSnapshot(c.basis)}
	for i, id := range c.segments {
		var st State
		empty := 0
		var bad *SegmentError
		for d, col := range c.cols[i] {
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				empty++
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				bad = &SegmentError{Line: c.line, Segment: id, Reason: fmt.Sprintf("%s: invalid value %q", segment.DOFNames[d], cell)}
				break
			}
			st[d] = v
		}
		switch {
		case bad != nil:
			rec.Faults = append(rec.Faults, bad)
		case empty == 0:
			if err := rec.Snapshot.Put(id, st); err != nil {
				rec.Faults = append(rec.Faults, &SegmentError{Line: c.line, Segment: id, Reason: err.Error()})
			}
		case empty == segment.DOF:
			// Segment absent from this snapshot.
		default:
			rec.Faults = append(rec.Faults, &SegmentError{Line: c.line, Segment: id, Reason: "is partially empty"})
		}
	}
	return rec, nil
}

// WriteCSV encodes records for the segments of set. Segments missing from a
// snapshot are written as empty cells.
func WriteCSV(w io.Writer, set segment.Set, records []Record) error {
	cw := csv.NewWriter(w)
	header := append([]string{TimeColumn}, set.ColumnNames()...)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, rec := range records {
		row[0] = strconv.FormatFloat(rec.Time, 'g', -1, 64)
		for i, id := range set {
			st, ok := rec.Snapshot.Get(id)
			for d := 0; d < segment.DOF; d++ {
				cell := ""
				if ok {
					cell = strconv.FormatFloat(st[d], 'g', -1, 64)
				}
				row[1+i*segment.DOF+d] = cell
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func dofIndex(name string) int {
	for i, n := range segment.DOFNames {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}
