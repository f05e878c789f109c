package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/units"
)

// CSVSink writes tables as comma separated text with a header row. Values
// use the shortest representation that parses back to the same float64.
type CSVSink struct {
	w io.Writer
}

// NewCSVSink returns a sink writing to w.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: w}
}

// WriteTable writes the header and every row of t.
func (s *CSVSink) WriteTable(ctx context.Context, t *Table) error {
	cw := csv.NewWriter(s.w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSVTable reads a table written by CSVSink. The kind and units are not
// part of the text and come from the caller.
func ReadCSVTable(r io.Reader, kind metric.Kind, unit units.Unit) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("metric csv: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("metric csv header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), TimeColumn) {
		return nil, fmt.Errorf("metric csv: header must be %q followed by components", TimeColumn)
	}
	t := &Table{Kind: kind, Units: unit, Columns: make([]string, len(header))}
	for i, h := range header {
		t.Columns[i] = strings.TrimSpace(h)
	}
	t.Columns[0] = TimeColumn

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("metric csv line %d: %w", line, err)
		}
		row := make([]float64, len(rec))
		for j, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("metric csv line %d column %s: invalid value %q", line, t.Columns[j], cell)
			}
			row[j] = v
		}
		t.Rows = append(t.Rows, row)
	}
}
