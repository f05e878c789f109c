package sensitivity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/lom/internal/metric"
)

// ReadCSV reads one matrix from headerless delimited text with rows
// "metric,segment,v1,...,vn", one output row per line. The metric and segment
// cells label the row; base supplies the kind, units and calibration
// segment set, and its Rows, Cols and Data are replaced. When base.Kind is
// unset the kind is taken from the first row.
func ReadCSV(r io.Reader, base Spec) (*Matrix, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var data []float64
	rows, cols := 0, -1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: sensitivity csv: %w", ErrLoad, err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < 3 {
			return nil, malformed(base.Kind, "csv line %d: want metric, segment and values", line)
		}
		kind, err := metric.ParseKind(rec[0])
		if err != nil {
			return nil, malformed(base.Kind, "csv line %d: %v", line, err)
		}
		if base.Kind == metric.Invalid {
			base.Kind = kind
		}
		if kind != base.Kind {
			return nil, malformed(base.Kind, "csv line %d: row labelled %s", line, kind)
		}
		values := rec[2:]
		if cols < 0 {
			cols = len(values)
		}
		if len(values) != cols {
			return nil, malformed(base.Kind, "csv line %d: %d values, want %d", line, len(values), cols)
		}
		for i, cell := range values {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, malformed(base.Kind, "csv line %d column %d: invalid value %q", line, i+3, cell)
			}
			data = append(data, v)
		}
		rows++
	}
	if rows == 0 {
		return nil, malformed(base.Kind, "empty sensitivity csv")
	}
	base.Rows, base.Cols, base.Data = rows, cols, data
	return NewMatrix(base)
}
