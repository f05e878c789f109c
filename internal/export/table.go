package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/units"
)

// TimeColumn is the first column of every table.
const TimeColumn = "time"

// Table is a fully populated row/column view of a series: one row per
// sample holding the timestamp followed by every component.
type Table struct {
	Kind    metric.Kind
	Units   units.Unit
	Columns []string
	Rows    [][]float64
}

// TableSink writes row/column tables.
type TableSink interface {
	WriteTable(ctx context.Context, t *Table) error
}

// ObjectSink writes whole series for later reload with an ObjectSource.
type ObjectSink interface {
	WriteSeries(ctx context.Context, series ...*metric.Series) error
}

// ObjectSource reads back series written by the matching ObjectSink.
type ObjectSource interface {
	ReadSeries(ctx context.Context) ([]*metric.Series, error)
}

// NewTable builds the table of s.
func NewTable(s *metric.Series) (*Table, error) {
	if s == nil {
		return nil, errors.New("nil series")
	}
	names := s.Kind().ComponentNames(s.Components())
	t := &Table{
		Kind:    s.Kind(),
		Units:   s.Units(),
		Columns: append([]string{TimeColumn}, names...),
		Rows:    make([][]float64, s.Len()),
	}
	width := len(t.Columns)
	cells := make([]float64, s.Len()*width)
	for i := range t.Rows {
		row := cells[i*width : (i+1)*width : (i+1)*width]
		row[0] = s.Time(i)
		for j := 0; j < s.Components(); j++ {
			row[1+j] = s.Value(i, j)
		}
		t.Rows[i] = row
	}
	return t, nil
}

// Series converts the table back into a series.
func (t *Table) Series() (*metric.Series, error) {
	if len(t.Columns) == 0 || t.Columns[0] != TimeColumn {
		return nil, fmt.Errorf("table must start with a %q column", TimeColumn)
	}
	s := metric.NewSeries(t.Kind, t.Units, len(t.Columns)-1)
	s.Grow(len(t.Rows))
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
		if err := s.AppendValues(row[0], row[1:]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return s, nil
}
