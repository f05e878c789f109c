package export

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/units"
)

const (
	seriesMagic   = "lom-series"
	seriesVersion = 1
)

// The object format is a gzip stream of gob values: a seriesHeader followed
// by Count seriesRecord values.
type seriesHeader struct {
	Magic   string
	Version int
	Count   int
}

type seriesRecord struct {
	Kind       string
	Units      string
	Components int
	Times      []float64
	Values     []float64
}

// GobSink writes series as one gzip-compressed gob object. Values
// round-trip bit for bit through DecodeSeries.
type GobSink struct {
	w io.Writer
}

// NewGobSink returns a sink writing to w.
func NewGobSink(w io.Writer) *GobSink {
	return &GobSink{w: w}
}

// WriteSeries encodes every series into a single object.
func (s *GobSink) WriteSeries(ctx context.Context, series ...*metric.Series) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gz := gzip.NewWriter(s.w)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(seriesHeader{Magic: seriesMagic, Version: seriesVersion, Count: len(series)}); err != nil {
		_ = gz.Close()
		return fmt.Errorf("failed to encode series header: %w", err)
	}
	for _, ms := range series {
		if ms == nil {
			_ = gz.Close()
			return errors.New("nil series")
		}
		rec := seriesRecord{
			Kind:       ms.Kind().String(),
			Units:      string(ms.Units()),
			Components: ms.Components(),
			Times:      ms.Times(),
			Values:     make([]float64, 0, ms.Len()*ms.Components()),
		}
		for i := 0; i < ms.Len(); i++ {
			rec.Values = append(rec.Values, ms.At(i).Values...)
		}
		if err := enc.Encode(rec); err != nil {
			_ = gz.Close()
			return fmt.Errorf("failed to encode %s series: %w", ms.Kind(), err)
		}
	}
	return gz.Close()
}

// DecodeSeries reads an object written by GobSink.
func DecodeSeries(r io.Reader) ([]*metric.Series, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("series object: %w", err)
	}
	defer gz.Close()
	dec := gob.NewDecoder(gz)

	var hdr seriesHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("series object header: %w", err)
	}
	if hdr.Magic != seriesMagic {
		return nil, errors.New("not a series object")
	}
	if hdr.Version != seriesVersion {
		return nil, fmt.Errorf("unsupported series object version %d", hdr.Version)
	}
	if hdr.Count < 0 {
		return nil, fmt.Errorf("negative series count %d", hdr.Count)
	}

	out := make([]*metric.Series, 0, hdr.Count)
	for i := 0; i < hdr.Count; i++ {
		var rec seriesRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("series %d: %w", i, err)
		}
		s, err := rec.series()
		if err != nil {
			return nil, fmt.Errorf("series %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (rec seriesRecord) series() (*metric.Series, error) {
	kind, err := metric.ParseKind(rec.Kind)
	if err != nil {
		return nil, err
	}
	if rec.Components < 0 || len(rec.Values) != len(rec.Times)*rec.Components {
		return nil, fmt.Errorf("%s: %d values for %d samples of %d components", kind, len(rec.Values), len(rec.Times), rec.Components)
	}
	s := metric.NewSeries(kind, units.Unit(rec.Units), rec.Components)
	s.Grow(len(rec.Times))
	for i, t := range rec.Times {
		if err := s.AppendValues(t, rec.Values[i*rec.Components:(i+1)*rec.Components]); err != nil {
			return nil, fmt.Errorf("%s sample %d: %w", kind, i, err)
		}
	}
	return s, nil
}

// GobSource reads series objects from r.
type GobSource struct {
	r io.Reader
}

// NewGobSource returns a source reading from r.
func NewGobSource(r io.Reader) *GobSource {
	return &GobSource{r: r}
}

// ReadSeries decodes the object.
func (s *GobSource) ReadSeries(ctx context.Context) ([]*metric.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return DecodeSeries(s.r)
}
