package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/banshee-data/lom/internal/blob"
	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/monitoring"
)

var logf = monitoring.Component("Export")

const (
	csvContentType = "text/csv"
	gobContentType = "application/octet-stream"
)

// BlobSink writes tables as CSV and series as gob objects under one key of
// a blob store. Each write replaces the object.
type BlobSink struct {
	store blob.Store
	key   string
}

// NewBlobSink returns a sink writing to key in store.
func NewBlobSink(store blob.Store, key string) *BlobSink {
	return &BlobSink{store: store, key: key}
}

// WriteTable stores t as CSV.
func (s *BlobSink) WriteTable(ctx context.Context, t *Table) error {
	var buf bytes.Buffer
	if err := NewCSVSink(&buf).WriteTable(ctx, t); err != nil {
		return err
	}
	return s.put(ctx, &buf, csvContentType)
}

// WriteSeries stores series as one gob object.
func (s *BlobSink) WriteSeries(ctx context.Context, series ...*metric.Series) error {
	var buf bytes.Buffer
	if err := NewGobSink(&buf).WriteSeries(ctx, series...); err != nil {
		return err
	}
	return s.put(ctx, &buf, gobContentType)
}

func (s *BlobSink) put(ctx context.Context, buf *bytes.Buffer, contentType string) error {
	n := buf.Len()
	if err := s.store.Put(ctx, s.key, bytes.NewReader(buf.Bytes()), contentType); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	logf("wrote %d bytes to %s", n, s.key)
	return nil
}

// BlobSource reads a gob series object from a blob store key.
type BlobSource struct {
	store blob.Store
	key   string
}

// NewBlobSource returns a source reading key from store.
func NewBlobSource(store blob.Store, key string) *BlobSource {
	return &BlobSource{store: store, key: key}
}

// ReadSeries fetches and decodes the object.
func (s *BlobSource) ReadSeries(ctx context.Context) ([]*metric.Series, error) {
	rc, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	series, err := DecodeSeries(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.key, err)
	}
	return series, nil
}
