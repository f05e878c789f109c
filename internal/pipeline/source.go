package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/lom/internal/blob"
	"github.com/banshee-data/lom/internal/rbm"
	"github.com/banshee-data/lom/internal/units"
)

// Iterator yields records one at a time. Next returns io.EOF after the last
// record.
type Iterator interface {
	Next() (rbm.Record, error)
	Close() error
}

// Source is a finite, restartable sequence of records: every Open starts a
// new pass from the first record.
type Source interface {
	Open(ctx context.Context) (Iterator, error)
}

// SliceSource serves records held in memory.
type SliceSource []rbm.Record

// Open starts a pass over the slice.
func (s SliceSource) Open(context.Context) (Iterator, error) {
	return &sliceIterator{records: s}, nil
}

type sliceIterator struct {
	records []rbm.Record
	next    int
}

func (it *sliceIterator) Next() (rbm.Record, error) {
	if it.next >= len(it.records) {
		return rbm.Record{}, io.EOF
	}
	rec := it.records[it.next]
	it.next++
	return rec, nil
}

func (it *sliceIterator) Close() error { return nil }

// CSVSource reads records from a rigid body motion CSV file, reopening the
// file on every pass.
type CSVSource struct {
	Path  string
	Basis units.Basis
}

// Open opens the file and reads its header.
func (s CSVSource) Open(context.Context) (Iterator, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open rigid body motions: %w", err)
	}
	r, err := rbm.NewCSVReader(f, s.Basis)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return &csvIterator{f: f, r: r}, nil
}

type csvIterator struct {
	f io.Closer
	r *rbm.CSVReader
}

func (it *csvIterator) Next() (rbm.Record, error) { return it.r.Read() }

func (it *csvIterator) Close() error { return it.f.Close() }

// BlobSource reads a rigid body motion CSV object from a blob store,
// fetching it again on every pass.
type BlobSource struct {
	Store blob.Store
	Key   string
	Basis units.Basis
}

// Open fetches the object and reads its header.
func (s BlobSource) Open(ctx context.Context) (Iterator, error) {
	rc, err := s.Store.Get(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("open rigid body motions: %w", err)
	}
	r, err := rbm.NewCSVReader(rc, s.Basis)
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("%s: %w", s.Key, err)
	}
	return &csvIterator{f: rc, r: r}, nil
}

// FuncSource adapts a function to Source.
type FuncSource func(ctx context.Context) (Iterator, error)

// Open calls f.
func (f FuncSource) Open(ctx context.Context) (Iterator, error) { return f(ctx) }

// IteratorFunc adapts a generator function to Iterator. Close is a no-op.
type IteratorFunc func() (rbm.Record, error)

// Next calls f.
func (f IteratorFunc) Next() (rbm.Record, error) { return f() }

// Close does nothing.
func (f IteratorFunc) Close() error { return nil }
