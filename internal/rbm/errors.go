package rbm

import (
	"errors"
	"fmt"

	"github.com/banshee-data/lom/internal/segment"
)

// ErrMissingSegment is returned when a snapshot lacks a segment required by a
// segment set.
var ErrMissingSegment = errors.New("missing segment")

// ErrMalformedSegment is reported when a record carries an unusable state
// for one segment while the rest of the record is readable.
var ErrMalformedSegment = errors.New("malformed segment state")

// ErrShape is returned when input arrays do not have the expected shape.
var ErrShape = errors.New("invalid rigid body motion shape")

// MissingSegmentError names the first segment absent from a snapshot.
type MissingSegmentError struct {
	Segment segment.ID
}

func (e *MissingSegmentError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingSegment, e.Segment)
}

func (e *MissingSegmentError) Unwrap() error { return ErrMissingSegment }

// ShapeError reports a length mismatch while building states.
type ShapeError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%v: %s has %d values, want %d", ErrShape, e.What, e.Got, e.Want)
}

func (e *ShapeError) Unwrap() error { return ErrShape }

// SegmentError describes why one segment of a record could not be read.
type SegmentError struct {
	Line    int
	Segment segment.ID
	Reason  string
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("%v: line %d: %s %s", ErrMalformedSegment, e.Line, e.Segment, e.Reason)
}

func (e *SegmentError) Unwrap() error { return ErrMalformedSegment }
