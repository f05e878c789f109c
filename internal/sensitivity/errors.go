package sensitivity

import (
	"errors"
	"fmt"

	"github.com/banshee-data/lom/internal/metric"
)

var (
	// ErrLoad is returned when an artifact cannot be read or decoded.
	ErrLoad = errors.New("sensitivity artifact load failed")
	// ErrMalformedMatrix is returned when a matrix or its metadata is
	// missing or internally inconsistent.
	ErrMalformedMatrix = errors.New("malformed sensitivity matrix")
	// ErrUnknownMetric is returned when the store holds no matrix for a kind.
	ErrUnknownMetric = errors.New("unknown metric")
)

// MalformedError describes why a matrix failed validation.
type MalformedError struct {
	Kind   metric.Kind
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Kind.Valid() {
		return fmt.Sprintf("%v: %s: %s", ErrMalformedMatrix, e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v: %s", ErrMalformedMatrix, e.Reason)
}

func (e *MalformedError) Unwrap() error { return ErrMalformedMatrix }

func malformed(k metric.Kind, format string, args ...any) error {
	return &MalformedError{Kind: k, Reason: fmt.Sprintf(format, args...)}
}
