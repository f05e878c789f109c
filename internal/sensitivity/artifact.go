package sensitivity

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/lom/internal/blob"
	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/monitoring"
	"github.com/banshee-data/lom/internal/segment"
	"github.com/banshee-data/lom/internal/units"
)

var logf = monitoring.Component("Store")

const (
	// DefaultFileName is the artifact file name looked up by DefaultPath.
	DefaultFileName = "optical_sensitivities.bin"
	// EnvDir names the environment variable holding the artifact directory.
	EnvDir = "LOM"

	artifactMagic   = "lom-sensitivities"
	artifactVersion = 1
)

// DefaultPath is the artifact location: DefaultFileName in the directory
// named by $LOM, or in the working directory when unset.
func DefaultPath() string {
	dir := os.Getenv(EnvDir)
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, DefaultFileName)
}

// The artifact is a gzip stream of gob values: an artifactHeader, Count
// artifactMatrix values, then one artifactMasks.
type artifactHeader struct {
	Magic   string
	Version int
	Count   int
}

type artifactMatrix struct {
	Kind        string
	Units       string
	Translation string
	Rotation    string
	Segments    []string
	Rows        int
	Cols        int
	Data        []float64
}

type artifactMasks struct {
	Segment []int32
	Pupil   []bool
}

// Encode writes store as an artifact. Values round-trip bit for bit.
func Encode(w io.Writer, s *Store) error {
	gz := gzip.NewWriter(w)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(artifactHeader{Magic: artifactMagic, Version: artifactVersion, Count: s.Len()}); err != nil {
		_ = gz.Close()
		return fmt.Errorf("failed to encode artifact header: %w", err)
	}
	for _, k := range s.order {
		spec := s.byKind[k].Spec()
		am := artifactMatrix{
			Kind:        spec.Kind.String(),
			Units:       string(spec.Units),
			Translation: string(spec.InputBasis.Translation),
			Rotation:    string(spec.InputBasis.Rotation),
			Segments:    spec.Segments.Strings(),
			Rows:        spec.Rows,
			Cols:        spec.Cols,
			Data:        spec.Data,
		}
		if err := enc.Encode(am); err != nil {
			_ = gz.Close()
			return fmt.Errorf("failed to encode %s matrix: %w", k, err)
		}
	}
	if err := enc.Encode(artifactMasks{Segment: s.masks.Segment, Pupil: s.masks.Pupil}); err != nil {
		_ = gz.Close()
		return fmt.Errorf("failed to encode masks: %w", err)
	}
	return gz.Close()
}

// Load decodes an artifact and validates every matrix. Decoding failures wrap
// ErrLoad; inconsistent content wraps ErrMalformedMatrix.
func Load(r io.Reader) (*Store, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer gz.Close()
	dec := gob.NewDecoder(gz)

	var hdr artifactHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrLoad, err)
	}
	if hdr.Magic != artifactMagic {
		return nil, fmt.Errorf("%w: not a sensitivity artifact", ErrLoad)
	}
	if hdr.Version != artifactVersion {
		return nil, fmt.Errorf("%w: unsupported artifact version %d", ErrLoad, hdr.Version)
	}
	if hdr.Count < 0 {
		return nil, malformed(metric.Invalid, "negative matrix count %d", hdr.Count)
	}

	matrices := make([]*Matrix, 0, hdr.Count)
	for i := 0; i < hdr.Count; i++ {
		var am artifactMatrix
		if err := dec.Decode(&am); err != nil {
			return nil, fmt.Errorf("%w: matrix %d: %w", ErrLoad, i, err)
		}
		m, err := am.matrix()
		if err != nil {
			return nil, err
		}
		matrices = append(matrices, m)
	}
	var masks artifactMasks
	if err := dec.Decode(&masks); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: masks: %w", ErrLoad, err)
	}
	return NewWithMasks(Masks{Segment: masks.Segment, Pupil: masks.Pupil}, matrices...)
}

func (am artifactMatrix) matrix() (*Matrix, error) {
	if am.Kind == "" {
		return nil, malformed(metric.Invalid, "missing metric kind tag")
	}
	kind, err := metric.ParseKind(am.Kind)
	if err != nil {
		return nil, malformed(metric.Invalid, "%v", err)
	}
	if len(am.Segments) == 0 {
		return nil, malformed(kind, "missing calibration segment set")
	}
	set, err := segment.ParseSet(am.Segments)
	if err != nil {
		return nil, malformed(kind, "calibration segment set: %v", err)
	}
	return NewMatrix(Spec{
		Kind:       kind,
		Units:      units.Unit(am.Units),
		InputBasis: units.Basis{Translation: units.Unit(am.Translation), Rotation: units.Unit(am.Rotation)},
		Segments:   set,
		Rows:       am.Rows,
		Cols:       am.Cols,
		Data:       am.Data,
	})
}

// LoadFile loads the artifact at path.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()
	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logf("loaded %d sensitivity matrices from %s", s.Len(), path)
	return s, nil
}

// Open loads the artifact stored under key.
func Open(ctx context.Context, bs blob.Store, key string) (*Store, error) {
	rc, err := bs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer rc.Close()
	s, err := Load(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	logf("loaded %d sensitivity matrices from %s", s.Len(), key)
	return s, nil
}

// SaveFile writes store as an artifact at path.
func SaveFile(path string, s *Store) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
