package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("blob not found")

// Store reads and writes whole objects. Put replaces an existing object.
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
}

// Open resolves a location to a store and a key. "s3://bucket/key" opens an
// S3 store using the LOM_S3_* environment for everything but the bucket, and
// "s3:///key" takes the bucket from LOM_S3_BUCKET as well. Anything else is a
// filesystem path split into its directory and base name.
func Open(ctx context.Context, location string) (Store, string, error) {
	if rest, ok := strings.CutPrefix(location, "s3://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if key == "" {
			return nil, "", fmt.Errorf("invalid s3 location %q: want s3://bucket/key", location)
		}
		var (
			s   *S3
			err error
		)
		if bucket == "" {
			s, err = OpenFromEnv(ctx)
		} else {
			cfg := ConfigFromEnv()
			cfg.Bucket = bucket
			s, err = NewS3(ctx, cfg)
		}
		if err != nil {
			return nil, "", err
		}
		return s, key, nil
	}
	dir, key := splitPath(location)
	if key == "" {
		return nil, "", fmt.Errorf("invalid location %q: missing file name", location)
	}
	s, err := NewFS(dir)
	if err != nil {
		return nil, "", err
	}
	return s, key, nil
}

func splitPath(p string) (dir, base string) {
	i := strings.LastIndexAny(p, `/\`)
	if i < 0 {
		return ".", p
	}
	if i == 0 {
		return p[:1], p[1:]
	}
	return p[:i], p[i+1:]
}
