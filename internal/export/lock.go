package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// LockedFile writes the artifact at path while holding an exclusive lock on
// path+".lock", so processes sharing the path never interleave writes. fn
// writes into a temporary file in the same directory that replaces path
// only when fn succeeds. Waiting for the lock stops when ctx is done.
func LockedFile(ctx context.Context, path string, fn func(w io.Writer) error) error {
	l := flock.New(path + ".lock")
	locked, err := l.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("cannot lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("cannot lock %s: held by another writer", path)
	}
	defer func() { _ = l.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
