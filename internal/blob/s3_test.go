package blob

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory HTTP transport implementing path-style GetObject
// and PutObject.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.TrimPrefix(req.URL.Path, "/")
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: io.NopCloser(bytes.NewReader(nil)), Request: req}
	switch req.Method {
	case http.MethodPut:
		var body []byte
		if req.Body != nil {
			b, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			body = b
		}
		f.objects[path] = body
		f.types[path] = req.Header.Get("Content-Type")
		resp.Header.Set("ETag", `"etag"`)
	case http.MethodGet:
		b, ok := f.objects[path]
		if !ok {
			resp.StatusCode = http.StatusNotFound
			resp.Header.Set("Content-Type", "application/xml")
			resp.Body = io.NopCloser(strings.NewReader(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return resp, nil
		}
		resp.Header.Set("Content-Length", strconv.Itoa(len(b)))
		resp.ContentLength = int64(len(b))
		resp.Body = io.NopCloser(bytes.NewReader(b))
	default:
		resp.StatusCode = http.StatusNotImplemented
	}
	return resp, nil
}

func newTestS3(t *testing.T, f *fakeS3) *S3 {
	t.Helper()
	s, err := NewS3(context.Background(), S3Config{
		Region:          "us-east-1",
		Bucket:          "lom-test",
		Endpoint:        "https://s3.test.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: f},
	})
	require.NoError(t, err)
	return s
}

func TestS3PutGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFakeS3()
	s := newTestS3(t, f)

	require.NoError(t, s.Put(ctx, "runs/r1/piston.csv", strings.NewReader("time,s1\n0,1\n"), "text/csv"))
	assert.Equal(t, "time,s1\n0,1\n", string(f.objects["lom-test/runs/r1/piston.csv"]))
	assert.Equal(t, "text/csv", f.types["lom-test/runs/r1/piston.csv"])

	assert.Equal(t, "time,s1\n0,1\n", readAll(t, s, "runs/r1/piston.csv"))

	payload := []byte{0x1f, 0x8b, 0, 1, 2, 3}
	require.NoError(t, s.Put(ctx, "sens.bin", bytes.NewReader(payload), ""))
	rc, err := s.Get(ctx, "sens.bin")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, got)
}

func TestS3NotFound(t *testing.T) {
	t.Parallel()
	s := newTestS3(t, newFakeS3())
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewS3RequiresBucket(t *testing.T) {
	t.Parallel()
	_, err := NewS3(context.Background(), S3Config{})
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOM_S3_BUCKET", "b")
	t.Setenv("LOM_S3_REGION", "r")
	t.Setenv("LOM_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("LOM_S3_PATH_STYLE", "TRUE")
	cfg := ConfigFromEnv()
	assert.Equal(t, S3Config{Bucket: "b", Region: "r", Endpoint: "http://minio:9000", PathStyle: true}, cfg)

	t.Setenv("LOM_S3_BUCKET", "")
	_, err := OpenFromEnv(context.Background())
	assert.Error(t, err)
}
