package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/config"
)

type fakeS3 struct {
	mu       sync.Mutex
	buckets  map[string]bool
	objects  map[string][]byte
	headers  map[string]http.Header
	requests []string
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	f := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, headers: map[string]http.Header{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)

		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/archive":
			if !f.buckets["archive"] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/archive":
			f.buckets["archive"] = true
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			f.objects[r.URL.Path] = body
			f.headers[r.URL.Path] = r.Header.Clone()
			w.Header().Set("ETag", `"abc"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestS3Store(t *testing.T, endpoint string) *S3Store {
	t.Helper()
	s, err := NewS3Store(context.Background(), config.ArchiveConfig{
		S3Endpoint:     endpoint,
		S3Region:       "us-east-1",
		S3Bucket:       "archive",
		S3AccessKey:    "minio",
		S3SecretKey:    "minio-secret",
		S3UsePathStyle: true,
	})
	require.NoError(t, err)
	return s
}

func TestS3Store_EnsureBucket(t *testing.T) {
	f, srv := newFakeS3(t)
	s := newTestS3Store(t, srv.URL)

	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.True(t, f.buckets["archive"])
	require.NoError(t, s.HealthCheck(context.Background()))
}

func TestS3Store_PutObject(t *testing.T) {
	f, srv := newFakeS3(t)
	s := newTestS3Store(t, srv.URL)

	data := []byte("{\"id\":\"a1\"}\n{\"id\":\"a2\"}\n")
	require.NoError(t, s.PutObject(context.Background(), "activities/2030/01/15/batch.jsonl", data, "application/x-ndjson"))

	path := "/archive/activities/2030/01/15/batch.jsonl"
	require.Contains(t, f.objects, path)
	assert.Contains(t, string(f.objects[path]), `{"id":"a2"}`)
	assert.Equal(t, "application/x-ndjson", f.headers[path].Get("Content-Type"))
	assert.Len(t, f.headers[path].Get("X-Amz-Meta-Checksum-Sha256"), 64)
	assert.Contains(t, f.headers[path].Get("Authorization"), "Credential=minio/")
}

func TestS3Store_HealthCheckFailsWithoutBucket(t *testing.T) {
	_, srv := newFakeS3(t)
	s := newTestS3Store(t, srv.URL)
	assert.ErrorContains(t, s.HealthCheck(context.Background()), "s3 health check failed")
}
