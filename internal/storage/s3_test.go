package storage_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"suture/internal/config"
	"suture/internal/storage"
	"suture/internal/testsupport"
)

// fakeS3 answers just enough of the S3 bucket API to observe the
// bucket bootstrap: HEAD reports the bucket missing, PUT creates it.
type fakeS3 struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (f *fakeS3) saw(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func TestNewS3CreatesMissingBucket(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Storage.Backend = config.BackendS3
	cfg.Storage.S3Endpoint = strings.TrimPrefix(srv.URL, "http://")
	cfg.Storage.S3AccessKey = "access"
	cfg.Storage.S3SecretKey = "secret"
	cfg.Storage.S3Bucket = "videos"
	cfg.Storage.S3Region = "us-east-1"

	if _, err := storage.New(cfg); err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if !fake.saw("HEAD /videos/") {
		t.Fatalf("expected bucket existence check, saw %v", fake.calls)
	}
	if !fake.saw("PUT /videos/") {
		t.Fatalf("expected bucket creation, saw %v", fake.calls)
	}
}
