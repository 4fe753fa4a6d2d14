package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// fakeS3 records PUT requests and answers them like an S3 server would.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := f.objects[r.URL.Path]; ok {
			w.Header().Set("Content-Length", "0")
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string][]byte), types: make(map[string]string)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:        credentials.NewStaticV4("key", "secret", ""),
		Secure:       false,
		Region:       "us-east-1",
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		t.Fatalf("minio.New: %v", err)
	}
	return NewStore(client, "access-faces", "captures"), fake
}

func TestStore_PutObject(t *testing.T) {
	store, fake := newTestStore(t)

	data := []byte{0xff, 0xd8, 0xff, 0xe0}
	if err := store.PutObject(context.Background(), "log_1.jpg", data, "image/jpeg"); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	if _, ok := fake.objects["/access-faces/captures/log_1.jpg"]; !ok {
		t.Fatalf("object not uploaded, have %d objects", len(fake.objects))
	}
	if ct := fake.types["/access-faces/captures/log_1.jpg"]; ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
}

func TestStore_Exists(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if ok, err := store.Exists(ctx, "missing.jpg"); err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v, want false, nil", ok, err)
	}
	if err := store.PutObject(ctx, "face_7_x.jpg", []byte{1}, "image/jpeg"); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if ok, err := store.Exists(ctx, "face_7_x.jpg"); err != nil || !ok {
		t.Errorf("Exists(face_7_x.jpg) = %v, %v, want true, nil", ok, err)
	}
}
