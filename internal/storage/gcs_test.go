package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const testBucket = "parceiros-test"

// fakeGCS serves the subset of the Cloud Storage JSON and XML APIs the
// client uses for single object reads, small uploads and deletes.
type fakeGCS struct {
	mu      sync.Mutex
	objects map[string][]byte
	pending map[string]string // resumable upload id -> object name
	reject  map[string]bool   // object names whose uploads fail
	nextID  int
	srv     *httptest.Server
}

func newFakeGCS(t *testing.T) *fakeGCS {
	t.Helper()
	f := &fakeGCS{
		objects: map[string][]byte{},
		pending: map[string]string{},
		reject:  map[string]bool{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGCS) kv(t *testing.T, prefix string) *GCSKV {
	t.Helper()
	kv, err := NewGCSKV(context.Background(), testBucket, prefix,
		option.WithEndpoint(f.srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
		gcs.WithJSONReads())
	if err != nil {
		t.Fatalf("gcs kv: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func (f *fakeGCS) object(name string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[name]
	return data, ok
}

func (f *fakeGCS) serve(w http.ResponseWriter, r *http.Request) {
	jsonPrefix := "/storage/v1/b/" + testBucket + "/o/"
	uploadPath := "/upload/storage/v1/b/" + testBucket + "/o"
	switch {
	case r.Method == http.MethodPost && r.URL.Path == uploadPath:
		f.upload(w, r)
	case r.Method == http.MethodPut && r.URL.Path == uploadPath:
		f.finishResumable(w, r)
	case strings.HasPrefix(r.URL.Path, jsonPrefix) && r.Method == http.MethodDelete:
		f.delete(w, strings.TrimPrefix(r.URL.Path, jsonPrefix))
	case strings.HasPrefix(r.URL.Path, jsonPrefix) && r.Method == http.MethodGet:
		f.read(w, strings.TrimPrefix(r.URL.Path, jsonPrefix))
	case strings.HasPrefix(r.URL.Path, "/"+testBucket+"/") && r.Method == http.MethodGet:
		f.read(w, strings.TrimPrefix(r.URL.Path, "/"+testBucket+"/"))
	default:
		gcsError(w, http.StatusNotImplemented, fmt.Sprintf("%s %s", r.Method, r.URL.Path))
	}
}

func (f *fakeGCS) read(w http.ResponseWriter, name string) {
	data, ok := f.object(name)
	if !ok {
		gcsError(w, http.StatusNotFound, "No such object: "+name)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.Header().Set("X-Goog-Generation", "1")
	_, _ = w.Write(data)
}

func (f *fakeGCS) delete(w http.ResponseWriter, name string) {
	f.mu.Lock()
	_, ok := f.objects[name]
	delete(f.objects, name)
	f.mu.Unlock()
	if !ok {
		gcsError(w, http.StatusNotFound, "No such object: "+name)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeGCS) upload(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("uploadType") {
	case "multipart":
		name, data, err := readMultipartUpload(r)
		if err != nil {
			gcsError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.store(w, name, data)
	case "resumable":
		var meta struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&meta)
		if meta.Name == "" {
			meta.Name = r.URL.Query().Get("name")
		}
		f.mu.Lock()
		f.nextID++
		id := fmt.Sprint(f.nextID)
		f.pending[id] = meta.Name
		f.mu.Unlock()
		w.Header().Set("Location", f.srv.URL+"/upload/storage/v1/b/"+testBucket+"/o?uploadType=resumable&upload_id="+id)
		w.WriteHeader(http.StatusOK)
	default:
		gcsError(w, http.StatusBadRequest, "unsupported upload type")
	}
}

func (f *fakeGCS) finishResumable(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("upload_id")
	f.mu.Lock()
	name, ok := f.pending[id]
	delete(f.pending, id)
	f.mu.Unlock()
	if !ok {
		gcsError(w, http.StatusNotFound, "unknown upload "+id)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		gcsError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.store(w, name, data)
}

func (f *fakeGCS) store(w http.ResponseWriter, name string, data []byte) {
	f.mu.Lock()
	if f.reject[name] {
		f.mu.Unlock()
		gcsError(w, http.StatusForbidden, "upload rejected: "+name)
		return
	}
	f.objects[name] = data
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"bucket":      testBucket,
		"name":        name,
		"size":        fmt.Sprint(len(data)),
		"contentType": "application/json",
		"generation":  "1",
	})
}

func readMultipartUpload(r *http.Request) (string, []byte, error) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return "", nil, err
	}
	mr := multipart.NewReader(r.Body, params["boundary"])
	metaPart, err := mr.NextPart()
	if err != nil {
		return "", nil, fmt.Errorf("metadata part: %w", err)
	}
	var meta struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
		return "", nil, fmt.Errorf("decode metadata: %w", err)
	}
	mediaPart, err := mr.NextPart()
	if err != nil {
		return "", nil, fmt.Errorf("media part: %w", err)
	}
	data, err := io.ReadAll(mediaPart)
	if err != nil {
		return "", nil, err
	}
	return meta.Name, data, nil
}

func gcsError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": msg},
	})
}

func TestGCSKVObjectLayout(t *testing.T) {
	ctx := context.Background()
	f := newFakeGCS(t)
	kv := f.kv(t, "parceiros")

	if err := kv.Put(ctx, "partners", []byte(`[{"id":"1"}]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, ok := f.object("parceiros/partners.json")
	if !ok || string(data) != `[{"id":"1"}]` {
		t.Fatalf("stored object = %q (found=%v)", data, ok)
	}
}

func TestGCSKVFailedPutCommitsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFakeGCS(t)
	kv := f.kv(t, "parceiros")
	f.reject["parceiros/partners.json"] = true

	if err := kv.Put(ctx, "partners", []byte(`[]`)); err == nil {
		t.Fatalf("expected put error")
	}
	if _, err := kv.Get(ctx, "partners"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after failed put: got %v, want ErrNotFound", err)
	}
}

func TestGCSKVCancelledPut(t *testing.T) {
	f := newFakeGCS(t)
	kv := f.kv(t, "parceiros")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := kv.Put(ctx, "partners", []byte(`[]`)); err == nil {
		t.Fatalf("expected put error on cancelled context")
	}
	if _, ok := f.object("parceiros/partners.json"); ok {
		t.Fatalf("cancelled put committed an object")
	}
}
