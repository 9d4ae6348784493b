package archive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/timmy/layoffwatch/internal/source"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failOn  string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) Put(_ context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == m.failOn {
		return errors.New("bucket unavailable")
	}
	m.objects[key] = body
	m.types[key] = contentType
	return nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func payload() *source.RawPayload {
	return &source.RawPayload{
		SourceID:    "peerlist",
		ContentType: "text/html; charset=utf-8",
		FetchedAt:   time.Date(2025, time.July, 4, 23, 30, 0, 0, time.UTC),
		Pages: []source.Page{
			{URL: "https://peerlist.io/layoffs-tracker/2024", Body: []byte("<table>2024</table>")},
			{URL: "https://peerlist.io/layoffs-tracker/2023", Body: []byte("<table>2023</table>")},
		},
	}
}

func TestStoreWritesEveryPage(t *testing.T) {
	store := newMemStore()
	a := New(store, "/raw/")

	keys, err := a.Store(context.Background(), "run-1", payload())
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	want := []string{
		"raw/peerlist/2025-07-04/run-1-0.html",
		"raw/peerlist/2025-07-04/run-1-1.html",
	}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v", keys)
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("key[%d] = %s, want %s", i, keys[i], k)
		}
		if ok, _ := store.Exists(context.Background(), k); !ok {
			t.Errorf("%s not stored", k)
		}
	}
	if string(store.objects[want[1]]) != "<table>2023</table>" {
		t.Errorf("body = %q", store.objects[want[1]])
	}
	if store.types[want[0]] != "text/html; charset=utf-8" {
		t.Errorf("content type = %q", store.types[want[0]])
	}
}

func TestStoreStopsOnFailure(t *testing.T) {
	store := newMemStore()
	store.failOn = "peerlist/2025-07-04/run-2-1.html"
	a := New(store, "")

	keys, err := a.Store(context.Background(), "run-2", payload())
	if err == nil {
		t.Fatal("expected upload error")
	}
	if len(keys) != 1 {
		t.Errorf("keys written before failure = %v", keys)
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"application/json", "json"},
		{"application/json; charset=utf-8", "json"},
		{"application/x-ndjson", "jsonl"},
		{"text/html", "html"},
		{"text/plain", "txt"},
		{"", "bin"},
	}
	for _, tt := range tests {
		if got := extension(tt.contentType); got != tt.want {
			t.Errorf("extension(%q) = %s, want %s", tt.contentType, got, tt.want)
		}
	}
}

func TestS3StorePathStyle(t *testing.T) {
	var (
		mu   sync.Mutex
		puts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			mu.Lock()
			puts = append(puts, r.URL.Path)
			mu.Unlock()
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q", ct)
			}
			w.WriteHeader(http.StatusOK)
		case http.MethodHead:
			if r.URL.Path == "/layoff-raw/present.json" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	store, err := NewS3Store(context.Background(), S3Config{
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "layoff-raw",
	})
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}

	if err := store.Put(context.Background(), "raw/officepulse/2025-01-01/r-0.json", []byte(`[]`), "application/json"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(puts) != 1 || puts[0] != "/layoff-raw/raw/officepulse/2025-01-01/r-0.json" {
		t.Errorf("puts = %v", puts)
	}

	ok, err := store.Exists(context.Background(), "present.json")
	if err != nil || !ok {
		t.Errorf("Exists(present) = %v, %v", ok, err)
	}
	ok, err = store.Exists(context.Background(), "missing.json")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), S3Config{}); err == nil {
		t.Error("expected error without bucket")
	}
}
