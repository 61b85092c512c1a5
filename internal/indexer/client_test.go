package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/scribeapp/scribe/internal/log"
	"github.com/scribeapp/scribe/internal/registry"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "user-42", log.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		userID  string
		wantErr bool
	}{
		{"valid", "http://localhost:8001", "u1", false},
		{"trailing slash accepted", "http://localhost:8001/", "u1", false},
		{"missing base URL", "", "u1", true},
		{"missing user ID", "http://localhost:8001", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.baseURL, tt.userID, log.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Error("New() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if strings.HasSuffix(c.baseURL, "/") {
				t.Errorf("baseURL %q keeps trailing slash", c.baseURL)
			}
		})
	}
}

func TestFiles(t *testing.T) {
	t.Run("decodes the snapshot and scopes by user", func(t *testing.T) {
		var gotHeader string
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != "/files" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			gotHeader = r.Header.Get("X-User-Id")
			w.Write([]byte(`{"files":[
				{"path":"/docs/a.pdf","status":"indexing","indexing_time_seconds":null,"last_updated":100},
				{"path":"/docs/b.md","status":"indexed","indexing_time_seconds":1.5,"last_updated":90}
			]}`))
		}))

		got, err := client.Files(context.Background())
		if err != nil {
			t.Fatalf("Files() error = %v", err)
		}
		if gotHeader != "user-42" {
			t.Errorf("X-User-Id = %q, want %q", gotHeader, "user-42")
		}

		secs := 1.5
		want := []registry.FileRecord{
			{Path: "/docs/a.pdf", Status: registry.StatusIndexing, LastUpdated: 100},
			{Path: "/docs/b.md", Status: registry.StatusIndexed, IndexingSeconds: &secs, LastUpdated: 90},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("server failure carries the detail", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"storage unavailable"}`))
		}))

		_, err := client.Files(context.Background())
		if err == nil || !strings.Contains(err.Error(), "storage unavailable") {
			t.Errorf("Files() error = %v, want detail surfaced", err)
		}
	})
}

func TestRemove(t *testing.T) {
	t.Run("posts the path list", func(t *testing.T) {
		var gotBody removeRequest
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/files/remove" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusOK)
		}))

		if err := client.Remove(context.Background(), "/docs/a.pdf"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if diff := cmp.Diff([]string{"/docs/a.pdf"}, gotBody.Files); diff != "" {
			t.Errorf("request body mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("failure surfaces the detail verbatim", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"file not found: /docs/a.pdf"}`))
		}))

		err := client.Remove(context.Background(), "/docs/a.pdf")
		if err == nil || err.Error() != "file not found: /docs/a.pdf" {
			t.Errorf("Remove() error = %v, want the detail text verbatim", err)
		}
	})

	t.Run("failure without detail falls back to the status", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		err := client.Remove(context.Background(), "/docs/a.pdf")
		if err == nil || !strings.Contains(err.Error(), "502") {
			t.Errorf("Remove() error = %v, want the HTTP status", err)
		}
	})
}

func TestStats(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stats" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"total_files":3,"total_indexing_time":4.5,"average_indexing_time":1.5,"files":[]}`))
	}))

	got, err := client.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := registry.Stats{TotalFiles: 3, TotalIndexingSeconds: 4.5, AverageIndexingSeconds: 1.5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestUpload(t *testing.T) {
	t.Run("posts a multipart batch and reports progress", func(t *testing.T) {
		a := writeTempFile(t, "a.pdf", strings.Repeat("a", 2048))
		b := writeTempFile(t, "b.txt", "hello")

		var gotNames []string
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parsing multipart: %v", err)
			}
			for _, fh := range r.MultipartForm.File["files"] {
				gotNames = append(gotNames, fh.Filename)
			}
			w.Write([]byte(`{"files":[{},{}]}`))
		}))

		var lastLoaded, lastTotal int64
		count, err := client.Upload(context.Background(), []string{a, b}, func(loaded, total int64) {
			if loaded < lastLoaded {
				t.Errorf("progress regressed: %d after %d", loaded, lastLoaded)
			}
			lastLoaded, lastTotal = loaded, total
		})
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if count != 2 {
			t.Errorf("Upload() count = %d, want 2", count)
		}
		if diff := cmp.Diff([]string{"a.pdf", "b.txt"}, gotNames); diff != "" {
			t.Errorf("uploaded names mismatch (-want +got):\n%s", diff)
		}
		if lastLoaded != lastTotal || lastTotal == 0 {
			t.Errorf("final progress %d/%d, want the full body reported", lastLoaded, lastTotal)
		}
	})

	t.Run("rejection body is opaque error text", func(t *testing.T) {
		a := writeTempFile(t, "a.pdf", "x")
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			w.Write([]byte("batch exceeds plan limit"))
		}))

		_, err := client.Upload(context.Background(), []string{a}, nil)
		if err == nil || !strings.Contains(err.Error(), "batch exceeds plan limit") {
			t.Errorf("Upload() error = %v, want the server text", err)
		}
	})

	t.Run("missing local file fails before any request", func(t *testing.T) {
		requests := 0
		client := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			requests++
		}))

		_, err := client.Upload(context.Background(), []string{"/no/such/file.pdf"}, nil)
		if err == nil {
			t.Error("Upload() error = nil, want open failure")
		}
		if requests != 0 {
			t.Errorf("server saw %d requests, want 0", requests)
		}
	})
}
