package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// pngBytes is a minimal payload that sniffs as image/png
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestFetchLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pic.png")
	if err := os.WriteFile(path, pngBytes, 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(Options{})
	data, err := r.Fetch(context.Background(), path)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(data) != len(pngBytes) {
		t.Errorf("Fetch returned %d bytes, want %d", len(data), len(pngBytes))
	}
}

func TestFetchRejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("just text, no picture"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(Options{})
	if _, err := r.Fetch(context.Background(), path); !errors.Is(err, ErrNotImage) {
		t.Fatalf("Fetch error = %v, want %v", err, ErrNotImage)
	}
}

func TestFetchMissingFile(t *testing.T) {
	r := NewResolver(Options{})
	if _, err := r.Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("Fetch succeeded for missing file")
	}
}

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/pic.png":
			w.Write(pngBytes)
		case "/page.html":
			w.Write([]byte("<html><body>hello</body></html>"))
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()

	r := NewResolver(Options{HTTPClient: srv.Client()})

	data, err := r.Fetch(context.Background(), srv.URL+"/pic.png")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(data) != len(pngBytes) {
		t.Errorf("Fetch returned %d bytes, want %d", len(data), len(pngBytes))
	}

	if _, err := r.Fetch(context.Background(), srv.URL+"/page.html"); !errors.Is(err, ErrNotImage) {
		t.Errorf("Fetch(html) error = %v, want %v", err, ErrNotImage)
	}

	if _, err := r.Fetch(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Error("Fetch(404) succeeded, want error")
	}
}

func TestParseS3Locator(t *testing.T) {
	tests := []struct {
		locator string
		bucket  string
		key     string
		wantErr bool
	}{
		{locator: "s3://photos/cats/tabby.jpg", bucket: "photos", key: "cats/tabby.jpg"},
		{locator: "s3://bucket/key", bucket: "bucket", key: "key"},
		{locator: "s3://bucket", wantErr: true},
		{locator: "s3://bucket/", wantErr: true},
		{locator: "s3:///key", wantErr: true},
	}

	for _, tt := range tests {
		bucket, key, err := parseS3Locator(tt.locator)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseS3Locator(%q) succeeded, want error", tt.locator)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseS3Locator(%q) failed: %v", tt.locator, err)
			continue
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("parseS3Locator(%q) = %s, %s, want %s, %s", tt.locator, bucket, key, tt.bucket, tt.key)
		}
	}
}
