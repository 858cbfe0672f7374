package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"media-ingest/internal/ingest"
)

func TestGetFileServesRendition(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	w := env.do(t, uploadRequest(t, "cat.jpg", "image/jpeg", testJPEG(t, 40, 40), nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}
	thumb := decode[ingest.Result](t, w).Manifest.Renditions["thumbnail"]

	onDisk, err := os.ReadFile(filepath.Join(env.base, filepath.FromSlash(thumb.RelativePath)))
	if err != nil {
		t.Fatal(err)
	}

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/files/"+thumb.RelativePath, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/webp" {
		t.Errorf("Content-Type = %q, want image/webp", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc == "" {
		t.Error("missing Cache-Control")
	}
	if !bytes.Equal(w.Body.Bytes(), onDisk) {
		t.Error("served body differs from stored rendition")
	}
	if int64(w.Body.Len()) != thumb.ByteSize {
		t.Errorf("served %d bytes, manifest says %d", w.Body.Len(), thumb.ByteSize)
	}

	w = env.do(t, httptest.NewRequest(http.MethodHead, "/files/"+thumb.RelativePath, nil))
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("HEAD status = %d, body length %d", w.Code, w.Body.Len())
	}
}

func TestGetFileErrors(t *testing.T) {
	env := newTestEnv(t, 0, 0)
	if err := os.MkdirAll(filepath.Join(env.base, "2026", "03", "dir.webp"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"missing file", "/files/2026/03/nothing_original.webp", http.StatusNotFound},
		{"not a rendition", "/files/2026/03/notes.txt", http.StatusBadRequest},
		{"directory", "/files/2026/03/dir.webp", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestGetFileRejectsTraversal(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	outside := filepath.Join(filepath.Dir(env.base), "secret.webp")
	if err := os.WriteFile(outside, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodGet, "/files/x", nil)
	r = mux.SetURLVars(r, map[string]string{"path": "../secret.webp"})
	r = r.WithContext(WithUserID(r.Context(), env.ownerID))
	w := httptest.NewRecorder()
	env.h.GetFile(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestIsSubPath(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		child string
		want  bool
	}{
		{filepath.Join(base, "2026", "03", "a.webp"), true},
		{filepath.Join(base, "a.webp"), true},
		{base, false},
		{filepath.Join(base, ".."), false},
		{filepath.Join(base, "..", "other", "a.webp"), false},
		{filepath.Join(base, "2026", "..", "..", "a.webp"), false},
		{base + "-sibling", false},
		{filepath.Join(base, "..a.webp"), true},
	}

	for _, tt := range tests {
		if got := isSubPath(base, tt.child); got != tt.want {
			t.Errorf("isSubPath(%q) = %v, want %v", tt.child, got, tt.want)
		}
	}
}
