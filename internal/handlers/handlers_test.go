package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"media-ingest/internal/database"
	"media-ingest/internal/ingest"
	"media-ingest/internal/media"
	"media-ingest/internal/quota"
	"media-ingest/internal/startup"
	"media-ingest/internal/storage"
	"media-ingest/internal/verify"
)

// pngEncoder stands in for the libvips WebP encoder.
type pngEncoder struct{}

func (pngEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type testEnv struct {
	h       *Handlers
	db      *database.Database
	router  *mux.Router
	base    string
	bearer  string
	ownerID int64
}

func newTestEnv(t *testing.T, ceiling int, maxUpload int64) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(ctx, filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("database.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	base := t.TempDir()
	layout := storage.NewLayout(base)
	generator := media.NewGenerator(media.NewTranscoder(pngEncoder{}, media.White), media.DefaultQualities())
	svc := ingest.NewService(db, quota.NewGuard(db, ceiling), verify.New(0), layout, generator,
		ingest.Config{MaxUploadBytes: maxUpload, TranscodeSlots: 2})

	profiles, err := startup.ParseProfiles([]byte(`
profiles:
  default:
    - {name: thumbnail, width: 16, height: 16, mode: cover}
    - {name: medium, width: 32, height: auto, mode: contain}
  tiny:
    - {name: thumbnail, width: 8, height: 8, mode: cover}
`))
	if err != nil {
		t.Fatalf("ParseProfiles() error: %v", err)
	}

	h := New(db, svc, layout, profiles)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	const owner = 7
	bearer, _, err := db.CreateToken(ctx, owner, "tests")
	if err != nil {
		t.Fatalf("CreateToken() error: %v", err)
	}

	return &testEnv{h: h, db: db, router: router, base: base, bearer: bearer, ownerID: owner}
}

func (e *testEnv) do(t *testing.T, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if r.Header.Get("Authorization") == "" {
		r.Header.Set("Authorization", "Bearer "+e.bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// uploadRequest builds a multipart POST. An empty filename omits the file part.
func uploadRequest(t *testing.T, filename, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/assets", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return v
}
