package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"media-ingest/internal/ingest"
	"media-ingest/internal/mediatypes"
)

func TestUploadAssetCreatesManifest(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	w := env.do(t, uploadRequest(t, "beach.jpg", "image/jpeg", testJPEG(t, 60, 40), nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	res := decode[ingest.Result](t, w)
	if res.AssetID == 0 {
		t.Fatal("response has no assetId")
	}
	if got := w.Header().Get("Location"); got != fmt.Sprintf("/api/assets/%d", res.AssetID) {
		t.Errorf("Location = %q", got)
	}
	wantNames := []string{"original", "thumbnail", "medium"}
	if !reflect.DeepEqual(res.CreatedRenditionNames, wantNames) {
		t.Errorf("createdRenditionNames = %v, want %v", res.CreatedRenditionNames, wantNames)
	}
	if res.Manifest.OwnerID != env.ownerID || res.Manifest.OriginalName != "beach.jpg" {
		t.Errorf("unexpected manifest: %+v", res.Manifest)
	}

	for name, r := range res.Manifest.Renditions {
		path := filepath.Join(env.base, filepath.FromSlash(r.RelativePath))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("rendition %s not on disk at %s: %v", name, path, err)
		}
	}
	if thumb := res.Manifest.Renditions["thumbnail"]; thumb.Width != 16 || thumb.Height != 16 {
		t.Errorf("thumbnail = %s, want 16x16", thumb.Dimensions())
	}
}

func TestUploadAssetProfile(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	w := env.do(t, uploadRequest(t, "a.jpg", "image/jpeg", testJPEG(t, 30, 30), map[string]string{"profile": "tiny"}))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	res := decode[ingest.Result](t, w)
	if !reflect.DeepEqual(res.CreatedRenditionNames, []string{"original", "thumbnail"}) {
		t.Errorf("createdRenditionNames = %v", res.CreatedRenditionNames)
	}

	w = env.do(t, uploadRequest(t, "a.jpg", "image/jpeg", testJPEG(t, 30, 30), map[string]string{"profile": "poster"}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown profile status = %d, want 400", w.Code)
	}
	if resp := decode[ErrorResponse](t, w); resp.Reason != string(ingest.ReasonInvalidSizes) {
		t.Errorf("reason = %q, want invalid_sizes", resp.Reason)
	}
}

func TestUploadAssetRejections(t *testing.T) {
	jpegData := testJPEG(t, 20, 20)

	tests := []struct {
		name        string
		filename    string
		contentType string
		data        []byte
		maxUpload   int64
		wantStatus  int
		wantReason  ingest.Reason
	}{
		{
			name:       "no file part",
			wantStatus: http.StatusBadRequest,
			wantReason: ingest.ReasonMissingFile,
		},
		{
			name:        "empty file",
			filename:    "empty.jpg",
			contentType: "image/jpeg",
			data:        []byte{},
			wantStatus:  http.StatusBadRequest,
			wantReason:  ingest.ReasonMissingFile,
		},
		{
			name:        "declared type not allowed",
			filename:    "doc.pdf",
			contentType: "application/pdf",
			data:        jpegData,
			wantStatus:  http.StatusUnsupportedMediaType,
			wantReason:  ingest.ReasonDisallowedType,
		},
		{
			name:        "pdf renamed as png",
			filename:    "fake.png",
			contentType: "image/png",
			data:        []byte("%PDF-1.7 definitely not an image"),
			wantStatus:  http.StatusUnsupportedMediaType,
			wantReason:  ingest.ReasonDisallowedType,
		},
		{
			name:        "png signature without an image",
			filename:    "wrapped.png",
			contentType: "image/png",
			data:        append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte("junk"), 16)...),
			wantStatus:  http.StatusUnprocessableEntity,
			wantReason:  ingest.ReasonTypeMismatch,
		},
		{
			name:        "file over the limit",
			filename:    "big.jpg",
			contentType: "image/jpeg",
			data:        jpegData,
			maxUpload:   int64(len(jpegData) - 1),
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantReason:  ingest.ReasonTooLarge,
		},
		{
			name:        "body far over the limit",
			filename:    "huge.jpg",
			contentType: "image/jpeg",
			data:        bytes.Repeat([]byte{0xff}, 200<<10),
			maxUpload:   1024,
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantReason:  ingest.ReasonTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 0, tt.maxUpload)

			w := env.do(t, uploadRequest(t, tt.filename, tt.contentType, tt.data, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tt.wantStatus, w.Body.String())
			}
			resp := decode[ErrorResponse](t, w)
			if resp.Reason != string(tt.wantReason) {
				t.Errorf("reason = %q, want %q", resp.Reason, tt.wantReason)
			}
			if resp.Error == "" || strings.Contains(resp.Error, env.base) {
				t.Errorf("unexpected user message %q", resp.Error)
			}

			entries, _ := os.ReadDir(env.base)
			for _, e := range entries {
				if !strings.HasPrefix(e.Name(), ".") {
					t.Errorf("rejected upload left %s in storage", e.Name())
				}
			}
		})
	}
}

func TestUploadAssetNotMultipart(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	r := httptest.NewRequest(http.MethodPost, "/api/assets", strings.NewReader(`{"file":"x"}`))
	r.Header.Set("Content-Type", "application/json")
	w := env.do(t, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUploadAssetQuota(t *testing.T) {
	env := newTestEnv(t, 2, 0)
	data := testJPEG(t, 20, 20)

	for i := 0; i < 2; i++ {
		if w := env.do(t, uploadRequest(t, "a.jpg", "image/jpeg", data, nil)); w.Code != http.StatusCreated {
			t.Fatalf("upload %d status = %d, body %s", i, w.Code, w.Body.String())
		}
	}

	w := env.do(t, uploadRequest(t, "a.jpg", "image/jpeg", data, nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	resp := decode[ErrorResponse](t, w)
	if resp.Reason != string(ingest.ReasonQuotaExceeded) || resp.QuotaCeiling != 2 {
		t.Errorf("response = %+v, want quota_exceeded with ceiling 2", resp)
	}

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/api/quota", nil))
	quotaResp := decode[QuotaResponse](t, w)
	want := QuotaResponse{Used: 2, Ceiling: 2, Remaining: 0, Enabled: true}
	if quotaResp != want {
		t.Errorf("quota = %+v, want %+v", quotaResp, want)
	}
}

func TestGetQuotaUnlimited(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/api/quota", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	want := QuotaResponse{Used: 0, Ceiling: 0, Remaining: -1, Enabled: false}
	if got := decode[QuotaResponse](t, w); got != want {
		t.Errorf("quota = %+v, want %+v", got, want)
	}
}

func TestListAndGetAssets(t *testing.T) {
	env := newTestEnv(t, 0, 0)
	data := testJPEG(t, 20, 20)

	var ids []int64
	for i := 0; i < 3; i++ {
		w := env.do(t, uploadRequest(t, fmt.Sprintf("p%d.jpg", i), "image/jpeg", data, nil))
		if w.Code != http.StatusCreated {
			t.Fatalf("upload status = %d", w.Code)
		}
		ids = append(ids, decode[ingest.Result](t, w).AssetID)
	}

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/api/assets?limit=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	list := decode[AssetListResponse](t, w)
	if list.Limit != 2 || len(list.Assets) != 2 {
		t.Fatalf("list = %+v, want 2 assets", list)
	}
	if list.Assets[0].ID != ids[2] {
		t.Errorf("first listed asset = %d, want newest %d", list.Assets[0].ID, ids[2])
	}

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/api/assets?offset=2&limit=-5", nil))
	list = decode[AssetListResponse](t, w)
	if len(list.Assets) != 1 || list.Assets[0].ID != ids[0] {
		t.Errorf("second page = %+v", list.Assets)
	}

	w = env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/assets/%d", ids[1]), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	manifest := decode[mediatypes.AssetManifest](t, w)
	if manifest.ID != ids[1] || manifest.OriginalName != "p1.jpg" {
		t.Errorf("manifest = %+v", manifest)
	}

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/api/assets/99999", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing asset status = %d, want 404", w.Code)
	}
}

func TestGetAssetOtherOwner(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	w := env.do(t, uploadRequest(t, "mine.jpg", "image/jpeg", testJPEG(t, 20, 20), nil))
	id := decode[ingest.Result](t, w).AssetID

	other, _, err := env.db.CreateToken(context.Background(), env.ownerID+1, "other")
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/assets/%d", id), nil)
	r.Header.Set("Authorization", "Bearer "+other)
	if w := env.do(t, r); w.Code != http.StatusNotFound {
		t.Errorf("other owner status = %d, want 404", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/assets", nil)
	r.Header.Set("Authorization", "Bearer "+other)
	if list := decode[AssetListResponse](t, env.do(t, r)); len(list.Assets) != 0 {
		t.Errorf("other owner sees %d assets", len(list.Assets))
	}
}

func TestIngestStatus(t *testing.T) {
	tests := []struct {
		reason ingest.Reason
		want   int
	}{
		{ingest.ReasonMissingFile, http.StatusBadRequest},
		{ingest.ReasonInvalidSizes, http.StatusBadRequest},
		{ingest.ReasonDisallowedType, http.StatusUnsupportedMediaType},
		{ingest.ReasonTooLarge, http.StatusRequestEntityTooLarge},
		{ingest.ReasonTypeMismatch, http.StatusUnprocessableEntity},
		{ingest.ReasonCorruptImage, http.StatusUnprocessableEntity},
		{ingest.ReasonQuotaExceeded, http.StatusForbidden},
		{ingest.ReasonStorageUnavailable, http.StatusServiceUnavailable},
		{ingest.ReasonCanceled, statusClientClosedRequest},
		{ingest.ReasonInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := ingestStatus(tt.reason); got != tt.want {
			t.Errorf("ingestStatus(%s) = %d, want %d", tt.reason, got, tt.want)
		}
	}
}

func TestWriteIngestErrorHidesDetail(t *testing.T) {
	env := newTestEnv(t, 0, 0)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/assets", nil)

	env.h.writeIngestError(w, r, fmt.Errorf("open /srv/storage/2026/03/x.webp: permission denied"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "/srv/storage") {
		t.Errorf("response leaks internal detail: %s", w.Body.String())
	}
	if resp := decode[ErrorResponse](t, w); resp.Reason != string(ingest.ReasonInternal) {
		t.Errorf("reason = %q, want internal", resp.Reason)
	}
}
