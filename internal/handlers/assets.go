package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-ingest/internal/database"
	"media-ingest/internal/ingest"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
	"media-ingest/internal/middleware"
)

const (
	// multipartOverhead allows for boundaries and part headers on top of
	// the file itself.
	multipartOverhead = 64 << 10
	// multipartMemory is held in memory before parts spill to temp files.
	multipartMemory = 1 << 20
	// maxListLimit bounds one page of GET /api/assets.
	maxListLimit = 200
	// statusClientClosedRequest is logged when the client went away mid-upload.
	statusClientClosedRequest = 499
)

// QuotaResponse reports an owner's standing against the asset ceiling.
type QuotaResponse struct {
	Used      int  `json:"used"`
	Ceiling   int  `json:"ceiling"`
	Remaining int  `json:"remaining"`
	Enabled   bool `json:"enabled"`
}

// AssetListResponse is one page of an owner's manifests, newest first.
type AssetListResponse struct {
	Assets []mediatypes.AssetManifest `json:"assets"`
	Limit  int                        `json:"limit"`
	Offset int                        `json:"offset"`
}

// UploadAsset ingests a multipart upload. The image is read from the "file"
// part; an optional "profile" field selects the rendition size set.
func (h *Handlers) UploadAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := UserIDFromContext(ctx)
	if !ok {
		unauthorized(w)
		return
	}

	maxUpload := h.ingest.MaxUploadBytes()
	if r.ContentLength > maxUpload+multipartOverhead {
		h.writeIngestError(w, r, &ingest.Error{Kind: ingest.KindTransport, Reason: ingest.ReasonTooLarge,
			Err: fmt.Errorf("request body of %d bytes exceeds limit", r.ContentLength)})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeIngestError(w, r, &ingest.Error{Kind: ingest.KindTransport, Reason: ingest.ReasonTooLarge, Err: err})
			return
		}
		h.writeIngestError(w, r, &ingest.Error{Kind: ingest.KindTransport, Reason: ingest.ReasonMissingFile, Err: err})
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.Debug("failed to remove multipart temp files: %v", err)
		}
	}()

	sizes, err := h.profiles.Resolve(r.FormValue("profile"))
	if err != nil {
		h.writeIngestError(w, r, &ingest.Error{Kind: ingest.KindValidation, Reason: ingest.ReasonInvalidSizes, Err: err})
		return
	}

	candidate, err := readCandidate(r, maxUpload)
	if err != nil {
		h.writeIngestError(w, r, &ingest.Error{Kind: ingest.KindTransport, Reason: ingest.ReasonMissingFile, Err: err})
		return
	}
	candidate.OwnerID = owner

	result, err := h.ingest.Ingest(ctx, ingest.Request{Upload: candidate, Sizes: sizes})
	if err != nil {
		h.writeIngestError(w, r, err)
		return
	}

	metrics.HTTPUploadBytes.Observe(float64(len(candidate.Data)))
	w.Header().Set("Location", fmt.Sprintf("/api/assets/%d", result.AssetID))
	writeJSONStatus(w, http.StatusCreated, result)
}

// readCandidate reads the "file" part. A missing part yields an empty
// candidate so the pipeline reports it after the quota check. At most
// maxUpload+1 bytes are read so oversize files are still detected.
func readCandidate(r *http.Request, maxUpload int64) (ingest.UploadCandidate, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return ingest.UploadCandidate{}, nil
	}
	if err != nil {
		return ingest.UploadCandidate{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUpload+1))
	if err != nil {
		return ingest.UploadCandidate{}, fmt.Errorf("read upload: %w", err)
	}

	return ingest.UploadCandidate{
		Data:         data,
		DeclaredType: header.Header.Get("Content-Type"),
		Filename:     header.Filename,
		DeclaredSize: header.Size,
	}, nil
}

// ingestStatus maps a failure reason to the HTTP status returned.
func ingestStatus(reason ingest.Reason) int {
	switch reason {
	case ingest.ReasonMissingFile, ingest.ReasonInvalidSizes:
		return http.StatusBadRequest
	case ingest.ReasonDisallowedType:
		return http.StatusUnsupportedMediaType
	case ingest.ReasonTooLarge:
		return http.StatusRequestEntityTooLarge
	case ingest.ReasonTypeMismatch, ingest.ReasonCorruptImage:
		return http.StatusUnprocessableEntity
	case ingest.ReasonQuotaExceeded:
		return http.StatusForbidden
	case ingest.ReasonStorageUnavailable:
		return http.StatusServiceUnavailable
	case ingest.ReasonCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeIngestError answers with the fixed user message. Internal detail is
// logged, never returned.
func (h *Handlers) writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	ie, ok := ingest.AsError(err)
	if !ok {
		ie = &ingest.Error{Kind: ingest.KindPersistence, Reason: ingest.ReasonInternal, Err: err}
	}

	if info := middleware.InfoFromContext(r.Context()); info != nil {
		info.Reason = string(ie.Reason)
	}

	status := ingestStatus(ie.Reason)
	if status >= http.StatusInternalServerError {
		logging.Error("[%s] upload failed: %v", middleware.RequestID(r.Context()), err)
	} else {
		logging.Debug("[%s] upload rejected: %v", middleware.RequestID(r.Context()), err)
	}

	writeJSONStatus(w, status, ErrorResponse{
		Error:        ie.UserMessage(),
		Reason:       string(ie.Reason),
		QuotaCeiling: ie.QuotaCeiling,
	})
}

// ListAssets returns the caller's manifests, newest first. Accepts limit and
// offset query parameters.
func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := UserIDFromContext(ctx)
	if !ok {
		unauthorized(w)
		return
	}

	limit := queryInt(r, "limit", database.DefaultListLimit)
	if limit <= 0 {
		limit = database.DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	assets, err := h.db.ListManifests(ctx, owner, limit, offset)
	if err != nil {
		logging.Error("Failed to list assets for owner %d: %v", owner, err)
		writeJSONError(w, "Failed to list assets", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, http.StatusOK, AssetListResponse{Assets: assets, Limit: limit, Offset: offset})
}

// GetAsset returns one manifest owned by the caller.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := UserIDFromContext(ctx)
	if !ok {
		unauthorized(w)
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, "Invalid asset id", http.StatusBadRequest)
		return
	}

	manifest, err := h.db.GetManifest(ctx, owner, id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "Asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to load asset %d: %v", id, err)
		writeJSONError(w, "Failed to load asset", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, http.StatusOK, manifest)
}

// GetQuota reports the caller's asset count against the ceiling.
func (h *Handlers) GetQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := UserIDFromContext(ctx)
	if !ok {
		unauthorized(w)
		return
	}

	guard := h.ingest.Quota()
	usage, err := guard.Usage(ctx, owner)
	if err != nil {
		logging.Error("Failed to read quota for owner %d: %v", owner, err)
		writeJSONError(w, "Failed to read quota", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, http.StatusOK, QuotaResponse{
		Used:      usage.Used,
		Ceiling:   usage.Ceiling,
		Remaining: usage.Remaining(),
		Enabled:   guard.Enabled(),
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
