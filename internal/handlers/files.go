package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"media-ingest/internal/filesystem"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
)

// GetFile serves a stored rendition by its manifest relativePath.
func (h *Handlers) GetFile(w http.ResponseWriter, r *http.Request) {
	rel := mux.Vars(r)["path"]
	if rel == "" || !strings.HasSuffix(rel, mediatypes.Canonical.Extension()) {
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	base := h.layout.BaseDir()
	fullPath := filepath.Join(base, filepath.FromSlash(rel))
	if !isSubPath(base, fullPath) {
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	file, err := filesystem.OpenWithRetry(fullPath, filesystem.DefaultRetryConfig())
	if errors.Is(err, fs.ErrNotExist) {
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to open rendition %s: %v", rel, err)
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mediatypes.Canonical.MimeType())
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

// isSubPath reports whether child lies inside parent after cleaning.
func isSubPath(parent, child string) bool {
	parent, err := filepath.Abs(parent)
	if err != nil {
		return false
	}
	child, err = filepath.Abs(child)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
