package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the public probes and the token-protected API on r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.AuthMiddleware)
	api.HandleFunc("/assets", h.UploadAsset).Methods(http.MethodPost).Name("upload")
	api.HandleFunc("/assets", h.ListAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id:[0-9]+}", h.GetAsset).Methods(http.MethodGet)
	api.HandleFunc("/quota", h.GetQuota).Methods(http.MethodGet)

	// Stored renditions
	files := r.PathPrefix("/files").Subrouter()
	files.Use(h.AuthMiddleware)
	files.HandleFunc("/{path:.+}", h.GetFile).Methods(http.MethodGet, http.MethodHead)
}
