package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/media"
	"media-ingest/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"

	probeTimeout = 2 * time.Second
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`
	Storage  string `json:"storage"`
	Encoder  string `json:"encoder"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalAssets int `json:"totalAssets"`
	TotalOwners int `json:"totalOwners"`
}

// checkDependencies probes the database and the storage root.
func (h *Handlers) checkDependencies(ctx context.Context) (dbErr, storageErr error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return h.db.Ping(ctx), h.layout.Ready()
}

func probeStatus(err error) string {
	if err != nil {
		return "unavailable"
	}
	return "ok"
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbErr, storageErr := h.checkDependencies(r.Context())
	ready := dbErr == nil && storageErr == nil

	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Database:     probeStatus(dbErr),
		Storage:      probeStatus(storageErr),
		Encoder:      "ok",
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if !media.IsVipsAvailable() {
		response.Encoder = "unavailable"
	}

	if dbErr == nil {
		stats := h.db.GetStats()
		response.TotalAssets = stats.TotalAssets
		response.TotalOwners = stats.TotalOwners
	}

	status := http.StatusOK
	if !ready {
		response.Status = statusDegraded
		status = http.StatusServiceUnavailable
		logging.Warn("Health check degraded: database=%v storage=%v", dbErr, storageErr)
	}

	writeJSONStatus(w, status, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when uploads can be accepted: the database
// answers and the storage root is writable.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	dbErr, storageErr := h.checkDependencies(r.Context())
	if dbErr != nil || storageErr != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": probeStatus(dbErr),
			"storage":  probeStatus(storageErr),
		})
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
