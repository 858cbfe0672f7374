package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"media-ingest/internal/database"
	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
	"media-ingest/internal/middleware"
)

type userIDKey struct{}

// UserIDFromContext returns the authenticated owner set by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}

// WithUserID returns a context carrying an authenticated owner.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="media-ingest"`)
	writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
}

// AuthMiddleware protects routes that require an API token.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		bearer, ok := bearerToken(r)
		if !ok {
			metrics.AuthAttemptsTotal.WithLabelValues("missing").Inc()
			unauthorized(w)
			return
		}

		token, err := h.db.Authenticate(ctx, bearer)
		if err != nil {
			if errors.Is(err, database.ErrInvalidToken) {
				logging.Warn("Rejected API token from %s", r.RemoteAddr)
				metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
				unauthorized(w)
				return
			}
			logging.Error("Token lookup failed: %v", err)
			metrics.AuthAttemptsTotal.WithLabelValues("error").Inc()
			writeJSONError(w, "Service unavailable", http.StatusServiceUnavailable)
			return
		}

		metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
		if info := middleware.InfoFromContext(ctx); info != nil {
			info.User = strconv.FormatInt(token.UserID, 10)
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(ctx, token.UserID)))
	})
}
