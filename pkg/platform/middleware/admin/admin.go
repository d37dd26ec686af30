// Package admin provides the administrative authorization gate. The gate is
// evaluated once per request, before any domain operation, so individual
// services never re-implement role checks.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	request "github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/request"
)

type contextKeyAdminActorID struct{}

// GetAdminActorID retrieves the admin actor identifier from the context.
// Returns empty string if not set or if this is not an admin request.
func GetAdminActorID(ctx context.Context) string {
	if actorID, ok := ctx.Value(contextKeyAdminActorID{}).(string); ok {
		return actorID
	}
	return ""
}

// WithAdminActorID injects an admin actor identifier, for tests and workers.
func WithAdminActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, contextKeyAdminActorID{}, actorID)
}

// RequireAdminToken authenticates administrative requests with a shared token.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			// Use constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			ctx := r.Context()
			// Capture admin actor identifier for audit attribution.
			if actorID := r.Header.Get("X-Admin-Actor-ID"); actorID != "" {
				ctx = WithAdminActorID(ctx, actorID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
