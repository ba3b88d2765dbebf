package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	h "eventcheckin/internal/delivery/http/helpers"
	"eventcheckin/internal/domain"
)

type contextKey string

const organizerIDKey contextKey = "organizerID"

// SetOrganizerID returns a context carrying the authenticated organizer ID.
func SetOrganizerID(ctx context.Context, organizerID string) context.Context {
	return context.WithValue(ctx, organizerIDKey, organizerID)
}

// OrganizerIDFromContext returns the organizer ID set by RequireAuth, if present.
func OrganizerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(organizerIDKey).(string)
	return id, ok
}

// RequireAuth guards organizer routes. It validates the Bearer token and sets
// the organizer ID in the request context, or responds 401 without calling next.
func RequireAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "missing authorization header")
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid authorization format")
				return
			}
			token := strings.TrimSpace(auth[len(prefix):])
			if token == "" {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "missing token")
				return
			}
			organizerID, err := verifier.Verify(token)
			if err != nil {
				logger.DebugContext(r.Context(), "bearer token rejected", "path", r.URL.Path, "error", err)
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid or expired token")
				return
			}
			r = r.WithContext(SetOrganizerID(r.Context(), organizerID))
			next(w, r)
		}
	}
}
