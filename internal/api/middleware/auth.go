package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/cloo-solutions/otter/internal/api"
)

type contextKey string

const (
	PrincipalIDKey contextKey = "principal_id"

	principalSlotKey contextKey = "principal_slot"
)

// AuthValidator resolves a bearer token to the principal that owns it.
type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// APIKeyAuth requires "Authorization: Bearer <key>" and stores the resolved
// principal in the request context.
func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			principalID, err := validator.ValidateAPIKey(r.Context(), strings.TrimSpace(token))
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			if slot, ok := r.Context().Value(principalSlotKey).(*string); ok {
				*slot = principalID
			}
			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.Scope().SetUser(sentry.User{ID: principalID})
			}

			ctx := context.WithValue(r.Context(), PrincipalIDKey, principalID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipalID returns the authenticated principal, or "".
func GetPrincipalID(ctx context.Context) string {
	principalID, _ := ctx.Value(PrincipalIDKey).(string)
	return principalID
}

// withPrincipalSlot lets outer middleware see the principal resolved by
// APIKeyAuth further down the chain.
func withPrincipalSlot(ctx context.Context) (context.Context, *string) {
	slot := new(string)
	return context.WithValue(ctx, principalSlotKey, slot), slot
}
