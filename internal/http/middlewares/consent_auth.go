package middlewares

import (
	"context"
	"net/http"
	"strings"

	httperrors "github.com/camly-social/camly-idp/internal/http/errors"
	"github.com/camly-social/camly-idp/internal/observability/logger"
	tokens "github.com/camly-social/camly-idp/internal/security/token"
)

type ctxKey int

const authenticatedUserKey ctxKey = iota

// WithConsentAuth gates the consent routes behind the shared credential
// the Consent UI presents in X-Api-Key, mirroring the outbound key the
// identity client uses. The UI authenticates the end user itself and
// asserts the subject in X-Authenticated-User; the assertion is only
// trusted on this authenticated channel, never from request bodies.
func WithConsentAuth(apiKey string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-Api-Key")
			if apiKey == "" || !tokens.ConstantTimeEquals(presented, apiKey) {
				logger.From(r.Context()).Warn("consent credential rejected",
					logger.Path(r.URL.Path))
				httperrors.WriteOAuth(w, http.StatusUnauthorized,
					httperrors.CodeInvalidRequest, "Missing or invalid consent credential")
				return
			}

			user := strings.TrimSpace(r.Header.Get("X-Authenticated-User"))
			ctx := context.WithValue(r.Context(), authenticatedUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticatedUser returns the subject asserted over the authenticated
// consent channel, or "" when absent.
func AuthenticatedUser(ctx context.Context) string {
	if v, ok := ctx.Value(authenticatedUserKey).(string); ok {
		return v
	}
	return ""
}
