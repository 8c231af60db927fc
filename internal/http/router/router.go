// Package router assembles the chi route tree.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	healthctrl "github.com/camly-social/camly-idp/internal/http/controllers/health"
	oauthctrl "github.com/camly-social/camly-idp/internal/http/controllers/oauth"
	oidcctrl "github.com/camly-social/camly-idp/internal/http/controllers/oidc"
	mw "github.com/camly-social/camly-idp/internal/http/middlewares"
	"github.com/camly-social/camly-idp/internal/rate"
)

// Deps contains the controllers and cross-cutting pieces the router
// mounts.
type Deps struct {
	OAuth  *oauthctrl.Controllers
	OIDC   *oidcctrl.Controllers
	Health *healthctrl.Controller

	// TokenLimiter, when set, rate-limits POST /oauth/token.
	TokenLimiter rate.Limiter

	// ConsentAPIKey is the shared credential the Consent UI presents
	// on the consent prompt and callback routes.
	ConsentAPIKey string

	// CORSAllowedOrigins enables CORS for the listed browser origins.
	CORSAllowedOrigins []string
}

// New builds the full route tree.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		mw.WithLogging(),
	)
	if len(d.CORSAllowedOrigins) > 0 {
		r.Use(mw.WithCORS(d.CORSAllowedOrigins))
	}

	// public, unauthenticated metadata
	r.With(mw.WithMetrics("/.well-known/openid-configuration")).
		Get("/.well-known/openid-configuration", d.OIDC.Discovery.Get)
	r.With(mw.WithMetrics("/.well-known/jwks.json")).
		Get("/.well-known/jwks.json", d.OIDC.JWKS.Get)

	r.Route("/oauth", func(r chi.Router) {
		r.With(mw.WithMetrics("/oauth/authorize")).
			Get("/authorize", d.OAuth.Authorize.Authorize)
		consent := r.With(mw.WithConsentAuth(d.ConsentAPIKey))
		consent.With(mw.WithMetrics("/oauth/authorize/consent")).
			Get("/authorize/consent", d.OAuth.Consent.Prompt)
		consent.With(mw.WithMetrics("/oauth/authorize/callback")).
			Post("/authorize/callback", d.OAuth.Consent.Callback)

		token := r.With(mw.WithMetrics("/oauth/token"))
		if d.TokenLimiter != nil {
			token = token.With(mw.WithRateLimit(d.TokenLimiter))
		}
		token.Post("/token", d.OAuth.Token.Token)

		r.With(mw.WithMetrics("/oauth/userinfo")).
			Get("/userinfo", d.OIDC.UserInfo.Get)
	})

	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
