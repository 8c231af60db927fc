package oauth

import (
	"time"

	"github.com/camly-social/camly-idp/internal/cache"
	"github.com/camly-social/camly-idp/internal/identity"
	jwtx "github.com/camly-social/camly-idp/internal/jwt"
	"github.com/camly-social/camly-idp/internal/store"
)

// Deps contains everything the OAuth services need.
type Deps struct {
	Store        store.DataAccess
	Cache        cache.Client
	Issuer       *jwtx.Issuer
	Identity     identity.Store
	ConsentUIURL string
	ChallengeTTL time.Duration
	CodeTTL      time.Duration
	RefreshTTL   time.Duration
}

// Services groups the OAuth domain services.
type Services struct {
	Authorize AuthorizeService
	Consent   ConsentService
	Token     TokenService
}

func NewServices(d Deps) Services {
	return Services{
		Authorize: NewAuthorizeService(AuthorizeDeps{
			Store:        d.Store,
			Cache:        d.Cache,
			ConsentUIURL: d.ConsentUIURL,
			ChallengeTTL: d.ChallengeTTL,
		}),
		Consent: NewConsentService(ConsentDeps{
			Store:   d.Store,
			Cache:   d.Cache,
			CodeTTL: d.CodeTTL,
		}),
		Token: NewTokenService(TokenDeps{
			Store:      d.Store,
			Issuer:     d.Issuer,
			Identity:   d.Identity,
			RefreshTTL: d.RefreshTTL,
		}),
	}
}
