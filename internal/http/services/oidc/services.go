package oidc

import (
	"github.com/camly-social/camly-idp/internal/identity"
	jwtx "github.com/camly-social/camly-idp/internal/jwt"
)

// Deps contains everything the OIDC services need.
type Deps struct {
	IssuerURL string
	Issuer    *jwtx.Issuer
	Keys      *jwtx.KeyMaterial
	Identity  identity.Store
}

// Services groups the OIDC domain services.
type Services struct {
	Discovery DiscoveryService
	JWKS      JWKSService
	UserInfo  UserInfoService
}

func NewServices(d Deps) Services {
	return Services{
		Discovery: NewDiscoveryService(d.IssuerURL),
		JWKS:      NewJWKSService(d.Keys),
		UserInfo:  NewUserInfoService(d.Issuer, d.Identity),
	}
}
