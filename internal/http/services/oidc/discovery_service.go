// Package oidc contains the services behind the OIDC discovery, JWKS
// and userinfo endpoints.
package oidc

import (
	"context"
	"strings"

	"github.com/camly-social/camly-idp/internal/claims"
	dto "github.com/camly-social/camly-idp/internal/http/dto/oidc"
)

// DiscoveryService serves the provider metadata document.
type DiscoveryService interface {
	Get(ctx context.Context) dto.ProviderMetadata
}

var (
	responseTypesSupported            = []string{"code"}
	grantTypesSupported               = []string{"authorization_code", "refresh_token"}
	subjectTypesSupported             = []string{"public"}
	idTokenSigningAlgValuesSupported  = []string{"RS256"}
	tokenEndpointAuthMethodsSupported = []string{"none", "client_secret_post"}
	codeChallengeMethodsSupported     = []string{"S256"}
	claimsSupported                   = []string{
		"iss", "sub", "aud", "exp", "iat", "nbf", "nonce",
		"name", "picture", "email", "email_verified",
		"wallet_address", "camly_balance",
	}
)

type discoveryService struct {
	meta dto.ProviderMetadata
}

// NewDiscoveryService precomputes the document; it is pure data and
// never changes at runtime.
func NewDiscoveryService(issuer string) DiscoveryService {
	base := strings.TrimRight(issuer, "/")
	return &discoveryService{meta: dto.ProviderMetadata{
		Issuer:                            base,
		AuthorizationEndpoint:             base + "/oauth/authorize",
		TokenEndpoint:                     base + "/oauth/token",
		UserinfoEndpoint:                  base + "/oauth/userinfo",
		JWKSURI:                           base + "/.well-known/jwks.json",
		ResponseTypesSupported:            responseTypesSupported,
		GrantTypesSupported:               grantTypesSupported,
		SubjectTypesSupported:             subjectTypesSupported,
		IDTokenSigningAlgValuesSupported:  idTokenSigningAlgValuesSupported,
		ScopesSupported:                   claims.Supported,
		TokenEndpointAuthMethodsSupported: tokenEndpointAuthMethodsSupported,
		CodeChallengeMethodsSupported:     codeChallengeMethodsSupported,
		ClaimsSupported:                   claimsSupported,
	}}
}

func (s *discoveryService) Get(ctx context.Context) dto.ProviderMetadata {
	return s.meta
}
