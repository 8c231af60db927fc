package oauth

import (
	"context"
	"errors"

	dto "github.com/camly-social/camly-idp/internal/http/dto/oauth"
)

// TokenService handles the OAuth2 token endpoint grants.
type TokenService interface {
	// ExchangeAuthorizationCode handles grant_type=authorization_code.
	ExchangeAuthorizationCode(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error)

	// ExchangeRefreshToken handles grant_type=refresh_token with
	// rotation.
	ExchangeRefreshToken(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error)
}

// Token endpoint errors, one per OAuth2 error code. Not-found, expired
// and already-used all collapse into ErrTokenInvalidGrant on the wire;
// the log line is the only place the difference shows.
var (
	ErrTokenInvalidRequest       = errors.New("invalid_request")
	ErrTokenInvalidClient        = errors.New("invalid_client")
	ErrTokenInvalidGrant         = errors.New("invalid_grant")
	ErrTokenUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrTokenInvalidScope         = errors.New("invalid_scope")
	ErrTokenServerError          = errors.New("server_error")
)
