package oauth

import (
	"context"
	"strings"
	"time"

	"github.com/camly-social/camly-idp/internal/audit"
	"github.com/camly-social/camly-idp/internal/claims"
	"github.com/camly-social/camly-idp/internal/domain/repository"
	dto "github.com/camly-social/camly-idp/internal/http/dto/oauth"
	"github.com/camly-social/camly-idp/internal/identity"
	jwtx "github.com/camly-social/camly-idp/internal/jwt"
	"github.com/camly-social/camly-idp/internal/metrics"
	"github.com/camly-social/camly-idp/internal/observability/logger"
	"github.com/camly-social/camly-idp/internal/security/pkce"
	"github.com/camly-social/camly-idp/internal/security/secret"
	tokens "github.com/camly-social/camly-idp/internal/security/token"
	"github.com/camly-social/camly-idp/internal/store"
)

// TokenDeps contains dependencies for the token service.
type TokenDeps struct {
	Store      store.DataAccess
	Issuer     *jwtx.Issuer
	Identity   identity.Store
	RefreshTTL time.Duration
}

type tokenService struct {
	store      store.DataAccess
	issuer     *jwtx.Issuer
	identity   identity.Store
	refreshTTL time.Duration
}

func NewTokenService(d TokenDeps) TokenService {
	ttl := d.RefreshTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &tokenService{
		store:      d.Store,
		issuer:     d.Issuer,
		identity:   d.Identity,
		refreshTTL: ttl,
	}
}

func (s *tokenService) ExchangeAuthorizationCode(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.authcode"))

	if req.Code == "" || req.RedirectURI == "" || req.ClientID == "" || req.CodeVerifier == "" {
		return nil, ErrTokenInvalidRequest
	}

	ac, err := s.store.Codes().Get(ctx, req.Code)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("authorization code not found")
			return nil, ErrTokenInvalidGrant
		}
		log.Error("code lookup failed", logger.Err(err))
		return nil, ErrTokenServerError
	}
	if ac.Used {
		log.Warn("authorization code already used", logger.ClientID(ac.ClientID))
		return nil, ErrTokenInvalidGrant
	}
	if time.Now().After(ac.ExpiresAt) {
		// burn it so nothing racing in can redeem it either
		_ = s.store.Codes().MarkUsed(ctx, req.Code)
		log.Warn("authorization code expired", logger.ClientID(ac.ClientID))
		return nil, ErrTokenInvalidGrant
	}
	if ac.ClientID != req.ClientID {
		log.Warn("code bound to different client")
		return nil, ErrTokenInvalidGrant
	}
	if ac.RedirectURI != req.RedirectURI {
		log.Warn("redirect_uri mismatch", logger.ClientID(ac.ClientID))
		return nil, ErrTokenInvalidGrant
	}
	if err := pkce.Verify(req.CodeVerifier, ac.CodeChallenge, ac.ChallengeMethod); err != nil {
		log.Warn("PKCE verification failed", logger.ClientID(ac.ClientID))
		return nil, ErrTokenInvalidGrant
	}

	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		log.Warn("client authentication failed", logger.ClientID(req.ClientID))
		audit.Log(ctx, audit.ClientAuthFailure, logger.ClientID(req.ClientID))
		return nil, err
	}

	// Consume before issuing: if two redemptions race, the conditional
	// update picks exactly one winner, and a crash mid-issuance costs a
	// code, never a duplicate token set.
	if err := s.store.Codes().MarkUsed(ctx, req.Code); err != nil {
		if err == repository.ErrAlreadyUsed {
			log.Warn("lost code redemption race", logger.ClientID(req.ClientID))
			return nil, ErrTokenInvalidGrant
		}
		log.Error("code consume failed", logger.Err(err))
		return nil, ErrTokenServerError
	}

	resp, err := s.issueTokenSet(ctx, client.ClientID, ac.UserID, ac.Scope, ac.Nonce, "")
	if err != nil {
		return nil, err
	}

	log.Info("authorization_code exchanged",
		logger.ClientID(client.ClientID),
		logger.UserID(ac.UserID),
		logger.GrantType("authorization_code"),
	)
	audit.Log(ctx, audit.TokenIssued,
		logger.ClientID(client.ClientID),
		logger.UserID(ac.UserID),
		logger.GrantType("authorization_code"),
		logger.Scope(ac.Scope))
	return resp, nil
}

func (s *tokenService) ExchangeRefreshToken(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.refresh"))

	if req.RefreshToken == "" || req.ClientID == "" {
		return nil, ErrTokenInvalidRequest
	}

	hash := tokens.SHA256Base64URL(req.RefreshToken)
	rt, err := s.store.Tokens().GetByHash(ctx, hash)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("refresh token not found")
			return nil, ErrTokenInvalidGrant
		}
		log.Error("refresh token lookup failed", logger.Err(err))
		return nil, ErrTokenServerError
	}
	if rt.Revoked {
		// a rotated-away token coming back is a theft signal: kill the
		// whole lineage
		metrics.RefreshReplays.Inc()
		n, _ := s.store.Tokens().RevokeFamily(ctx, rt.FamilyID)
		log.Warn("revoked refresh token replayed, family revoked",
			logger.ClientID(rt.ClientID),
			logger.UserID(rt.UserID),
			logger.Int("revoked", int(n)),
		)
		audit.Log(ctx, audit.RefreshReplayed,
			logger.ClientID(rt.ClientID), logger.UserID(rt.UserID))
		audit.Log(ctx, audit.FamilyRevoked,
			logger.ClientID(rt.ClientID), logger.Int("revoked", int(n)))
		return nil, ErrTokenInvalidGrant
	}
	if time.Now().After(rt.ExpiresAt) {
		_ = s.store.Tokens().Revoke(ctx, hash)
		log.Warn("refresh token expired", logger.ClientID(rt.ClientID))
		return nil, ErrTokenInvalidGrant
	}
	if rt.ClientID != req.ClientID {
		log.Warn("refresh token bound to different client")
		return nil, ErrTokenInvalidGrant
	}

	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		log.Warn("client authentication failed", logger.ClientID(req.ClientID))
		audit.Log(ctx, audit.ClientAuthFailure, logger.ClientID(req.ClientID))
		return nil, err
	}

	// Rotation: the presented token dies first, unconditionally. The
	// conditional update arbitrates concurrent replays; the loser also
	// triggers family revocation.
	if err := s.store.Tokens().Revoke(ctx, hash); err != nil {
		if err == repository.ErrAlreadyUsed {
			metrics.RefreshReplays.Inc()
			n, _ := s.store.Tokens().RevokeFamily(ctx, rt.FamilyID)
			log.Warn("lost refresh rotation race, family revoked",
				logger.ClientID(client.ClientID),
				logger.Int("revoked", int(n)),
			)
			audit.Log(ctx, audit.FamilyRevoked,
				logger.ClientID(client.ClientID), logger.Int("revoked", int(n)))
			return nil, ErrTokenInvalidGrant
		}
		log.Error("refresh token revoke failed", logger.Err(err))
		return nil, ErrTokenServerError
	}

	// nonce never carries forward on refresh
	resp, err := s.issueTokenSet(ctx, client.ClientID, rt.UserID, rt.Scope, "", rt.FamilyID)
	if err != nil {
		return nil, err
	}

	log.Info("refresh_token exchanged",
		logger.ClientID(client.ClientID),
		logger.UserID(rt.UserID),
		logger.GrantType("refresh_token"),
	)
	audit.Log(ctx, audit.TokenIssued,
		logger.ClientID(client.ClientID),
		logger.UserID(rt.UserID),
		logger.GrantType("refresh_token"),
		logger.Scope(rt.Scope))
	return resp, nil
}

// authenticateClient resolves the client and, for confidential ones,
// verifies the secret. Every failure collapses into invalid_client.
func (s *tokenService) authenticateClient(ctx context.Context, clientID, clientSecret string) (*repository.Client, error) {
	client, err := s.store.Clients().Get(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTokenInvalidClient
		}
		return nil, ErrTokenServerError
	}
	if client.Confidential() {
		if clientSecret == "" {
			return nil, ErrTokenInvalidClient
		}
		if !secret.Verify(clientSecret, client.SecretHash) {
			return nil, ErrTokenInvalidClient
		}
	}
	return client, nil
}

// issueTokenSet signs the access and ID tokens and rotates in a fresh
// refresh token, shared by both grants. familyID empty starts a new
// lineage.
func (s *tokenService) issueTokenSet(ctx context.Context, clientID, userID, scope, nonce, familyID string) (*dto.TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.issue"))

	access, _, err := s.issuer.IssueAccessToken(userID, clientID, scope)
	if err != nil {
		log.Error("access token signing failed", logger.Err(err))
		return nil, ErrTokenServerError
	}

	scopes := strings.Fields(scope)
	extra, err := claims.FromScopes(ctx, s.identity, userID, scopes)
	if err != nil {
		// fail closed: a partial ID token is worse than no token
		log.Error("claims resolution failed", logger.Err(err), logger.UserID(userID))
		return nil, ErrTokenServerError
	}
	if nonce != "" {
		extra["nonce"] = nonce
	}
	idToken, _, err := s.issuer.IssueIDToken(userID, clientID, extra)
	if err != nil {
		log.Error("id token signing failed", logger.Err(err))
		return nil, ErrTokenServerError
	}

	rawRefresh, err := tokens.GenerateOpaqueToken(tokens.RefreshTokenBytes)
	if err != nil {
		log.Error("refresh token generation failed", logger.Err(err))
		return nil, ErrTokenServerError
	}
	_, err = s.store.Tokens().Create(ctx, repository.CreateRefreshTokenInput{
		TokenHash: tokens.SHA256Base64URL(rawRefresh),
		ClientID:  clientID,
		UserID:    userID,
		Scope:     scope,
		FamilyID:  familyID,
		TTL:       s.refreshTTL,
	})
	if err != nil {
		log.Error("refresh token persist failed", logger.Err(err))
		return nil, ErrTokenServerError
	}

	// expires_in reports the configured lifetime exactly, not a
	// wall-clock re-derivation that would truncate a second off
	return &dto.TokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.issuer.AccessTTL.Seconds()),
		RefreshToken: rawRefresh,
		IDToken:      idToken,
		Scope:        scope,
	}, nil
}
