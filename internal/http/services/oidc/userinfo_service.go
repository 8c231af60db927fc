package oidc

import (
	"context"
	"errors"
	"strings"

	"github.com/camly-social/camly-idp/internal/claims"
	dto "github.com/camly-social/camly-idp/internal/http/dto/oidc"
	"github.com/camly-social/camly-idp/internal/identity"
	jwtx "github.com/camly-social/camly-idp/internal/jwt"
	"github.com/camly-social/camly-idp/internal/observability/logger"
	"github.com/camly-social/camly-idp/internal/util"
)

// Userinfo errors.
var (
	ErrInvalidToken   = errors.New("invalid_token")
	ErrUserinfoServer = errors.New("server_error")
)

// UserInfoService resolves claims for a bearer access token.
type UserInfoService interface {
	Resolve(ctx context.Context, rawToken string) (*dto.UserInfoResponse, error)
}

type userInfoService struct {
	issuer   *jwtx.Issuer
	identity identity.Store
}

func NewUserInfoService(issuer *jwtx.Issuer, ids identity.Store) UserInfoService {
	return &userInfoService{issuer: issuer, identity: ids}
}

func (s *userInfoService) Resolve(ctx context.Context, rawToken string) (*dto.UserInfoResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oidc.userinfo"))

	// never trust anything from the token before the signature check
	cl, err := s.issuer.VerifyAccessToken(rawToken)
	if err != nil {
		log.Warn("access token rejected", logger.Err(err))
		return nil, ErrInvalidToken
	}
	sub, _ := cl["sub"].(string)
	scope, _ := cl["scope"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}

	scopes := strings.Fields(scope)
	gated, err := claims.FromScopes(ctx, s.identity, sub, scopes)
	if err != nil {
		log.Error("claims resolution failed", logger.Err(err), logger.UserID(sub))
		return nil, ErrUserinfoServer
	}

	resp := &dto.UserInfoResponse{Sub: sub}
	if v, ok := gated["name"].(string); ok {
		resp.Name = v
	}
	if v, ok := gated["picture"].(string); ok {
		resp.Picture = v
	}
	if v, ok := gated["email"].(string); ok {
		resp.Email = v
		if ev, ok := gated["email_verified"].(bool); ok {
			resp.EmailVerified = &ev
		}
	}
	if v, ok := gated["wallet_address"].(string); ok {
		resp.WalletAddress = v
	}
	if v, ok := gated["camly_balance"].(int64); ok {
		resp.CamlyBalance = &v
	}

	log.Info("userinfo served",
		logger.UserID(sub),
		logger.Scope(scope),
		logger.String("email", util.MaskEmail(resp.Email)),
	)
	return resp, nil
}
