// Package oidc contains the controllers of the discovery, JWKS and
// userinfo endpoints.
package oidc

import (
	"net/http"
	"strings"

	httperrors "github.com/camly-social/camly-idp/internal/http/errors"
	svc "github.com/camly-social/camly-idp/internal/http/services/oidc"
	"github.com/camly-social/camly-idp/internal/observability/logger"
)

// Controllers groups the OIDC endpoint controllers.
type Controllers struct {
	Discovery *DiscoveryController
	JWKS      *JWKSController
	UserInfo  *UserInfoController
}

func NewControllers(s svc.Services) *Controllers {
	return &Controllers{
		Discovery: &DiscoveryController{service: s.Discovery},
		JWKS:      &JWKSController{service: s.JWKS},
		UserInfo:  &UserInfoController{service: s.UserInfo},
	}
}

// DiscoveryController handles GET /.well-known/openid-configuration.
type DiscoveryController struct {
	service svc.DiscoveryService
}

func (c *DiscoveryController) Get(w http.ResponseWriter, r *http.Request) {
	// pure data, safe to cache
	w.Header().Set("Cache-Control", "public, max-age=3600")
	httperrors.WriteJSON(w, http.StatusOK, c.service.Get(r.Context()))
}

// JWKSController handles GET /.well-known/jwks.json.
type JWKSController struct {
	service svc.JWKSService
}

func (c *JWKSController) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := c.service.Get(r.Context())
	if err != nil {
		httperrors.WriteOAuth(w, http.StatusInternalServerError, httperrors.CodeServerError, "An unexpected error occurred")
		return
	}
	// stale keys stay serveable while a rotation propagates
	w.Header().Set("Cache-Control", "public, max-age=300, stale-while-revalidate=300")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(doc)
}

// UserInfoController handles GET /oauth/userinfo.
type UserInfoController struct {
	service svc.UserInfoService
}

func (c *UserInfoController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oidc.userinfo"))

	raw, ok := bearerToken(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		httperrors.WriteOAuth(w, http.StatusUnauthorized, httperrors.CodeInvalidToken, "Bearer token required")
		return
	}

	resp, err := c.service.Resolve(ctx, raw)
	if err != nil {
		if err == svc.ErrInvalidToken {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			httperrors.WriteOAuth(w, http.StatusUnauthorized, httperrors.CodeInvalidToken, "Token verification failed")
			return
		}
		log.Error("userinfo failed", logger.Err(err))
		httperrors.WriteOAuth(w, http.StatusInternalServerError, httperrors.CodeServerError, "An unexpected error occurred")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	httperrors.WriteJSON(w, http.StatusOK, resp)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		tok := strings.TrimSpace(h[7:])
		return tok, tok != ""
	}
	return "", false
}
