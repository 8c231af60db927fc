package oauth

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	dto "github.com/camly-social/camly-idp/internal/http/dto/oauth"
	httperrors "github.com/camly-social/camly-idp/internal/http/errors"
	svc "github.com/camly-social/camly-idp/internal/http/services/oauth"
	"github.com/camly-social/camly-idp/internal/metrics"
	"github.com/camly-social/camly-idp/internal/observability/logger"
)

// TokenController handles POST /oauth/token.
type TokenController struct {
	service svc.TokenService
}

func NewTokenController(s svc.TokenService) *TokenController {
	return &TokenController{service: s}
}

// Token dispatches on grant_type. The body may be form-encoded or
// JSON; both decode into the same request struct at this boundary and
// nothing downstream sees raw key/value maps.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	req, err := decodeTokenRequest(r)
	if err != nil {
		log.Warn("malformed token request", logger.Err(err))
		httperrors.WriteOAuth(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "Malformed request body")
		return
	}
	log = log.With(logger.GrantType(req.GrantType))

	var resp *dto.TokenResponse
	switch req.GrantType {
	case "authorization_code":
		resp, err = c.service.ExchangeAuthorizationCode(ctx, *req)
	case "refresh_token":
		resp, err = c.service.ExchangeRefreshToken(ctx, *req)
	default:
		httperrors.WriteOAuth(w, http.StatusBadRequest, httperrors.CodeUnsupportedGrantType, "Grant type not supported")
		return
	}
	if err != nil {
		metrics.TokenExchanges.WithLabelValues(req.GrantType, resultLabel(err)).Inc()
		c.writeServiceError(w, r, err)
		return
	}
	metrics.TokenExchanges.WithLabelValues(req.GrantType, "success").Inc()

	// tokens must never be cached by intermediaries
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	httperrors.WriteJSON(w, http.StatusOK, resp)
}

func decodeTokenRequest(r *http.Request) (*dto.TokenRequest, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var req dto.TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		trimTokenRequest(&req)
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	req := dto.TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		ClientID:     r.PostForm.Get("client_id"),
		ClientSecret: r.PostForm.Get("client_secret"),
		CodeVerifier: r.PostForm.Get("code_verifier"),
		RefreshToken: r.PostForm.Get("refresh_token"),
	}
	trimTokenRequest(&req)
	return &req, nil
}

func trimTokenRequest(req *dto.TokenRequest) {
	req.GrantType = strings.TrimSpace(req.GrantType)
	req.Code = strings.TrimSpace(req.Code)
	req.RedirectURI = strings.TrimSpace(req.RedirectURI)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.ClientSecret = strings.TrimSpace(req.ClientSecret)
	req.CodeVerifier = strings.TrimSpace(req.CodeVerifier)
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
}

// resultLabel keeps metric cardinality bounded: only the sentinel
// errors map to their OAuth code, anything else is server_error.
func resultLabel(err error) string {
	switch err {
	case svc.ErrTokenInvalidRequest, svc.ErrTokenInvalidClient, svc.ErrTokenInvalidGrant,
		svc.ErrTokenInvalidScope, svc.ErrTokenUnsupportedGrantType:
		return err.Error()
	default:
		return "server_error"
	}
}

func (c *TokenController) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch err {
	case svc.ErrTokenInvalidRequest:
		httperrors.WriteOAuth(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "Missing or invalid parameters")
	case svc.ErrTokenInvalidClient:
		httperrors.WriteOAuth(w, http.StatusUnauthorized, httperrors.CodeInvalidClient, "Client authentication failed")
	case svc.ErrTokenInvalidGrant:
		httperrors.WriteOAuth(w, http.StatusBadRequest, httperrors.CodeInvalidGrant, "Invalid or expired grant")
	case svc.ErrTokenInvalidScope:
		httperrors.WriteOAuth(w, http.StatusBadRequest, httperrors.CodeInvalidScope, "Requested scope is invalid")
	case svc.ErrTokenUnsupportedGrantType:
		httperrors.WriteOAuth(w, http.StatusBadRequest, httperrors.CodeUnsupportedGrantType, "Grant type not supported")
	default:
		logger.From(r.Context()).Error("token endpoint error", logger.Err(err))
		httperrors.WriteOAuth(w, http.StatusInternalServerError, httperrors.CodeServerError, "An unexpected error occurred")
	}
}
