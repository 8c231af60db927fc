// Package oauth contains the controllers of the OAuth2 endpoints.
package oauth

import (
	"errors"
	"net/http"
	"strings"

	dto "github.com/camly-social/camly-idp/internal/http/dto/oauth"
	httperrors "github.com/camly-social/camly-idp/internal/http/errors"
	svc "github.com/camly-social/camly-idp/internal/http/services/oauth"
	"github.com/camly-social/camly-idp/internal/observability/logger"
)

// AuthorizeController handles GET /oauth/authorize.
type AuthorizeController struct {
	service svc.AuthorizeService
}

func NewAuthorizeController(s svc.AuthorizeService) *AuthorizeController {
	return &AuthorizeController{service: s}
}

// Authorize validates the request and sends the browser to the Consent
// UI. Pre-redirect-validation failures answer directly; after the
// redirect_uri is verified, failures redirect back to the client.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.authorize"))

	q := r.URL.Query()
	req := dto.AuthorizeRequest{
		ResponseType:        strings.TrimSpace(q.Get("response_type")),
		ClientID:            strings.TrimSpace(q.Get("client_id")),
		RedirectURI:         strings.TrimSpace(q.Get("redirect_uri")),
		Scope:               strings.TrimSpace(q.Get("scope")),
		State:               strings.TrimSpace(q.Get("state")),
		CodeChallenge:       strings.TrimSpace(q.Get("code_challenge")),
		CodeChallengeMethod: strings.TrimSpace(q.Get("code_challenge_method")),
		Nonce:               strings.TrimSpace(q.Get("nonce")),
	}

	prompt, err := c.service.Begin(ctx, req)
	if err != nil {
		var ae *svc.AuthorizeError
		if errors.As(err, &ae) {
			if ae.ViaRedirect {
				http.Redirect(w, r, ae.RedirectTo(), http.StatusFound)
				return
			}
			httperrors.WriteOAuth(w, statusForAuthorizeError(ae.Code), ae.Code, ae.Description)
			return
		}
		log.Error("authorize failed", logger.Err(err))
		httperrors.WriteOAuth(w, http.StatusInternalServerError, httperrors.CodeServerError, "An unexpected error occurred")
		return
	}

	http.Redirect(w, r, prompt.RedirectTo, http.StatusFound)
}

func statusForAuthorizeError(code string) int {
	switch code {
	case httperrors.CodeInvalidClient:
		return http.StatusUnauthorized
	case httperrors.CodeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
