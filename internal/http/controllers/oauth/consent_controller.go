package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	dto "github.com/camly-social/camly-idp/internal/http/dto/oauth"
	httperrors "github.com/camly-social/camly-idp/internal/http/errors"
	mw "github.com/camly-social/camly-idp/internal/http/middlewares"
	svc "github.com/camly-social/camly-idp/internal/http/services/oauth"
	"github.com/camly-social/camly-idp/internal/observability/logger"
)

// ConsentController handles the Consent UI side of the flow: fetching
// challenge details and posting the user's decision.
type ConsentController struct {
	service svc.ConsentService
}

func NewConsentController(s svc.ConsentService) *ConsentController {
	return &ConsentController{service: s}
}

// Prompt handles GET /oauth/authorize/consent?challenge=...
func (c *ConsentController) Prompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	challenge := strings.TrimSpace(r.URL.Query().Get("challenge"))
	userID := mw.AuthenticatedUser(ctx)

	info, err := c.service.GetPrompt(ctx, challenge, userID)
	if err != nil {
		c.writeError(w, ctx, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, info)
}

// Callback handles POST /oauth/authorize/callback. The Consent UI
// calls it server-to-server with the authenticated user's decision and
// receives the redirect it must perform.
func (c *ConsentController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.callback"))

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	var req dto.CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("malformed callback body", logger.Err(err))
		httperrors.WriteOAuth(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "Malformed JSON body")
		return
	}

	result, err := c.service.Decide(ctx, mw.AuthenticatedUser(ctx), req)
	if err != nil {
		c.writeError(w, ctx, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, result)
}

func (c *ConsentController) writeError(w http.ResponseWriter, ctx context.Context, err error) {
	switch {
	case errors.Is(err, svc.ErrChallengeNotFound):
		httperrors.WriteOAuth(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "Unknown or expired consent challenge")
	default:
		logger.From(ctx).Error("consent endpoint error", logger.Err(err))
		httperrors.WriteOAuth(w, http.StatusInternalServerError, httperrors.CodeServerError, "An unexpected error occurred")
	}
}
