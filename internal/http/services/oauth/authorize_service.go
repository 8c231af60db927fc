// Package oauth contains the services behind the OAuth2 endpoints.
package oauth

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/camly-social/camly-idp/internal/cache"
	"github.com/camly-social/camly-idp/internal/claims"
	"github.com/camly-social/camly-idp/internal/domain/repository"
	dto "github.com/camly-social/camly-idp/internal/http/dto/oauth"
	"github.com/camly-social/camly-idp/internal/metrics"
	"github.com/camly-social/camly-idp/internal/observability/logger"
	"github.com/camly-social/camly-idp/internal/security/pkce"
	tokens "github.com/camly-social/camly-idp/internal/security/token"
	"github.com/camly-social/camly-idp/internal/store"
)

// AuthorizeError is a terminal validation failure of the authorize
// flow. ViaRedirect marks the point where redirect_uri has been
// verified: before that, errors go straight back to the caller;
// after, they travel to the client via redirect with state echoed.
type AuthorizeError struct {
	Code        string
	Description string
	ViaRedirect bool
	RedirectURI string
	State       string
}

func (e *AuthorizeError) Error() string { return e.Code + ": " + e.Description }

// RedirectTo builds the error redirect for post-validation failures.
func (e *AuthorizeError) RedirectTo() string {
	q := url.Values{}
	q.Set("error", e.Code)
	q.Set("error_description", e.Description)
	if e.State != "" {
		q.Set("state", e.State)
	}
	return appendQuery(e.RedirectURI, q)
}

func directError(code, desc string) *AuthorizeError {
	return &AuthorizeError{Code: code, Description: desc}
}

// AuthorizeService runs the first leg of the authorization flow.
type AuthorizeService interface {
	// Begin validates the request and stages a consent challenge.
	// The returned prompt carries the consent UI redirect.
	Begin(ctx context.Context, req dto.AuthorizeRequest) (*dto.ConsentPrompt, error)
}

// AuthorizeDeps contains dependencies for the authorize service.
type AuthorizeDeps struct {
	Store        store.DataAccess
	Cache        cache.Client
	ConsentUIURL string
	ChallengeTTL time.Duration
}

type authorizeService struct {
	store        store.DataAccess
	cache        cache.Client
	consentUIURL string
	challengeTTL time.Duration
}

func NewAuthorizeService(d AuthorizeDeps) AuthorizeService {
	ttl := d.ChallengeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &authorizeService{
		store:        d.Store,
		cache:        d.Cache,
		consentUIURL: d.ConsentUIURL,
		challengeTTL: ttl,
	}
}

// consentChallenge is the state staged between the two authorize legs,
// cached under the challenge token.
type consentChallenge struct {
	ClientID        string   `json:"client_id"`
	ClientName      string   `json:"client_name"`
	RedirectURI     string   `json:"redirect_uri"`
	Scopes          []string `json:"scopes"`
	State           string   `json:"state"`
	Nonce           string   `json:"nonce,omitempty"`
	CodeChallenge   string   `json:"code_challenge"`
	ChallengeMethod string   `json:"challenge_method"`
}

func (s *authorizeService) Begin(ctx context.Context, req dto.AuthorizeRequest) (*dto.ConsentPrompt, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authorize"))

	// Validation order matters: steps before the redirect_uri check
	// must answer the caller directly, redirecting to an unverified
	// URI is an open-redirector.
	if req.ResponseType != "code" {
		return nil, directError("unsupported_response_type", "Only response_type=code is supported")
	}
	if req.ClientID == "" {
		return nil, directError("invalid_request", "client_id is required")
	}
	if req.RedirectURI == "" {
		return nil, directError("invalid_request", "redirect_uri is required")
	}
	if req.State == "" {
		return nil, directError("invalid_request", "state is required")
	}
	if req.CodeChallenge == "" {
		return nil, directError("invalid_request", "code_challenge is required")
	}
	if req.CodeChallengeMethod != "" && req.CodeChallengeMethod != pkce.MethodS256 {
		return nil, directError("invalid_request", "code_challenge_method must be S256")
	}
	if !pkce.ValidChallenge(req.CodeChallenge) {
		return nil, directError("invalid_request", "code_challenge is not a valid S256 challenge")
	}

	client, err := s.store.Clients().Get(ctx, req.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("unknown or inactive client", logger.ClientID(req.ClientID))
			return nil, directError("invalid_client", "Unknown client")
		}
		log.Error("client lookup failed", logger.Err(err))
		return nil, directError("server_error", "Temporary failure, try again")
	}
	if !client.AllowsRedirectURI(req.RedirectURI) {
		log.Warn("redirect_uri not registered", logger.ClientID(req.ClientID))
		return nil, directError("invalid_request", "redirect_uri is not registered for this client")
	}

	// redirect_uri verified from here on, errors travel back by redirect
	granted := claims.Filter(strings.Fields(req.Scope), client.Scopes)
	if len(granted) == 0 {
		return nil, &AuthorizeError{
			Code:        "invalid_scope",
			Description: "No requested scope is available",
			ViaRedirect: true,
			RedirectURI: req.RedirectURI,
			State:       req.State,
		}
	}

	challenge, err := tokens.GenerateOpaqueToken(tokens.ConsentTokenBytes)
	if err != nil {
		log.Error("challenge generation failed", logger.Err(err))
		return nil, directError("server_error", "Temporary failure, try again")
	}
	payload, err := json.Marshal(consentChallenge{
		ClientID:        client.ClientID,
		ClientName:      client.Name,
		RedirectURI:     req.RedirectURI,
		Scopes:          granted,
		State:           req.State,
		Nonce:           req.Nonce,
		CodeChallenge:   req.CodeChallenge,
		ChallengeMethod: pkce.MethodS256,
	})
	if err != nil {
		return nil, directError("server_error", "Temporary failure, try again")
	}
	if err := s.cache.Set(ctx, consentKey(challenge), string(payload), s.challengeTTL); err != nil {
		log.Error("challenge store failed", logger.Err(err))
		return nil, directError("server_error", "Temporary failure, try again")
	}

	log.Info("authorization staged for consent",
		logger.ClientID(client.ClientID),
		logger.Scope(strings.Join(granted, " ")),
	)
	metrics.AuthorizationsStarted.Inc()

	return &dto.ConsentPrompt{
		Challenge:   challenge,
		ClientID:    client.ClientID,
		ClientName:  client.Name,
		Scopes:      granted,
		RedirectURI: req.RedirectURI,
		State:       req.State,
		RedirectTo:  s.consentUIURL + "?" + url.Values{"challenge": {challenge}}.Encode(),
	}, nil
}

func consentKey(challenge string) string { return "consent:" + challenge }

func appendQuery(rawURL string, q url.Values) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + q.Encode()
}
