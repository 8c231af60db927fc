package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/camly-social/camly-idp/internal/audit"
	"github.com/camly-social/camly-idp/internal/cache"
	"github.com/camly-social/camly-idp/internal/domain/repository"
	dto "github.com/camly-social/camly-idp/internal/http/dto/oauth"
	"github.com/camly-social/camly-idp/internal/metrics"
	"github.com/camly-social/camly-idp/internal/observability/logger"
	tokens "github.com/camly-social/camly-idp/internal/security/token"
	"github.com/camly-social/camly-idp/internal/store"
	"github.com/camly-social/camly-idp/internal/util"
)

// Consent flow errors.
var (
	// ErrChallengeNotFound covers missing, expired and already-spent
	// challenges alike.
	ErrChallengeNotFound = errors.New("consent challenge not found")
	ErrConsentServer     = errors.New("consent processing failed")
)

// PromptInfo is the challenge detail the Consent UI fetches before
// rendering. Remembered signals a prior grant already covering the
// requested scopes, so the UI can auto-approve.
type PromptInfo struct {
	ClientID   string   `json:"client_id"`
	ClientName string   `json:"client_name"`
	Scopes     []string `json:"scopes"`
	Remembered bool     `json:"remembered"`
}

// ConsentService runs the callback leg of the authorization flow.
type ConsentService interface {
	// GetPrompt resolves a challenge for the Consent UI.
	GetPrompt(ctx context.Context, challenge, userID string) (*PromptInfo, error)

	// Decide consumes the challenge and returns the redirect the
	// Consent UI must perform: either an authorization code or
	// access_denied. userID is the subject asserted over the
	// authenticated consent channel.
	Decide(ctx context.Context, userID string, req dto.CallbackRequest) (*dto.RedirectResult, error)
}

// ConsentDeps contains dependencies for the consent service.
type ConsentDeps struct {
	Store   store.DataAccess
	Cache   cache.Client
	CodeTTL time.Duration
}

type consentService struct {
	store   store.DataAccess
	cache   cache.Client
	codeTTL time.Duration
}

func NewConsentService(d ConsentDeps) ConsentService {
	ttl := d.CodeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &consentService{store: d.Store, cache: d.Cache, codeTTL: ttl}
}

func (s *consentService) GetPrompt(ctx context.Context, challenge, userID string) (*PromptInfo, error) {
	cc, err := s.loadChallenge(ctx, challenge)
	if err != nil {
		return nil, err
	}

	info := &PromptInfo{
		ClientID:   cc.ClientID,
		ClientName: cc.ClientName,
		Scopes:     cc.Scopes,
	}
	if userID != "" {
		if consent, err := s.store.Consents().Get(ctx, userID, cc.ClientID); err == nil {
			info.Remembered = consent.Covers(cc.Scopes)
		}
	}
	return info, nil
}

func (s *consentService) Decide(ctx context.Context, userID string, req dto.CallbackRequest) (*dto.RedirectResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.consent"))

	// the challenge is one-shot: take-and-delete atomically so two
	// concurrent callbacks cannot both spend the same approval
	cc, err := s.takeChallenge(ctx, req.Challenge)
	if err != nil {
		return nil, err
	}

	if !req.Approved {
		log.Info("consent denied", logger.ClientID(cc.ClientID), logger.UserID(userID))
		audit.Log(ctx, audit.ConsentDenied,
			logger.ClientID(cc.ClientID), logger.UserID(userID))
		q := url.Values{}
		q.Set("error", "access_denied")
		q.Set("error_description", "The user denied the request")
		q.Set("state", cc.State)
		return &dto.RedirectResult{RedirectTo: appendQuery(cc.RedirectURI, q)}, nil
	}

	if userID == "" {
		return nil, ErrChallengeNotFound
	}

	// Re-validate client and redirect_uri: the challenge survived a
	// round-trip through the browser and the client may have been
	// deactivated in between.
	client, err := s.store.Clients().Get(ctx, cc.ClientID)
	if err != nil {
		log.Warn("client vanished between authorize legs", logger.ClientID(cc.ClientID), logger.Err(err))
		return nil, ErrChallengeNotFound
	}
	if !client.AllowsRedirectURI(cc.RedirectURI) {
		log.Warn("redirect_uri no longer registered", logger.ClientID(cc.ClientID))
		return nil, ErrChallengeNotFound
	}

	code, err := tokens.GenerateOpaqueToken(tokens.AuthCodeBytes)
	if err != nil {
		log.Error("code generation failed", logger.Err(err))
		return nil, ErrConsentServer
	}
	err = s.store.Codes().Create(ctx, repository.CreateAuthorizationCodeInput{
		Code:            code,
		ClientID:        client.ClientID,
		UserID:          userID,
		RedirectURI:     cc.RedirectURI,
		Scope:           strings.Join(cc.Scopes, " "),
		CodeChallenge:   cc.CodeChallenge,
		ChallengeMethod: cc.ChallengeMethod,
		State:           cc.State,
		Nonce:           cc.Nonce,
		TTL:             s.codeTTL,
	})
	if err != nil {
		log.Error("code persist failed", logger.Err(err))
		return nil, ErrConsentServer
	}

	if req.Remember {
		if err := s.store.Consents().Upsert(ctx, userID, client.ClientID, cc.Scopes); err != nil {
			// the grant itself already succeeded, only the memory of it failed
			log.Warn("consent persist failed", logger.Err(err))
		}
	}

	metrics.CodesIssued.Inc()
	log.Info("authorization code issued",
		logger.ClientID(client.ClientID),
		logger.UserID(userID),
		logger.Scope(strings.Join(cc.Scopes, " ")),
	)
	audit.Log(ctx, audit.ConsentGranted,
		logger.ClientID(client.ClientID),
		logger.UserID(userID),
		logger.Scope(strings.Join(cc.Scopes, " ")),
		logger.Bool("remember", req.Remember))
	audit.Log(ctx, audit.CodeIssued,
		logger.ClientID(client.ClientID),
		logger.String("code", util.MaskToken(code)))

	q := url.Values{}
	q.Set("code", code)
	q.Set("state", cc.State)
	return &dto.RedirectResult{RedirectTo: appendQuery(cc.RedirectURI, q)}, nil
}

func (s *consentService) loadChallenge(ctx context.Context, challenge string) (*consentChallenge, error) {
	if challenge == "" {
		return nil, ErrChallengeNotFound
	}
	raw, err := s.cache.Get(ctx, consentKey(challenge))
	return decodeChallenge(raw, err)
}

func (s *consentService) takeChallenge(ctx context.Context, challenge string) (*consentChallenge, error) {
	if challenge == "" {
		return nil, ErrChallengeNotFound
	}
	raw, err := s.cache.Take(ctx, consentKey(challenge))
	return decodeChallenge(raw, err)
}

func decodeChallenge(raw string, err error) (*consentChallenge, error) {
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrChallengeNotFound
		}
		return nil, ErrConsentServer
	}
	var cc consentChallenge
	if err := json.Unmarshal([]byte(raw), &cc); err != nil {
		return nil, ErrChallengeNotFound
	}
	return &cc, nil
}
