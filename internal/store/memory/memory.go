// Package memory implements the repositories on process-local maps. It
// mirrors the atomicity contract of the PostgreSQL driver (conditional
// used/revoked transitions under a mutex) so the race-sensitive service
// tests exercise the same semantics.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camly-social/camly-idp/internal/domain/repository"
)

// Store holds everything in memory. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	clients  map[string]repository.Client
	codes    map[string]repository.AuthorizationCode
	tokens   map[string]repository.RefreshToken // keyed by token hash
	consents map[string]repository.Consent      // keyed by userID+"\x00"+clientID
}

func New() *Store {
	return &Store{
		clients:  make(map[string]repository.Client),
		codes:    make(map[string]repository.AuthorizationCode),
		tokens:   make(map[string]repository.RefreshToken),
		consents: make(map[string]repository.Consent),
	}
}

func (s *Store) Clients() repository.ClientRepository   { return (*clientRepo)(s) }
func (s *Store) Codes() repository.CodeRepository       { return (*codeRepo)(s) }
func (s *Store) Tokens() repository.TokenRepository     { return (*tokenRepo)(s) }
func (s *Store) Consents() repository.ConsentRepository { return (*consentRepo)(s) }

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}

// SeedClient registers a client. Test and dev-mode helper.
func (s *Store) SeedClient(c repository.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ClientID] = c
}

// ─── clients ───

type clientRepo Store

func (r *clientRepo) Get(ctx context.Context, clientID string) (*repository.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok || !c.Active {
		return nil, repository.ErrNotFound
	}
	out := c
	return &out, nil
}

// ─── authorization codes ───

type codeRepo Store

func (r *codeRepo) Create(ctx context.Context, in repository.CreateAuthorizationCodeInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.codes[in.Code]; exists {
		return repository.ErrConflict
	}
	r.codes[in.Code] = repository.AuthorizationCode{
		Code:            in.Code,
		ClientID:        in.ClientID,
		UserID:          in.UserID,
		RedirectURI:     in.RedirectURI,
		Scope:           in.Scope,
		CodeChallenge:   in.CodeChallenge,
		ChallengeMethod: in.ChallengeMethod,
		State:           in.State,
		Nonce:           in.Nonce,
		ExpiresAt:       time.Now().Add(in.TTL),
		Used:            false,
	}
	return nil
}

func (r *codeRepo) Get(ctx context.Context, code string) (*repository.AuthorizationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ac, ok := r.codes[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := ac
	return &out, nil
}

func (r *codeRepo) MarkUsed(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ac, ok := r.codes[code]
	if !ok || ac.Used {
		return repository.ErrAlreadyUsed
	}
	ac.Used = true
	r.codes[code] = ac
	return nil
}

func (r *codeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, ac := range r.codes {
		if ac.ExpiresAt.Before(before) {
			delete(r.codes, k)
			n++
		}
	}
	return n, nil
}

// ─── refresh tokens ───

type tokenRepo Store

func (r *tokenRepo) Create(ctx context.Context, in repository.CreateRefreshTokenInput) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	family := in.FamilyID
	if family == "" {
		family = uuid.NewString()
	}
	now := time.Now()
	r.tokens[in.TokenHash] = repository.RefreshToken{
		ID:        id,
		TokenHash: in.TokenHash,
		ClientID:  in.ClientID,
		UserID:    in.UserID,
		Scope:     in.Scope,
		FamilyID:  family,
		IssuedAt:  now,
		ExpiresAt: now.Add(in.TTL),
	}
	return id, nil
}

func (r *tokenRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := rt
	return &out, nil
}

func (r *tokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[tokenHash]
	if !ok || rt.Revoked {
		return repository.ErrAlreadyUsed
	}
	now := time.Now()
	rt.Revoked = true
	rt.RevokedAt = &now
	r.tokens[tokenHash] = rt
	return nil
}

func (r *tokenRepo) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var n int64
	for k, rt := range r.tokens {
		if rt.FamilyID == familyID && !rt.Revoked {
			rt.Revoked = true
			rt.RevokedAt = &now
			r.tokens[k] = rt
			n++
		}
	}
	return n, nil
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, rt := range r.tokens {
		if rt.ExpiresAt.Before(before) || (rt.Revoked && rt.RevokedAt != nil && rt.RevokedAt.Before(before)) {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

// ─── consents ───

type consentRepo Store

func consentKey(userID, clientID string) string { return userID + "\x00" + clientID }

func (r *consentRepo) Upsert(ctx context.Context, userID, clientID string, scopes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := consentKey(userID, clientID)
	now := time.Now()
	c, ok := r.consents[key]
	if !ok {
		c = repository.Consent{UserID: userID, ClientID: clientID, GrantedAt: now}
	}
	c.Scopes = append([]string(nil), scopes...)
	c.UpdatedAt = now
	r.consents[key] = c
	return nil
}

func (r *consentRepo) Get(ctx context.Context, userID, clientID string) (*repository.Consent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.consents[consentKey(userID, clientID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := c
	return &out, nil
}
