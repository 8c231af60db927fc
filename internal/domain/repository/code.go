package repository

import (
	"context"
	"time"
)

// AuthorizationCode is a single-use grant minted at consent approval. The
// raw code value is the lookup key; everything the token exchange must
// re-check is bound to the record at issuance time.
type AuthorizationCode struct {
	Code            string
	ClientID        string
	UserID          string
	RedirectURI     string
	Scope           string
	CodeChallenge   string
	ChallengeMethod string
	State           string
	Nonce           string
	ExpiresAt       time.Time
	Used            bool
}

// CreateAuthorizationCodeInput carries the fields fixed at issuance.
type CreateAuthorizationCodeInput struct {
	Code            string
	ClientID        string
	UserID          string
	RedirectURI     string
	Scope           string
	CodeChallenge   string
	ChallengeMethod string
	State           string
	Nonce           string
	TTL             time.Duration
}

// CodeRepository persists authorization codes.
type CodeRepository interface {
	// Create stores a new code with expiry = now + input.TTL.
	Create(ctx context.Context, input CreateAuthorizationCodeInput) error

	// Get returns the record for a code, used or not. Missing codes return
	// ErrNotFound.
	Get(ctx context.Context, code string) (*AuthorizationCode, error)

	// MarkUsed atomically flips used from false to true. The update is
	// conditional on used = false: exactly one of any set of concurrent
	// callers succeeds, every loser gets ErrAlreadyUsed. This transition is
	// the single point of truth for the double-redemption race.
	MarkUsed(ctx context.Context, code string) error

	// DeleteExpired removes codes past their expiry. Maintenance only.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
