package repository

import (
	"context"
	"time"
)

// RefreshToken is the stored form of a long-lived credential. Only the
// SHA-256 of the raw value is kept; a database compromise yields nothing
// redeemable.
type RefreshToken struct {
	ID        string
	TokenHash string
	ClientID  string
	UserID    string
	Scope     string
	FamilyID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
	RevokedAt *time.Time
}

// CreateRefreshTokenInput carries the fields for a new token record.
type CreateRefreshTokenInput struct {
	TokenHash string
	ClientID  string
	UserID    string
	Scope     string
	FamilyID  string // carried across rotations; new lineage when empty
	TTL       time.Duration
}

// TokenRepository persists refresh tokens.
type TokenRepository interface {
	// Create stores a new token record and returns its ID.
	Create(ctx context.Context, input CreateRefreshTokenInput) (string, error)

	// GetByHash returns the record for a token hash, revoked or not.
	// Missing hashes return ErrNotFound.
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Revoke atomically flips revoked from false to true. Conditional on
	// revoked = false: one winner per rotation race, losers get
	// ErrAlreadyUsed.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeFamily revokes every live token in a rotation lineage. Used
	// when a replayed (already-rotated) token signals theft. Returns the
	// number of tokens revoked.
	RevokeFamily(ctx context.Context, familyID string) (int64, error)

	// DeleteExpired removes tokens whose expiry (or revocation) is older
	// than before. Maintenance only.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
