// Package identity is the read-side client for the Camly identity
// store, the upstream service that owns user accounts. The IdP never
// stores user attributes itself; userinfo and ID-token claims are
// resolved here at issuance time.
package identity

import (
	"context"
	"errors"
)

// Profile is the subset of a user record the IdP exposes through
// scope-gated claims.
type Profile struct {
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	WalletAddress string `json:"wallet_address"`
	CamlyBalance  int64  `json:"camly_balance"`
}

var (
	// ErrUserNotFound means the identity store has no record for the
	// subject. Callers fail closed.
	ErrUserNotFound = errors.New("identity: user not found")

	// ErrUnavailable means the store could not be reached or answered
	// with a server error. Callers must not degrade to partial claims.
	ErrUnavailable = errors.New("identity: store unavailable")
)

// Store resolves user attributes by subject identifier.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}
