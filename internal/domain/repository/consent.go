package repository

import (
	"context"
	"time"
)

// Consent remembers that a user approved a client for a set of scopes, so a
// repeat authorization can skip the prompt.
type Consent struct {
	UserID    string
	ClientID  string
	Scopes    []string
	GrantedAt time.Time
	UpdatedAt time.Time
}

// Covers reports whether the stored grant includes every requested scope.
func (c *Consent) Covers(scopes []string) bool {
	granted := make(map[string]struct{}, len(c.Scopes))
	for _, s := range c.Scopes {
		granted[s] = struct{}{}
	}
	for _, s := range scopes {
		if _, ok := granted[s]; !ok {
			return false
		}
	}
	return true
}

// ConsentRepository persists consent grants.
type ConsentRepository interface {
	// Upsert creates or replaces the grant for (user, client).
	Upsert(ctx context.Context, userID, clientID string, scopes []string) error

	// Get returns the grant for (user, client), or ErrNotFound.
	Get(ctx context.Context, userID, clientID string) (*Consent, error)
}
