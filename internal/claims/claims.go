// Package claims maps granted scopes to the claims they unlock. The
// same gating feeds both ID tokens and the userinfo endpoint, so the
// two can never drift apart.
package claims

import (
	"context"

	"github.com/camly-social/camly-idp/internal/identity"
)

// Scopes this provider supports.
const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	ScopeWallet  = "wallet"
)

// Supported lists every scope the provider understands, in the order
// advertised by discovery.
var Supported = []string{ScopeOpenID, ScopeProfile, ScopeEmail, ScopeWallet}

var supportedSet = map[string]struct{}{
	ScopeOpenID:  {},
	ScopeProfile: {},
	ScopeEmail:   {},
	ScopeWallet:  {},
}

// Filter drops unknown scopes and, when allowed is non-empty, scopes
// the client is not registered for. Order of the input is preserved.
func Filter(requested, allowed []string) []string {
	allowedSet := map[string]struct{}{}
	for _, s := range allowed {
		allowedSet[s] = struct{}{}
	}
	var out []string
	for _, s := range requested {
		if _, ok := supportedSet[s]; !ok {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowedSet[s]; !ok {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// Has reports whether scope is in scopes.
func Has(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// FromScopes resolves the profile once and returns the claims the
// granted scopes unlock. Absent scopes never leak their claims, no
// matter what the profile record holds. Errors from the identity
// store propagate so callers fail closed.
func FromScopes(ctx context.Context, store identity.Store, userID string, scopes []string) (map[string]any, error) {
	needsProfile := Has(scopes, ScopeProfile)
	needsEmail := Has(scopes, ScopeEmail)
	needsWallet := Has(scopes, ScopeWallet)
	if !needsProfile && !needsEmail && !needsWallet {
		return map[string]any{}, nil
	}

	p, err := store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := map[string]any{}
	if needsProfile {
		if p.DisplayName != "" {
			out["name"] = p.DisplayName
		}
		if p.AvatarURL != "" {
			out["picture"] = p.AvatarURL
		}
	}
	if needsEmail && p.Email != "" {
		out["email"] = p.Email
		// the platform verifies addresses before they reach us
		out["email_verified"] = true
	}
	if needsWallet {
		if p.WalletAddress != "" {
			out["wallet_address"] = p.WalletAddress
		}
		out["camly_balance"] = p.CamlyBalance
	}
	return out, nil
}
