// Package pkce implements RFC 7636 Proof Key for Code Exchange verification.
// Only the S256 method is accepted; "plain" is rejected outright.
package pkce

import (
	"errors"
	"regexp"

	tokens "github.com/camly-social/camly-idp/internal/security/token"
)

// MethodS256 is the only supported code_challenge_method.
const MethodS256 = "S256"

// ChallengeLength is the length of base64url(sha256(x)) without padding.
const ChallengeLength = 43

var (
	ErrUnsupportedMethod = errors.New("pkce: unsupported code_challenge_method")
	ErrInvalidVerifier   = errors.New("pkce: code_verifier fails RFC 7636 shape")
	ErrMismatch          = errors.New("pkce: verifier does not match challenge")
)

// verifierRe is the RFC 7636 §4.1 grammar: 43-128 unreserved characters.
var verifierRe = regexp.MustCompile(`^[A-Za-z0-9\-._~]{43,128}$`)

// ValidVerifier reports whether v matches the RFC 7636 verifier grammar.
func ValidVerifier(v string) bool {
	return verifierRe.MatchString(v)
}

// ValidChallenge reports whether c has the exact shape of an S256 output:
// 43 base64url characters.
func ValidChallenge(c string) bool {
	if len(c) != ChallengeLength {
		return false
	}
	for i := 0; i < len(c); i++ {
		b := c[i]
		switch {
		case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9', b == '-', b == '_':
		default:
			return false
		}
	}
	return true
}

// Challenge computes the S256 challenge for a verifier.
func Challenge(verifier string) string {
	return tokens.SHA256Base64URL(verifier)
}

// Verify checks verifier against challenge using the given method. The
// comparison is constant-time so an attacker cannot learn how close a guess
// was from response timing.
func Verify(verifier, challenge, method string) error {
	if method != MethodS256 {
		return ErrUnsupportedMethod
	}
	if !ValidVerifier(verifier) {
		return ErrInvalidVerifier
	}
	if !tokens.ConstantTimeEquals(Challenge(verifier), challenge) {
		return ErrMismatch
	}
	return nil
}
