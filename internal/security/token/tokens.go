// Package tokens generates and digests the opaque credentials used by the
// authorization flow: authorization codes and refresh tokens.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// Byte lengths for the opaque credentials. Refresh tokens are longer-lived and
// higher value, so they get more entropy.
const (
	AuthCodeBytes     = 32
	RefreshTokenBytes = 48
	ConsentTokenBytes = 32
)

// GenerateOpaqueToken returns nBytes of secure randomness, base64url-encoded
// without padding.
func GenerateOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		return "", fmt.Errorf("tokens: invalid byte length %d", nBytes)
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL returns sha256(s) in unpadded base64url. Used for PKCE
// challenges and for hashing tokens at rest.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ConstantTimeEquals compares two strings without leaking how far the match
// got. Unequal lengths fail immediately; length is not a secret here.
func ConstantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
