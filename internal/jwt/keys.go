// Package jwt holds the signing key material and the RS256 token issuer and
// verifier for the identity provider.
package jwt

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// MinRSABits is the smallest key size the provider will sign with.
const MinRSABits = 2048

var (
	ErrNoKey      = errors.New("jwt: no signing key configured")
	ErrKeyTooWeak = errors.New("jwt: RSA key below 2048 bits")
)

// KeyMaterial owns the provider's single active RSA signing key. Parsing a
// PEM key is expensive, so the parsed key is held for the life of the
// process; Rotate swaps it in place without a restart. All methods are safe
// for concurrent use, and the key is effectively immutable between rotations.
type KeyMaterial struct {
	mu   sync.RWMutex
	priv *rsa.PrivateKey
	kid  string
}

// NewKeyMaterial returns empty key material. Load or Rotate must be called
// before signing; JWKS export degrades to an empty set until then.
func NewKeyMaterial() *KeyMaterial {
	return &KeyMaterial{}
}

// LoadPEM parses and installs a PKCS#8 (or PKCS#1) RSA private key.
func (k *KeyMaterial) LoadPEM(pemBytes []byte) error {
	priv, err := parseRSAPrivatePEM(pemBytes)
	if err != nil {
		return err
	}
	if priv.N.BitLen() < MinRSABits {
		return ErrKeyTooWeak
	}
	kid, err := deriveKID(&priv.PublicKey)
	if err != nil {
		return err
	}
	k.mu.Lock()
	k.priv = priv
	k.kid = kid
	k.mu.Unlock()
	return nil
}

// Rotate replaces the active key. In-flight verifications against the old
// key will fail afterwards; the provider publishes a single key only.
func (k *KeyMaterial) Rotate(pemBytes []byte) error {
	return k.LoadPEM(pemBytes)
}

// Clear drops the cached key, forcing ErrNoKey until the next Load.
func (k *KeyMaterial) Clear() {
	k.mu.Lock()
	k.priv = nil
	k.kid = ""
	k.mu.Unlock()
}

// Configured reports whether a signing key is installed.
func (k *KeyMaterial) Configured() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.priv != nil
}

// Signer returns the private key and its kid.
func (k *KeyMaterial) Signer() (*rsa.PrivateKey, string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.priv == nil {
		return nil, "", ErrNoKey
	}
	return k.priv, k.kid, nil
}

// PublicKeyByKID returns the public half when kid matches the active key.
func (k *KeyMaterial) PublicKeyByKID(kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.priv == nil {
		return nil, ErrNoKey
	}
	if kid != "" && kid != k.kid {
		return nil, fmt.Errorf("jwt: unknown kid %q", kid)
	}
	return &k.priv.PublicKey, nil
}

// KID returns the active key id, or "" when unconfigured.
func (k *KeyMaterial) KID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.kid
}

func parseRSAPrivatePEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("jwt: no PEM block found")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwt: PKCS8 key is not RSA")
		}
		return rsaKey, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, errors.New("jwt: unsupported private key encoding")
}

// deriveKID is a stable fingerprint of the public key: the first 16 bytes of
// SHA-256 over the DER encoding, base64url.
func deriveKID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:16]), nil
}

// JWK is the JSON Web Key representation of an RSA public key.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	KID string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the published key set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKS exports the active public key. When no key is configured the set is
// empty rather than an error, so relying parties see a well-formed document
// during initial setup.
func (k *KeyMaterial) JWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.priv == nil {
		return JWKS{Keys: []JWK{}}
	}
	pub := &k.priv.PublicKey
	return JWKS{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		KID: k.kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}}
}
