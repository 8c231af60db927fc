package jwt

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Token typ header values. Access tokens and ID tokens are signed with the
// same key, so the typ header is what keeps one from being replayed as the
// other.
const (
	TypAccessToken = "at+jwt"
	TypIDToken     = "JWT"
)

// Default assertion lifetimes.
const (
	DefaultAccessTTL = time.Hour
	DefaultIDTTL     = time.Hour
)

// Issuer signs access and ID tokens with the active key material.
type Issuer struct {
	Iss       string
	Keys      *KeyMaterial
	AccessTTL time.Duration
	IDTTL     time.Duration
}

// NewIssuer builds an issuer with the default one-hour lifetimes.
func NewIssuer(iss string, keys *KeyMaterial) *Issuer {
	return &Issuer{
		Iss:       iss,
		Keys:      keys,
		AccessTTL: DefaultAccessTTL,
		IDTTL:     DefaultIDTTL,
	}
}

// IssueAccessToken signs an RS256 access token (typ "at+jwt") for the given
// subject and audience, carrying the granted scope.
func (i *Issuer) IssueAccessToken(sub, aud, scope string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)
	claims := jwtv5.MapClaims{
		"iss":   i.Iss,
		"sub":   sub,
		"aud":   aud,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   exp.Unix(),
		"scope": scope,
	}
	signed, err := i.sign(claims, TypAccessToken)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueIDToken signs an OIDC ID token (typ "JWT"). extra carries the
// scope-gated identity claims (name, email, wallet_address, ...) plus nonce
// when present.
func (i *Issuer) IssueIDToken(sub, aud string, extra map[string]any) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.IDTTL)
	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"aud": aud,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	signed, err := i.sign(claims, TypIDToken)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (i *Issuer) sign(claims jwtv5.MapClaims, typ string) (string, error) {
	priv, kid, err := i.Keys.Signer()
	if err != nil {
		return "", err
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tk.Header["kid"] = kid
	tk.Header["typ"] = typ
	return tk.SignedString(priv)
}
