package jwt

import (
	"errors"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("jwt: invalid token")

// VerifyAccessToken validates signature, issuer, time window and the
// "at+jwt" typ header against the provider's own key material, and returns
// the claims. This is the self-verification path used by the userinfo
// endpoint: nothing is trusted from the token until the signature checks
// out.
func (i *Issuer) VerifyAccessToken(raw string) (map[string]any, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return i.Keys.PublicKeyByKID(kid)
	}
	tok, err := jwtv5.Parse(raw, keyfunc,
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if typ, _ := tok.Header["typ"].(string); typ != TypAccessToken {
		// An ID token presented as a bearer credential.
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}
