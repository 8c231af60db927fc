package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"
)

func genPEM(t *testing.T, bits int) []byte {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func TestKeyMaterial_LoadAndJWKS(t *testing.T) {
	km := NewKeyMaterial()

	// Unconfigured: empty set, not an error.
	set := km.JWKS()
	if len(set.Keys) != 0 {
		t.Fatalf("expected empty key set, got %d keys", len(set.Keys))
	}
	if _, _, err := km.Signer(); err != ErrNoKey {
		t.Fatalf("want ErrNoKey, got %v", err)
	}

	if err := km.LoadPEM(genPEM(t, 2048)); err != nil {
		t.Fatalf("LoadPEM: %v", err)
	}
	set = km.JWKS()
	if len(set.Keys) != 1 {
		t.Fatalf("expected one key, got %d", len(set.Keys))
	}
	k := set.Keys[0]
	if k.Kty != "RSA" || k.Use != "sig" || k.Alg != "RS256" || k.KID == "" || k.N == "" || k.E == "" {
		t.Fatalf("malformed JWK: %+v", k)
	}
	if k.KID != km.KID() {
		t.Fatal("JWK kid should match active kid")
	}
}

func TestKeyMaterial_RejectsWeakKey(t *testing.T) {
	km := NewKeyMaterial()
	if err := km.LoadPEM(genPEM(t, 1024)); err != ErrKeyTooWeak {
		t.Fatalf("want ErrKeyTooWeak, got %v", err)
	}
}

func TestKeyMaterial_RotateChangesKID(t *testing.T) {
	km := NewKeyMaterial()
	if err := km.LoadPEM(genPEM(t, 2048)); err != nil {
		t.Fatal(err)
	}
	old := km.KID()
	if err := km.Rotate(genPEM(t, 2048)); err != nil {
		t.Fatal(err)
	}
	if km.KID() == old {
		t.Fatal("rotation should change the kid")
	}
	km.Clear()
	if km.Configured() {
		t.Fatal("Clear should drop the key")
	}
}

func TestIssuer_AccessTokenRoundTrip(t *testing.T) {
	km := NewKeyMaterial()
	if err := km.LoadPEM(genPEM(t, 2048)); err != nil {
		t.Fatal(err)
	}
	iss := NewIssuer("https://id.camly.example", km)

	signed, exp, err := iss.IssueAccessToken("user-1", "client-1", "openid profile")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if until := time.Until(exp); until < 59*time.Minute || until > 61*time.Minute {
		t.Fatalf("unexpected expiry horizon: %v", until)
	}

	claims, err := iss.VerifyAccessToken(signed)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims["sub"] != "user-1" || claims["aud"] != "client-1" || claims["scope"] != "openid profile" {
		t.Fatalf("unexpected claims: %v", claims)
	}
}

func TestIssuer_IDTokenNotAcceptedAsAccessToken(t *testing.T) {
	km := NewKeyMaterial()
	if err := km.LoadPEM(genPEM(t, 2048)); err != nil {
		t.Fatal(err)
	}
	iss := NewIssuer("https://id.camly.example", km)

	idToken, _, err := iss.IssueIDToken("user-1", "client-1", map[string]any{"nonce": "n-1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := iss.VerifyAccessToken(idToken); err == nil {
		t.Fatal("ID token must not verify as an access token")
	}
}

func TestIssuer_RejectsForeignSignature(t *testing.T) {
	kmA := NewKeyMaterial()
	if err := kmA.LoadPEM(genPEM(t, 2048)); err != nil {
		t.Fatal(err)
	}
	kmB := NewKeyMaterial()
	if err := kmB.LoadPEM(genPEM(t, 2048)); err != nil {
		t.Fatal(err)
	}

	issA := NewIssuer("https://id.camly.example", kmA)
	issB := NewIssuer("https://id.camly.example", kmB)

	signed, _, err := issA.IssueAccessToken("user-1", "client-1", "openid")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issB.VerifyAccessToken(signed); err == nil {
		t.Fatal("token signed by another key must not verify")
	}
}
