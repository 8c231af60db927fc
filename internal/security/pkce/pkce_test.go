package pkce

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func randomVerifier(t *testing.T, n int) string {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatal(err)
	}
	// base64url output stays inside the RFC 7636 unreserved set.
	return base64.RawURLEncoding.EncodeToString(b)
}

func TestVerify_RoundTrip(t *testing.T) {
	for _, n := range []int{32, 48, 64, 96} {
		v := randomVerifier(t, n)
		if err := Verify(v, Challenge(v), MethodS256); err != nil {
			t.Fatalf("verifier of %d bytes: %v", n, err)
		}
	}
}

func TestVerify_SingleByteMutation(t *testing.T) {
	v := randomVerifier(t, 32)
	c := Challenge(v)

	// Mutate the verifier.
	mutated := []byte(v)
	if mutated[0] == 'A' {
		mutated[0] = 'B'
	} else {
		mutated[0] = 'A'
	}
	if err := Verify(string(mutated), c, MethodS256); err == nil {
		t.Fatal("expected failure for mutated verifier")
	}

	// Mutate the challenge.
	badC := []byte(c)
	if badC[5] == 'a' {
		badC[5] = 'b'
	} else {
		badC[5] = 'a'
	}
	if err := Verify(v, string(badC), MethodS256); err == nil {
		t.Fatal("expected failure for mutated challenge")
	}
}

func TestVerify_RejectsPlainMethod(t *testing.T) {
	v := randomVerifier(t, 32)
	if err := Verify(v, v, "plain"); err != ErrUnsupportedMethod {
		t.Fatalf("want ErrUnsupportedMethod, got %v", err)
	}
}

func TestVerify_RejectsBadVerifierShape(t *testing.T) {
	cases := []string{
		"",
		"short",
		randomVerifier(t, 16),                  // 22 chars, below 43
		randomVerifier(t, 97),                  // 130 chars, above 128
		randomVerifier(t, 32)[:40] + "+/=",     // reserved characters
		randomVerifier(t, 32)[:42] + " ",       // whitespace
	}
	for _, v := range cases {
		if err := Verify(v, Challenge(v), MethodS256); err != ErrInvalidVerifier {
			t.Fatalf("verifier %q: want ErrInvalidVerifier, got %v", v, err)
		}
	}
}

func TestValidChallenge(t *testing.T) {
	v := randomVerifier(t, 32)
	if !ValidChallenge(Challenge(v)) {
		t.Fatal("real challenge should validate")
	}
	if ValidChallenge("too-short") {
		t.Fatal("short string should not validate")
	}
	if ValidChallenge(Challenge(v)[:42] + "=") {
		t.Fatal("padding character should not validate")
	}
}
