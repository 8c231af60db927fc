package validation

import (
	"strings"
	"testing"
)

func TestValidScopeName(t *testing.T) {
	valids := []string{
		"a",
		"ab",
		"openid",
		"profile",
		"wallet",
		"profile:read",
		"email:read:e2e123",
		"a_b-c.d:scope2",
		strings.Repeat("a", 64),
	}
	for _, v := range valids {
		if !ValidScopeName(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}

	invalids := []string{
		"",
		":lead",
		"trail:",
		"bad space",
		"UPPER",
		"semicolon;hack",
		strings.Repeat("a", 65),
	}
	for _, v := range invalids {
		if ValidScopeName(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestValidRedirectURI(t *testing.T) {
	valids := []string{
		"https://app.camly.social/cb",
		"https://app.camly.social/cb?tab=1",
		"http://localhost:3000/cb",
		"http://127.0.0.1:3000/cb",
		"http://dev.localhost/cb",
	}
	for _, v := range valids {
		if !ValidRedirectURI(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}

	invalids := []string{
		"",
		"/relative/path",
		"https://app.camly.social/cb#fragment",
		"http://app.camly.social/cb",
		"ftp://app.camly.social/cb",
		"https://",
	}
	for _, v := range invalids {
		if ValidRedirectURI(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}
