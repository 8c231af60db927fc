// Package validation checks administrative inputs before they reach
// the client registry.
package validation

import (
	"net/url"
	"regexp"
	"strings"
)

// Scope names are lowercase, start and end with [a-z0-9], may contain
// [a-z0-9:_.-] in between, and are at most 64 characters.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName reports whether name may be registered for a client.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ValidRedirectURI reports whether raw is acceptable as a registered
// redirect target: an absolute https URL without a fragment. Plain http
// is allowed only for loopback hosts, for local development.
func ValidRedirectURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Fragment != "" || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "https":
		return true
	case "http":
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1" || host == "::1" ||
			strings.HasSuffix(host, ".localhost")
	default:
		return false
	}
}
