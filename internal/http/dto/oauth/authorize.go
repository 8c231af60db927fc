// Package oauth holds the request/response shapes of the OAuth2
// endpoints.
package oauth

// AuthorizeRequest is the parsed query of GET /oauth/authorize.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
}

// ConsentPrompt is what the Consent UI needs to render the approval
// page. Returned from the first authorize leg together with the
// challenge token that links the two legs.
type ConsentPrompt struct {
	Challenge   string   `json:"challenge"`
	ClientID    string   `json:"client_id"`
	ClientName  string   `json:"client_name"`
	Scopes      []string `json:"scopes"`
	RedirectURI string   `json:"redirect_uri"`
	State       string   `json:"state"`
	// RedirectTo is the consent UI URL the browser should be sent to.
	RedirectTo string `json:"redirect_to"`
}

// CallbackRequest is the body of POST /oauth/authorize/callback,
// submitted by the Consent UI on behalf of an authenticated user. The
// subject never travels in the body; it comes from the authenticated
// consent channel.
type CallbackRequest struct {
	Challenge string `json:"challenge"`
	Approved  bool   `json:"approved"`
	// Remember persists the grant so the next authorize request for
	// the same client+scopes skips the consent page.
	Remember bool `json:"remember"`
}

// RedirectResult tells the Consent UI where to send the browser. The
// callback is server-to-server, so the redirect is described rather
// than performed.
type RedirectResult struct {
	RedirectTo string `json:"redirect_to"`
}
