package repository

import "context"

const (
	ClientTypePublic       = "public"
	ClientTypeConfidential = "confidential"
)

// Client is a registered relying-party application. Registration is an
// administrative process; the serving path only reads.
type Client struct {
	ClientID     string
	Name         string
	Type         string // "public" | "confidential"
	SecretHash   string // PHC string, confidential clients only
	RedirectURIs []string
	Scopes       []string
	Active       bool
}

// Confidential reports whether the client authenticates with a secret.
func (c *Client) Confidential() bool {
	return c.Type == ClientTypeConfidential
}

// AllowsRedirectURI checks uri against the registered list. Exact string
// match only; no prefix or wildcard matching.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, allowed := range c.RedirectURIs {
		if allowed == uri {
			return true
		}
	}
	return false
}

// ClientRepository looks up registered clients.
type ClientRepository interface {
	// Get returns the active client with the given public client_id.
	// Inactive clients return ErrNotFound, indistinguishable from
	// nonexistent ones.
	Get(ctx context.Context, clientID string) (*Client, error)
}
