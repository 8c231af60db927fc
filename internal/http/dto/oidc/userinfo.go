package oidc

// UserInfoResponse carries the scope-gated claims of GET
// /oauth/userinfo. Fields stay absent, not empty, when the scope does
// not cover them.
type UserInfoResponse struct {
	Sub           string `json:"sub"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
	CamlyBalance  *int64 `json:"camly_balance,omitempty"`
}
