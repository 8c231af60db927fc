package oauth

import (
	svc "github.com/camly-social/camly-idp/internal/http/services/oauth"
)

// Controllers groups the OAuth endpoint controllers.
type Controllers struct {
	Authorize *AuthorizeController
	Consent   *ConsentController
	Token     *TokenController
}

func NewControllers(s svc.Services) *Controllers {
	return &Controllers{
		Authorize: NewAuthorizeController(s.Authorize),
		Consent:   NewConsentController(s.Consent),
		Token:     NewTokenController(s.Token),
	}
}
