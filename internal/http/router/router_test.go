package router

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camly-social/camly-idp/internal/cache"
	"github.com/camly-social/camly-idp/internal/domain/repository"
	healthctrl "github.com/camly-social/camly-idp/internal/http/controllers/health"
	oauthctrl "github.com/camly-social/camly-idp/internal/http/controllers/oauth"
	oidcctrl "github.com/camly-social/camly-idp/internal/http/controllers/oidc"
	oauthsvc "github.com/camly-social/camly-idp/internal/http/services/oauth"
	oidcsvc "github.com/camly-social/camly-idp/internal/http/services/oidc"
	"github.com/camly-social/camly-idp/internal/identity"
	jwtx "github.com/camly-social/camly-idp/internal/jwt"
	"github.com/camly-social/camly-idp/internal/observability/logger"
	"github.com/camly-social/camly-idp/internal/rate"
	"github.com/camly-social/camly-idp/internal/store/memory"
)

// RFC 7636 appendix B test vector.
const (
	verifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

const consentKey = "test-consent-key"

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger.Init(logger.Config{Env: "dev", Level: "error", ServiceName: "camly-idp-test"})

	st := memory.New()
	st.SeedClient(repository.Client{
		ClientID:     "camly-web",
		Name:         "Camly Web",
		Type:         repository.ClientTypePublic,
		RedirectURIs: []string{"https://app.camly.social/cb"},
		Scopes:       []string{"openid", "profile", "email", "wallet"},
		Active:       true,
	})

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	km := jwtx.NewKeyMaterial()
	require.NoError(t, km.LoadPEM(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})))
	issuer := jwtx.NewIssuer("https://id.camly.social", km)

	ids := identity.NewStaticStore(identity.Profile{
		UserID: "u1", DisplayName: "Ana", Email: "ana@example.com",
		WalletAddress: "0xabc", CamlyBalance: 1500,
	})

	oauthServices := oauthsvc.NewServices(oauthsvc.Deps{
		Store:        st,
		Cache:        cache.NewMemory("test"),
		Issuer:       issuer,
		Identity:     ids,
		ConsentUIURL: "https://consent.camly.social/consent",
		ChallengeTTL: time.Minute,
		CodeTTL:      10 * time.Minute,
		RefreshTTL:   30 * 24 * time.Hour,
	})
	oidcServices := oidcsvc.NewServices(oidcsvc.Deps{
		IssuerURL: "https://id.camly.social",
		Issuer:    issuer,
		Keys:      km,
		Identity:  ids,
	})

	return New(Deps{
		OAuth:         oauthctrl.NewControllers(oauthServices),
		OIDC:          oidcctrl.NewControllers(oidcServices),
		Health:        healthctrl.NewController(st),
		TokenLimiter:  rate.NewMemoryLimiter(100, time.Minute),
		ConsentAPIKey: consentKey,
	})
}

func authorizeQuery() url.Values {
	return url.Values{
		"response_type":         {"code"},
		"client_id":             {"camly-web"},
		"redirect_uri":          {"https://app.camly.social/cb"},
		"scope":                 {"openid profile"},
		"state":                 {"xyz"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
		"nonce":                 {"n-1"},
	}
}

func TestFullAuthorizationFlow(t *testing.T) {
	h := newTestHandler(t)

	// 1. authorize redirects the browser to the consent UI
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+authorizeQuery().Encode(), nil))
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "consent.camly.social", loc.Host)
	ch := loc.Query().Get("challenge")
	require.NotEmpty(t, ch)

	// 2. the consent UI fetches the prompt with its shared credential
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize/consent?challenge="+ch, nil)
	req.Header.Set("X-Api-Key", consentKey)
	req.Header.Set("X-Authenticated-User", "u1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var prompt struct {
		ClientName string   `json:"client_name"`
		Scopes     []string `json:"scopes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prompt))
	assert.Equal(t, "Camly Web", prompt.ClientName)
	assert.Equal(t, []string{"openid", "profile"}, prompt.Scopes)

	// 3. the user approves, the callback hands back the client redirect
	body := `{"challenge":"` + ch + `","approved":true}`
	req = httptest.NewRequest(http.MethodPost, "/oauth/authorize/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", consentKey)
	req.Header.Set("X-Authenticated-User", "u1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var redirect struct {
		RedirectTo string `json:"redirect_to"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &redirect))
	ru, err := url.Parse(redirect.RedirectTo)
	require.NoError(t, err)
	code := ru.Query().Get("code")
	require.NotEmpty(t, code)
	assert.Equal(t, "xyz", ru.Query().Get("state"))

	// 4. token exchange, form-encoded
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"https://app.camly.social/cb"},
		"client_id":     {"camly-web"},
		"code_verifier": {verifier},
	}
	req = httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))

	var tok struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
		IDToken      string `json:"id_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.EqualValues(t, 3600, tok.ExpiresIn)
	require.NotEmpty(t, tok.AccessToken)
	require.NotEmpty(t, tok.IDToken)

	// 5. userinfo with the fresh access token
	req = httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var ui struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ui))
	assert.Equal(t, "u1", ui.Sub)
	assert.Equal(t, "Ana", ui.Name)
	assert.Empty(t, ui.Email, "email scope was not granted")

	// 6. refresh via JSON body
	jsonBody := `{"grant_type":"refresh_token","client_id":"camly-web","refresh_token":"` + tok.RefreshToken + `"}`
	req = httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestConsentRoutesRequireCredential(t *testing.T) {
	h := newTestHandler(t)

	// a live challenge, as any caller could obtain from the 302 Location
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+authorizeQuery().Encode(), nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	ch := loc.Query().Get("challenge")
	require.NotEmpty(t, ch)

	// an approval without the shared credential must not mint a code,
	// even when it names a victim subject
	body := `{"challenge":"` + ch + `","approved":true}`
	req := httptest.NewRequest(http.MethodPost, "/oauth/authorize/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Authenticated-User", "victim-user")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redirect_to")

	// a wrong key fares no better
	req = httptest.NewRequest(http.MethodPost, "/oauth/authorize/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", "guessed-key")
	req.Header.Set("X-Authenticated-User", "victim-user")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// the prompt route is gated the same way
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/authorize/consent?challenge="+ch, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// the challenge is still unspent: the genuine consent UI can proceed
	req = httptest.NewRequest(http.MethodPost, "/oauth/authorize/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", consentKey)
	req.Header.Set("X-Authenticated-User", "u1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAuthorizeDirectErrors(t *testing.T) {
	h := newTestHandler(t)

	q := authorizeQuery()
	q.Set("response_type", "token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_response_type")

	q = authorizeQuery()
	q.Del("code_challenge")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestTokenEndpointErrors(t *testing.T) {
	h := newTestHandler(t)

	form := url.Values{"grant_type": {"password"}}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_grant_type")

	form = url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"bogus"},
		"redirect_uri":  {"https://app.camly.social/cb"},
		"client_id":     {"camly-web"},
		"code_verifier": {verifier},
	}
	req = httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_grant")
}

func TestMetadataEndpoints(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age=3600")
	assert.Contains(t, rec.Body.String(), `"issuer":"https://id.camly.social"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kty":"RSA"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// every response carries the request id and security headers
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestUserinfoWithoutBearer(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_token")
}
