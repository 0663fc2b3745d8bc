package echo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/signet-dev/signet/api"
	"github.com/signet-dev/signet/cache"
	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/internal/auth"
	"github.com/signet-dev/signet/internal/federation"
	"github.com/signet-dev/signet/memory"
	"github.com/signet-dev/signet/services"
)

const (
	testClientID             = "client-1"
	testClientSecret         = "s3cret"
	testRedirectURI          = "https://app.example.com/cb"
	testRedirectURIWithQuery = "https://app.example.com/cb?tenant=acme"
)

type apiFixture struct {
	e *echo.Echo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	clients := memory.NewClientRepository()
	users := memory.NewUserRepository()
	codes := memory.NewAuthCodeRepository()
	tokenRepo := memory.NewTokenRepository()

	now := time.Now().UTC()
	require.NoError(t, clients.CreateClient(ctx, &domain.Client{
		ID:                testClientID,
		Secret:            testClientSecret,
		Type:              domain.ClientTypeConfidential,
		RedirectURIs:      []string{testRedirectURI, testRedirectURIWithQuery},
		AllowedScopes:     []string{"read", "write"},
		AllowedGrantTypes: []string{"authorization_code", "refresh_token"},
		CreatedAt:         now,
		UpdatedAt:         now,
		IsActive:          true,
	}))

	hasher := auth.NewBcryptPasswordHasher(bcrypt.MinCost)
	authenticator := services.NewAuthenticator(users, hasher)
	_, err := authenticator.Register(ctx, "alice", "hunter2")
	require.NoError(t, err)

	tokenCache := cache.NewMemoryTokenStore(time.Hour)
	t.Cleanup(func() { _ = tokenCache.Close() })

	clientService := services.NewClientService(clients)
	tokenService := services.NewTokenService(tokenRepo, tokenCache)
	grantService := services.NewGrantService(
		clientService, codes, tokenService, users, nil, services.DefaultGrantConfig())

	sessions := NewSessionStore(time.Hour)
	t.Cleanup(sessions.Close)

	oapi := NewOAuth2API(authenticator, clientService, grantService, nil, sessions)

	e := echo.New()
	oapi.RegisterRoutes(e)
	return &apiFixture{e: e}
}

// login performs a password login and returns the session cookie.
func (f *apiFixture) login(t *testing.T) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {"alice"}, "password": {"hunter2"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			return cookie
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

// authorize runs the authorization request on an authenticated session
// and returns the issued code.
func (f *apiFixture) authorize(t *testing.T, cookie *http.Cookie) string {
	t.Helper()
	target := "/oauth/authorize?response_type=code&client_id=" + testClientID +
		"&redirect_uri=" + url.QueryEscape(testRedirectURI) + "&scope=read&state=xyz"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "xyz", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func (f *apiFixture) exchange(t *testing.T, code string) api.TokenResponse {
	t.Helper()
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.SetBasicAuth(testClientID, testClientSecret)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuthorize_RequiresLogin(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?response_type=code&client_id="+testClientID, nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// A bad redirect_uri is answered in place, never redirected to.
func TestAuthorize_BadRedirectNotFollowed(t *testing.T) {
	f := newAPIFixture(t)
	cookie := f.login(t)

	target := "/oauth/authorize?response_type=code&client_id=" + testClientID +
		"&redirect_uri=" + url.QueryEscape("https://evil.example.com/cb") + "&scope=read"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderLocation))
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

// A registered redirect URI may already carry a query string; the code and
// state are appended to it instead of starting a second query.
func TestAuthorize_RedirectPreservesExistingQuery(t *testing.T) {
	f := newAPIFixture(t)
	cookie := f.login(t)

	target := "/oauth/authorize?response_type=code&client_id=" + testClientID +
		"&redirect_uri=" + url.QueryEscape(testRedirectURIWithQuery) + "&scope=read&state=xyz"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	location := rec.Header().Get(echo.HeaderLocation)
	assert.Equal(t, 1, strings.Count(location, "?"))

	loc, err := url.Parse(location)
	require.NoError(t, err)
	assert.Equal(t, "acme", loc.Query().Get("tenant"))
	assert.Equal(t, "xyz", loc.Query().Get("state"))
	assert.NotEmpty(t, loc.Query().Get("code"))
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newAPIFixture(t)

	form := url.Values{"username": {"alice"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_credentials")
}

func TestTokenEndpoint_FullCodeFlow(t *testing.T) {
	f := newAPIFixture(t)
	cookie := f.login(t)
	code := f.authorize(t, cookie)
	resp := f.exchange(t, code)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "read", resp.Scope)
}

func TestTokenEndpoint_ReplayedCodeIsInvalidGrant(t *testing.T) {
	f := newAPIFixture(t)
	cookie := f.login(t)
	code := f.authorize(t, cookie)
	f.exchange(t, code)

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.SetBasicAuth(testClientID, testClientSecret)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_grant")
}

func TestTokenEndpoint_BadClientCredentials(t *testing.T) {
	f := newAPIFixture(t)
	cookie := f.login(t)
	code := f.authorize(t, cookie)

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.SetBasicAuth(testClientID, "wrong")
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_client")
}

func TestTokenEndpoint_UnsupportedGrantType(t *testing.T) {
	f := newAPIFixture(t)

	form := url.Values{"grant_type": {"password"}}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.SetBasicAuth(testClientID, testClientSecret)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_grant_type")
}

func TestTokenEndpoint_RefreshRotation(t *testing.T) {
	f := newAPIFixture(t)
	cookie := f.login(t)
	resp := f.exchange(t, f.authorize(t, cookie))

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {resp.RefreshToken},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.SetBasicAuth(testClientID, testClientSecret)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var refreshed api.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.NotEqual(t, resp.RefreshToken, refreshed.RefreshToken)
	assert.NotEqual(t, resp.AccessToken, refreshed.AccessToken)
}

// Unauthenticated introspection is 401 whether or not the token is valid.
func TestCheckToken_Unauthenticated(t *testing.T) {
	f := newAPIFixture(t)
	cookie := f.login(t)
	resp := f.exchange(t, f.authorize(t, cookie))

	for _, token := range []string{resp.AccessToken, "definitely-not-a-token"} {
		req := httptest.NewRequest(http.MethodGet, "/oauth/check_token?token="+url.QueryEscape(token), nil)
		rec := httptest.NewRecorder()
		f.e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestCheckToken_Authenticated(t *testing.T) {
	f := newAPIFixture(t)
	cookie := f.login(t)
	resp := f.exchange(t, f.authorize(t, cookie))

	req := httptest.NewRequest(http.MethodGet, "/oauth/check_token?token="+url.QueryEscape(resp.AccessToken), nil)
	req.SetBasicAuth(testClientID, testClientSecret)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var introspection api.TokenIntrospection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &introspection))
	assert.True(t, introspection.Active)
	assert.Equal(t, testClientID, introspection.ClientID)
	assert.Equal(t, "alice", introspection.Username)
}

func TestCheckToken_InvalidTokenIsInactive(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/check_token?token=bogus", nil)
	req.SetBasicAuth(testClientID, testClientSecret)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"active": false}`, rec.Body.String())
}

func TestRevoke_AlwaysSucceedsForAuthenticatedClient(t *testing.T) {
	f := newAPIFixture(t)
	cookie := f.login(t)
	resp := f.exchange(t, f.authorize(t, cookie))

	for _, token := range []string{resp.RefreshToken, "unknown-token"} {
		form := url.Values{"token": {token}}
		req := httptest.NewRequest(http.MethodPost, "/oauth/revoke", strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		req.SetBasicAuth(testClientID, testClientSecret)
		rec := httptest.NewRecorder()
		f.e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	// The revoked access token no longer introspects as active.
	req := httptest.NewRequest(http.MethodGet, "/oauth/check_token?token="+url.QueryEscape(resp.AccessToken), nil)
	req.SetBasicAuth(testClientID, testClientSecret)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"active": false}`, rec.Body.String())
}

func TestRevoke_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/oauth/revoke", strings.NewReader(""))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.SetBasicAuth(testClientID, testClientSecret)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// fakeProvider satisfies federation.OAuth2Provider for handler tests.
type fakeProvider struct{}

func (fakeProvider) Name() string { return "google" }

func (fakeProvider) GetAuthCodeURL(state, _ string, _ ...oauth2.AuthCodeOption) (string, error) {
	return "https://idp.example.com/auth?state=" + state, nil
}

func (fakeProvider) ExchangeCode(_ context.Context, _, _ string, _ ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "upstream"}, nil
}

func (fakeProvider) FetchUserInfo(_ context.Context, _ *oauth2.Token) (*federation.ExternalUserInfo, error) {
	return &federation.ExternalUserInfo{ProviderUserID: "g-123", Email: "a@example.com"}, nil
}

func newFederatedFixture(t *testing.T) *apiFixture {
	t.Helper()

	users := memory.NewUserRepository()
	identities := memory.NewFederatedIdentityRepository()
	fedService := services.NewFederationService(
		[]federation.OAuth2Provider{fakeProvider{}},
		users, identities,
		"https://signet.test/login/google",
		5*time.Second)

	sessions := NewSessionStore(time.Hour)
	t.Cleanup(sessions.Close)

	oapi := NewOAuth2API(nil, nil, nil, fedService, sessions)
	e := echo.New()
	oapi.RegisterRoutes(e)
	return &apiFixture{e: e}
}

func TestFederatedLogin_BeginRedirectsToProvider(t *testing.T) {
	f := newFederatedFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/login/google", nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get(echo.HeaderLocation)
	assert.True(t, strings.HasPrefix(loc, "https://idp.example.com/auth?state="))

	var sessionCookie *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			sessionCookie = cookie
		}
	}
	require.NotNil(t, sessionCookie)

	// Callback with the state the provider got logs the user in.
	state := strings.TrimPrefix(loc, "https://idp.example.com/auth?state=")
	cb := httptest.NewRequest(http.MethodGet, "/login/google?code=upstream-code&state="+url.QueryEscape(state), nil)
	cb.AddCookie(sessionCookie)
	cbRec := httptest.NewRecorder()
	f.e.ServeHTTP(cbRec, cb)

	require.Equal(t, http.StatusOK, cbRec.Code, cbRec.Body.String())
	assert.Contains(t, cbRec.Body.String(), "g-123@google")
}

func TestFederatedLogin_StateMismatch(t *testing.T) {
	f := newFederatedFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/login/google", nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	var sessionCookie *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			sessionCookie = cookie
		}
	}
	require.NotNil(t, sessionCookie)

	cb := httptest.NewRequest(http.MethodGet, "/login/google?code=upstream-code&state=tampered", nil)
	cb.AddCookie(sessionCookie)
	cbRec := httptest.NewRecorder()
	f.e.ServeHTTP(cbRec, cb)

	assert.Equal(t, http.StatusBadRequest, cbRec.Code)
	assert.Contains(t, cbRec.Body.String(), "invalid_state")
}

func TestFederatedLogin_UnknownProvider(t *testing.T) {
	f := newFederatedFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/login/github", nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
