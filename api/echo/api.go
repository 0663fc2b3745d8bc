package echo

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/signet-dev/signet/errors"
	"github.com/signet-dev/signet/internal/federation"
	"github.com/signet-dev/signet/services"
)

// OAuth2API holds the handler dependencies.
type OAuth2API struct {
	authenticator *services.Authenticator
	clientService *services.ClientService
	grantService  *services.GrantService
	fedService    *services.FederationService
	sessions      *SessionStore
}

// NewOAuth2API initializes the OAuth2 API. fedService may be nil when no
// external providers are configured.
func NewOAuth2API(
	authenticator *services.Authenticator,
	clientService *services.ClientService,
	grantService *services.GrantService,
	fedService *services.FederationService,
	sessions *SessionStore,
) *OAuth2API {
	return &OAuth2API{
		authenticator: authenticator,
		clientService: clientService,
		grantService:  grantService,
		fedService:    fedService,
		sessions:      sessions,
	}
}

// RegisterRoutes registers the OAuth2 routes.
func (oa *OAuth2API) RegisterRoutes(e *echo.Echo) {
	e.GET("/oauth/authorize", oa.AuthorizeHandler)
	e.POST("/oauth/token", oa.TokenHandler)
	e.GET("/oauth/check_token", oa.CheckTokenHandler)
	e.POST("/oauth/revoke", oa.RevokeHandler)

	e.POST("/login", oa.LoginHandler)
	e.GET("/login/:provider", oa.FederatedLoginHandler)

	e.GET("/healthz", oa.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// AuthorizeHandler serves the authorization endpoint of the code flow.
// The user must already hold a login session; validation failures are
// answered as JSON and never redirected, so an unvalidated redirect_uri
// is never a redirect target.
func (oa *OAuth2API) AuthorizeHandler(c echo.Context) error {
	sess := oa.sessions.sessionFromRequest(c)
	if sess == nil || !sess.Authenticated() {
		return c.JSON(http.StatusUnauthorized, errors.NewInvalidRequest("Login required"))
	}

	req := services.AuthorizeRequest{
		ClientID:     c.QueryParam("client_id"),
		RedirectURI:  c.QueryParam("redirect_uri"),
		ResponseType: c.QueryParam("response_type"),
		Scope:        c.QueryParam("scope"),
		UserID:       sess.UserID,
	}
	state := c.QueryParam("state")

	code, err := oa.grantService.Authorize(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrClientNotFound):
			return c.JSON(http.StatusBadRequest, errors.NewInvalidClient("Invalid client_id"))
		case errors.Is(err, errors.ErrInvalidRedirectURI):
			return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("Invalid redirect_uri"))
		case errors.Is(err, errors.ErrUnsupportedResponseType):
			return c.JSON(http.StatusBadRequest, errors.NewUnsupportedResponseType())
		case errors.Is(err, errors.ErrUnsupportedGrantType):
			return c.JSON(http.StatusBadRequest, errors.NewUnauthorizedClient("Client may not use the authorization code flow"))
		case errors.Is(err, errors.ErrInvalidScope):
			return c.JSON(http.StatusBadRequest, errors.NewInvalidScope("Invalid scope requested"))
		default:
			log.Error().Err(err).Msg("Failed to generate authorization code")
			return c.JSON(http.StatusInternalServerError, errors.NewServerError("Failed to generate authorization code"))
		}
	}

	target, err := url.Parse(req.RedirectURI)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("Invalid redirect_uri"))
	}
	query := target.Query()
	query.Set("code", code)
	if state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()
	return c.Redirect(http.StatusFound, target.String())
}

// TokenHandler serves the token endpoint. Client credentials arrive
// either as HTTP Basic auth or as form values; grant dispatch covers the
// authorization_code and refresh_token grants.
func (oa *OAuth2API) TokenHandler(c echo.Context) error {
	clientID, clientSecret := clientCredentials(c)
	if clientID == "" {
		return c.JSON(http.StatusUnauthorized, errors.NewInvalidClient("Client authentication required"))
	}

	ctx := c.Request().Context()
	grantType := c.FormValue("grant_type")

	switch grantType {
	case services.GrantTypeAuthorizationCode:
		resp, err := oa.grantService.Exchange(ctx,
			clientID, clientSecret,
			c.FormValue("code"), c.FormValue("redirect_uri"))
		if err != nil {
			return oa.tokenError(c, err)
		}
		log.Info().
			Str("client_id", clientID).
			Str("grant_type", grantType).
			Int("expires_in", resp.ExpiresIn).
			Msg("Token generated")
		return c.JSON(http.StatusOK, resp)

	case services.GrantTypeRefreshToken:
		refreshToken := c.FormValue("refresh_token")
		if refreshToken == "" {
			return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("refresh_token is required"))
		}
		resp, err := oa.grantService.Refresh(ctx, clientID, clientSecret, refreshToken, c.FormValue("scope"))
		if err != nil {
			return oa.tokenError(c, err)
		}
		log.Info().
			Str("client_id", clientID).
			Str("grant_type", grantType).
			Int("expires_in", resp.ExpiresIn).
			Msg("Token refreshed")
		return c.JSON(http.StatusOK, resp)

	default:
		return c.JSON(http.StatusBadRequest, errors.NewUnsupportedGrantType())
	}
}

// tokenError maps service sentinels to the OAuth2 error response shape.
func (oa *OAuth2API) tokenError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errors.ErrInvalidClient):
		return c.JSON(http.StatusUnauthorized, errors.NewInvalidClient("Invalid client credentials"))
	case errors.Is(err, errors.ErrUnsupportedGrantType):
		return c.JSON(http.StatusBadRequest, errors.NewUnauthorizedClient("Grant type not allowed for this client"))
	case errors.Is(err, errors.ErrAuthCodeUsed),
		errors.Is(err, errors.ErrAuthCodeNotFound),
		errors.Is(err, errors.ErrTokenNotFound),
		errors.Is(err, errors.ErrTokenExpired),
		errors.Is(err, errors.ErrTokenRevoked):
		return c.JSON(http.StatusBadRequest, errors.NewInvalidGrant("Invalid or expired grant"))
	case errors.Is(err, errors.ErrInvalidScope):
		return c.JSON(http.StatusBadRequest, errors.NewInvalidScope("Requested scope exceeds the grant"))
	default:
		log.Error().Err(err).Msg("Token generation failed")
		return c.JSON(http.StatusInternalServerError, errors.NewServerError("Failed to generate token"))
	}
}

// CheckTokenHandler serves introspection. Callers must authenticate with
// client credentials; failing that the answer is 401 no matter whether the
// presented token is valid. Authenticated callers get the RFC 7662 shape,
// with active=false for any token that cannot be vouched for.
func (oa *OAuth2API) CheckTokenHandler(c echo.Context) error {
	ctx := c.Request().Context()

	clientID, clientSecret := clientCredentials(c)
	authenticated := false
	if clientID != "" {
		if _, err := oa.clientService.ValidateClient(ctx, clientID, clientSecret); err == nil {
			authenticated = true
		}
	}

	token := c.QueryParam("token")
	if token == "" {
		token = c.FormValue("token")
	}

	introspection, err := oa.grantService.CheckToken(ctx, token, authenticated)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrUnauthorized):
			return c.JSON(http.StatusUnauthorized, errors.NewInvalidClient("Client authentication required"))
		case errors.Is(err, errors.ErrTokenNotFound):
			return c.JSON(http.StatusOK, echo.Map{"active": false})
		default:
			log.Error().Err(err).Msg("Token introspection failed")
			return c.JSON(http.StatusInternalServerError, errors.NewServerError("Failed to introspect token"))
		}
	}
	return c.JSON(http.StatusOK, introspection)
}

// RevokeHandler implements RFC 7009. The client must authenticate; beyond
// that the endpoint answers 200 whether or not the presented token was
// live, so callers cannot probe token validity here.
func (oa *OAuth2API) RevokeHandler(c echo.Context) error {
	clientID, clientSecret := clientCredentials(c)
	if clientID == "" {
		return c.JSON(http.StatusUnauthorized, errors.NewInvalidClient("Client authentication required"))
	}

	token := c.FormValue("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("token parameter is required"))
	}

	if err := oa.grantService.RevokeToken(c.Request().Context(), clientID, clientSecret, token); err != nil {
		if errors.Is(err, errors.ErrInvalidClient) {
			return c.JSON(http.StatusUnauthorized, errors.NewInvalidClient("Invalid client credentials"))
		}
		log.Error().Err(err).Msg("Failed to revoke token")
	}
	return c.JSON(http.StatusOK, echo.Map{})
}

// LoginHandler authenticates a user with username and password and
// establishes a login session the authorize endpoint can use.
func (oa *OAuth2API) LoginHandler(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	if username == "" || password == "" {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("username and password are required"))
	}

	user, err := oa.authenticator.Authenticate(c.Request().Context(), username, password)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials"})
	}

	sess, err := oa.sessions.Create()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errors.NewServerError("Failed to create session"))
	}
	sess.UserID = user.ID
	sess.Username = user.Username
	oa.sessions.Save(sess)
	oa.sessions.setSessionCookie(c, sess)

	return c.JSON(http.StatusOK, echo.Map{
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// FederatedLoginHandler serves both legs of a delegated login under one
// path: a request without a code query parameter starts the round-trip at
// the provider, the provider's callback carries the code and finishes it.
func (oa *OAuth2API) FederatedLoginHandler(c echo.Context) error {
	if oa.fedService == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "federation_disabled"})
	}

	providerName := c.Param("provider")
	if !oa.fedService.HasProvider(providerName) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown_provider"})
	}

	if c.QueryParam("code") == "" {
		return oa.beginFederatedLogin(c, providerName)
	}
	return oa.completeFederatedLogin(c, providerName)
}

func (oa *OAuth2API) beginFederatedLogin(c echo.Context, providerName string) error {
	authURL, state, err := oa.fedService.Begin(providerName)
	if err != nil {
		log.Error().Err(err).Str("provider", providerName).Msg("Failed to start delegated login")
		return c.JSON(http.StatusInternalServerError, errors.NewServerError("Failed to start delegated login"))
	}

	sess := oa.sessions.sessionFromRequest(c)
	if sess == nil {
		sess, err = oa.sessions.Create()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, errors.NewServerError("Failed to create session"))
		}
	}
	sess.FedProvider = providerName
	sess.FedState = state
	oa.sessions.Save(sess)
	oa.sessions.setSessionCookie(c, sess)

	return c.Redirect(http.StatusFound, authURL)
}

func (oa *OAuth2API) completeFederatedLogin(c echo.Context, providerName string) error {
	sess := oa.sessions.sessionFromRequest(c)
	if sess == nil || sess.FedProvider != providerName {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_state"})
	}

	user, err := oa.fedService.Complete(c.Request().Context(),
		providerName, sess.FedState, c.QueryParam("state"), c.QueryParam("code"))
	if err != nil {
		switch {
		case errors.Is(err, federation.ErrInvalidAuthState):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_state"})
		case errors.Is(err, errors.ErrUpstreamUnavailable):
			return c.JSON(http.StatusServiceUnavailable, errors.NewTemporarilyUnavailable("Identity provider unavailable"))
		default:
			log.Warn().Err(err).Str("provider", providerName).Msg("Delegated login failed")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "delegated_auth_failed"})
		}
	}

	sess.UserID = user.ID
	sess.Username = user.Username
	sess.FedProvider = ""
	sess.FedState = ""
	oa.sessions.Save(sess)

	return c.JSON(http.StatusOK, echo.Map{
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// HealthHandler reports process liveness.
func (oa *OAuth2API) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// clientCredentials extracts OAuth client credentials, preferring HTTP
// Basic auth over form values.
func clientCredentials(c echo.Context) (clientID, clientSecret string) {
	if id, secret, ok := c.Request().BasicAuth(); ok {
		return id, secret
	}
	return c.FormValue("client_id"), c.FormValue("client_secret")
}
