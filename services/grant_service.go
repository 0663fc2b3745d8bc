package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/signet-dev/signet/api"
	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/errors"
	"github.com/signet-dev/signet/internal/metrics"
	"github.com/signet-dev/signet/internal/randutil"
)

// ResponseTypeCode is the only supported response type. The implicit
// flow is intentionally excluded as unsafe.
const ResponseTypeCode = "code"

// OAuth grant type identifiers on the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// GrantConfig carries the validity windows of the artifacts the issuer
// mints.
type GrantConfig struct {
	AuthCodeTTL     time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// DefaultGrantConfig returns the validity windows used when the caller
// does not override them: ten-minute codes, 24h access tokens, 30-day
// refresh tokens.
func DefaultGrantConfig() GrantConfig {
	return GrantConfig{
		AuthCodeTTL:     10 * time.Minute,
		AccessTokenTTL:  24 * time.Hour,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}
}

// GrantService is the protocol state machine: it turns an authenticated
// user plus a client request into an authorization code, exchanges codes
// for token pairs, serves refresh grants and answers introspection.
type GrantService struct {
	clients *ClientService
	codes   domain.AuthCodeRepository
	tokens  *TokenService
	users   domain.UserRepository
	signer  *TokenSigner
	cfg     GrantConfig
}

// NewGrantService creates a new GrantService. signer may be nil; ID
// tokens are then never issued.
func NewGrantService(
	clients *ClientService,
	codes domain.AuthCodeRepository,
	tokens *TokenService,
	users domain.UserRepository,
	signer *TokenSigner,
	cfg GrantConfig,
) *GrantService {
	return &GrantService{
		clients: clients,
		codes:   codes,
		tokens:  tokens,
		users:   users,
		signer:  signer,
		cfg:     cfg,
	}
}

// AuthorizeRequest is a validated authorization request for an already
// authenticated user.
type AuthorizeRequest struct {
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scope        string
	UserID       string
}

// Authorize validates the request against the client registry and mints
// a single-use authorization code bound to the redirect URI.
func (s *GrantService) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	if req.ResponseType != ResponseTypeCode {
		return "", errors.ErrUnsupportedResponseType
	}

	client, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		return "", err
	}
	if err := s.clients.ValidateGrantType(client, GrantTypeAuthorizationCode); err != nil {
		return "", err
	}
	if err := s.clients.ValidateRedirectURI(client, req.RedirectURI); err != nil {
		return "", err
	}
	if err := s.clients.ValidateScope(client, req.Scope); err != nil {
		return "", err
	}

	// A stored-value collision means the random draw produced an existing
	// code; retry with a fresh draw, never overwrite.
	for attempt := 0; attempt < valueCollisionRetries; attempt++ {
		value, err := randutil.OpaqueValue()
		if err != nil {
			return "", err
		}

		now := time.Now().UTC()
		code := &domain.AuthCode{
			Code:        value,
			ClientID:    req.ClientID,
			UserID:      req.UserID,
			RedirectURI: req.RedirectURI,
			Scope:       req.Scope,
			ExpiresAt:   now.Add(s.cfg.AuthCodeTTL),
			CreatedAt:   now,
		}
		if err := s.codes.SaveAuthCode(ctx, code); err != nil {
			if errors.Is(err, errors.ErrAuthCodeExists) {
				log.Warn().Int("attempt", attempt+1).Msg("Authorization code collision, drawing a new value")
				continue
			}
			return "", err
		}

		metrics.IncAuthCodesIssued()
		log.Debug().
			Str("client_id", req.ClientID).
			Str("user_id", req.UserID).
			Str("scope", req.Scope).
			Msg("Authorization code issued")
		return value, nil
	}
	return "", errors.ErrAuthCodeExists
}

// Exchange redeems an authorization code for an access/refresh token
// pair. The consume is atomic: under concurrent exchange attempts for
// one code exactly one caller wins. A consumed code presented again is
// treated as interception and every token already minted from it is
// revoked.
func (s *GrantService) Exchange(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*api.TokenResponse, error) {
	client, err := s.clients.ValidateClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	authCode, err := s.codes.ConsumeAuthCode(ctx, code)
	if err != nil {
		if errors.Is(err, errors.ErrAuthCodeUsed) {
			log.Warn().Str("client_id", clientID).Msg("Authorization code replay detected, revoking descendant tokens")
			if revokeErr := s.tokens.RevokeByAuthCode(ctx, code); revokeErr != nil {
				log.Error().Err(revokeErr).Msg("Failed to revoke tokens for replayed code")
			}
			return nil, errors.ErrAuthCodeUsed
		}
		// Unknown codes collapse into the same grant failure; a store
		// fault must not, it surfaces as a server error instead.
		if errors.Is(err, errors.ErrAuthCodeNotFound) {
			return nil, errors.ErrAuthCodeUsed
		}
		return nil, err
	}

	if authCode.Expired(time.Now()) {
		return nil, errors.ErrAuthCodeUsed
	}
	// The code is bound to the client and redirect URI it was issued
	// for; any mismatch invalidates the exchange.
	if authCode.ClientID != clientID || authCode.RedirectURI != redirectURI {
		return nil, errors.ErrAuthCodeUsed
	}

	return s.mintPair(ctx, client, authCode)
}

func (s *GrantService) mintPair(ctx context.Context, client *domain.Client, authCode *domain.AuthCode) (*api.TokenResponse, error) {
	refresh, err := s.tokens.Mint(ctx, MintOptions{
		TokenType: domain.TokenTypeRefresh,
		UserID:    authCode.UserID,
		ClientID:  client.ID,
		Scope:     authCode.Scope,
		AuthCode:  authCode.Code,
		TTL:       s.cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.Mint(ctx, MintOptions{
		TokenType: domain.TokenTypeAccess,
		UserID:    authCode.UserID,
		ClientID:  client.ID,
		Scope:     authCode.Scope,
		AuthCode:  authCode.Code,
		ParentID:  refresh.ID,
		TTL:       s.cfg.AccessTokenTTL,
	})
	if err != nil {
		return nil, err
	}

	resp := &api.TokenResponse{
		AccessToken:  access.TokenValue,
		TokenType:    "bearer",
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		RefreshToken: refresh.TokenValue,
		Scope:        authCode.Scope,
	}

	if s.signer != nil && scopeContains(authCode.Scope, "openid") {
		idToken, err := s.signer.SignIDToken(authCode.UserID, client.ID, s.cfg.AccessTokenTTL)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to sign id token")
		} else {
			resp.IDToken = idToken
		}
	}

	log.Info().
		Str("client_id", client.ID).
		Str("user_id", authCode.UserID).
		Str("scope", authCode.Scope).
		Msg("Token pair issued")
	return resp, nil
}

// Refresh serves the refresh_token grant. The presented refresh token is
// rotated: it is revoked together with its minted access tokens and a
// fresh pair takes its place. scope may narrow the grant to a subset; an
// empty scope keeps the original.
func (s *GrantService) Refresh(ctx context.Context, clientID, clientSecret, refreshValue, scope string) (*api.TokenResponse, error) {
	client, err := s.clients.ValidateClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	if err := s.clients.ValidateGrantType(client, GrantTypeRefreshToken); err != nil {
		return nil, err
	}

	refresh, err := s.tokens.GetRefreshToken(ctx, refreshValue)
	if err != nil {
		if isTokenGrantFailure(err) {
			return nil, errors.ErrTokenNotFound
		}
		return nil, err
	}
	if refresh.ClientID != clientID {
		return nil, errors.ErrTokenNotFound
	}

	grantScope := refresh.Scope
	if scope != "" {
		if !scopeSubset(scope, refresh.Scope) {
			return nil, errors.ErrInvalidScope
		}
		grantScope = scope
	}
	// The registry may have narrowed the client's allowance since the
	// token was minted; a stored scope outside it cannot be re-granted.
	if err := s.clients.ValidateScope(client, grantScope); err != nil {
		return nil, err
	}

	// Rotation: the presented token dies with its descendants before the
	// replacement pair is minted.
	if err := s.tokens.RevokeRefreshToken(ctx, refresh); err != nil {
		return nil, err
	}

	newRefresh, err := s.tokens.Mint(ctx, MintOptions{
		TokenType: domain.TokenTypeRefresh,
		UserID:    refresh.UserID,
		ClientID:  clientID,
		Scope:     grantScope,
		AuthCode:  refresh.AuthCode,
		TTL:       s.cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.Mint(ctx, MintOptions{
		TokenType: domain.TokenTypeAccess,
		UserID:    refresh.UserID,
		ClientID:  clientID,
		Scope:     grantScope,
		AuthCode:  refresh.AuthCode,
		ParentID:  newRefresh.ID,
		TTL:       s.cfg.AccessTokenTTL,
	})
	if err != nil {
		return nil, err
	}

	metrics.IncTokensRefreshed()
	log.Info().
		Str("client_id", clientID).
		Str("user_id", refresh.UserID).
		Msg("Refresh grant served")

	return &api.TokenResponse{
		AccessToken:  access.TokenValue,
		TokenType:    "bearer",
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		RefreshToken: newRefresh.TokenValue,
		Scope:        grantScope,
	}, nil
}

// CheckToken answers introspection for resource servers. Unauthenticated
// callers always fail with ErrUnauthorized, independent of token
// validity, so the endpoint cannot be used as a token-guessing oracle.
func (s *GrantService) CheckToken(ctx context.Context, tokenValue string, callerAuthenticated bool) (*api.TokenIntrospection, error) {
	if !callerAuthenticated {
		return nil, errors.ErrUnauthorized
	}

	token, err := s.tokens.ValidateAccessToken(ctx, tokenValue)
	if err != nil {
		if isTokenGrantFailure(err) {
			return nil, errors.ErrTokenNotFound
		}
		return nil, err
	}

	// A token is only as valid as its client: a deleted or deactivated
	// client, or a scope the registry no longer allows it, deactivates
	// every token minted under it.
	client, err := s.clients.GetClient(ctx, token.ClientID)
	if err != nil {
		if errors.Is(err, errors.ErrClientNotFound) {
			return nil, errors.ErrTokenNotFound
		}
		return nil, err
	}
	if err := s.clients.ValidateScope(client, token.Scope); err != nil {
		return nil, errors.ErrTokenNotFound
	}

	introspection := &api.TokenIntrospection{
		Active:    true,
		Scope:     token.Scope,
		ClientID:  token.ClientID,
		TokenType: token.TokenType,
		Exp:       token.ExpiresAt.Unix(),
		Iat:       token.CreatedAt.Unix(),
		Sub:       token.UserID,
		Aud:       token.ClientID,
		Jti:       token.ID,
	}

	if token.UserID != "" {
		if user, err := s.users.GetUserByID(ctx, token.UserID); err == nil {
			introspection.Username = user.Username
		}
	}

	return introspection, nil
}

// RevokeToken implements the revocation endpoint semantics (RFC 7009):
// the client must authenticate, and the call succeeds whether or not
// the token was valid. Revoking a refresh token also revokes the access
// tokens minted from it.
func (s *GrantService) RevokeToken(ctx context.Context, clientID, clientSecret, tokenValue string) error {
	if _, err := s.clients.ValidateClient(ctx, clientID, clientSecret); err != nil {
		return err
	}

	if refresh, err := s.tokens.GetRefreshToken(ctx, tokenValue); err == nil {
		if err := s.tokens.RevokeRefreshToken(ctx, refresh); err != nil {
			log.Warn().Err(err).Msg("Failed to revoke refresh token")
		}
		return nil
	}

	// Not a live refresh token; try as an access token. Unknown values
	// are fine, revocation is idempotent toward the caller.
	if err := s.tokens.Revoke(ctx, tokenValue); err != nil && !errors.Is(err, errors.ErrTokenNotFound) {
		log.Warn().Err(err).Msg("Failed to revoke access token")
	}
	return nil
}

// isTokenGrantFailure reports whether err is one of the token sentinels
// that deny the grant. Anything else is a store fault and propagates.
func isTokenGrantFailure(err error) bool {
	return errors.Is(err, errors.ErrTokenNotFound) ||
		errors.Is(err, errors.ErrTokenExpired) ||
		errors.Is(err, errors.ErrTokenRevoked)
}

// scopeContains reports whether the space-delimited scope string contains
// the given scope token.
func scopeContains(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}
	return false
}

// scopeSubset reports whether every token in requested appears in granted.
func scopeSubset(requested, granted string) bool {
	for _, r := range strings.Fields(requested) {
		if !scopeContains(granted, r) {
			return false
		}
	}
	return true
}
