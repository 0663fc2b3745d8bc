package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/errors"
	"github.com/signet-dev/signet/internal/federation"
	"github.com/signet-dev/signet/internal/randutil"
)

// FederationService bridges delegated logins at external identity
// providers into local principals. A successful round-trip yields a
// local user whose username is derived deterministically from the
// provider identity, so the same external account always maps to the
// same principal.
type FederationService struct {
	providers   map[string]federation.OAuth2Provider
	users       domain.UserRepository
	identities  domain.FederatedIdentityRepository
	callbackURL string
	timeout     time.Duration
}

// NewFederationService composes the delegated login bridge. callbackURL
// is the externally visible URL providers redirect back to; timeout
// bounds each upstream call.
func NewFederationService(
	providers []federation.OAuth2Provider,
	users domain.UserRepository,
	identities domain.FederatedIdentityRepository,
	callbackURL string,
	timeout time.Duration,
) *FederationService {
	byName := make(map[string]federation.OAuth2Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &FederationService{
		providers:   byName,
		users:       users,
		identities:  identities,
		callbackURL: callbackURL,
		timeout:     timeout,
	}
}

// HasProvider reports whether a provider with the given name is configured.
func (s *FederationService) HasProvider(name string) bool {
	_, ok := s.providers[name]
	return ok
}

// Begin starts the delegated flow against the named provider. It returns
// the provider's authorization URL and the state value the caller must
// persist (session or cookie) to verify the callback.
func (s *FederationService) Begin(providerName string) (authURL, state string, err error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return "", "", federation.ErrProviderNotFound
	}

	state, err = randutil.State()
	if err != nil {
		return "", "", err
	}

	authURL, err = provider.GetAuthCodeURL(state, s.callbackURL)
	if err != nil {
		return "", "", err
	}
	return authURL, state, nil
}

// Complete finishes the delegated flow: it verifies the round-trip state,
// redeems the provider code, fetches the external identity and resolves
// it to a local user, creating a passwordless principal on first login.
func (s *FederationService) Complete(ctx context.Context, providerName, expectedState, gotState, code string) (*domain.User, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, federation.ErrProviderNotFound
	}

	if expectedState == "" || gotState != expectedState {
		return nil, federation.ErrInvalidAuthState
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	token, err := provider.ExchangeCode(ctx, s.callbackURL, code)
	if err != nil {
		log.Warn().Err(err).Str("provider", providerName).Msg("Upstream code exchange failed")
		return nil, errors.ErrUpstreamUnavailable
	}

	info, err := provider.FetchUserInfo(ctx, token)
	if err != nil {
		log.Warn().Err(err).Str("provider", providerName).Msg("Upstream user-info fetch failed")
		return nil, errors.ErrUpstreamUnavailable
	}
	if info.ProviderUserID == "" {
		return nil, errors.ErrDelegatedAuthFailed
	}

	return s.resolveUser(ctx, providerName, info)
}

// resolveUser maps an external identity to a local user. Returning users
// are found through their stored identity link; first-time users get a
// passwordless account under the derived username. A derived username
// already held by a password-bearing account is a collision and fails
// the delegated login rather than capturing the native account.
func (s *FederationService) resolveUser(ctx context.Context, providerName string, info *federation.ExternalUserInfo) (*domain.User, error) {
	identity, err := s.identities.GetIdentity(ctx, providerName, info.ProviderUserID)
	if err == nil {
		user, err := s.users.GetUserByID(ctx, identity.UserID)
		if err != nil {
			log.Error().Err(err).Str("user_id", identity.UserID).Msg("Identity links to a missing user")
			return nil, errors.ErrDelegatedAuthFailed
		}
		s.touchLogin(ctx, user)
		return user, nil
	}
	if !errors.Is(err, errors.ErrUserNotFound) {
		return nil, err
	}

	username := DelegatedUsername(providerName, info.ProviderUserID)

	if existing, err := s.users.GetUserByUsername(ctx, username); err == nil {
		if existing.HasPassword() {
			log.Warn().Str("username", username).Msg("Delegated username collides with a native account")
			return nil, errors.ErrDelegatedAuthFailed
		}
		// Passwordless account without an identity link: repair the link
		// and continue.
		if err := s.linkIdentity(ctx, existing.ID, providerName, info); err != nil {
			return nil, err
		}
		s.touchLogin(ctx, existing)
		return existing, nil
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		Status:    domain.UserStatusActive,
		FirstName: info.FirstName,
		LastName:  info.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.linkIdentity(ctx, user.ID, providerName, info); err != nil {
		return nil, err
	}

	log.Info().
		Str("provider", providerName).
		Str("username", username).
		Msg("Created principal for delegated login")
	s.touchLogin(ctx, user)
	return user, nil
}

func (s *FederationService) linkIdentity(ctx context.Context, userID, providerName string, info *federation.ExternalUserInfo) error {
	now := time.Now().UTC()
	return s.identities.CreateIdentity(ctx, &domain.FederatedIdentity{
		ID:             uuid.NewString(),
		UserID:         userID,
		ProviderName:   providerName,
		ProviderUserID: info.ProviderUserID,
		ProviderEmail:  info.Email,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

func (s *FederationService) touchLogin(ctx context.Context, user *domain.User) {
	now := time.Now().UTC()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := s.users.UpdateUser(ctx, user); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record delegated login time")
	}
}

// DelegatedUsername derives the deterministic local username for an
// external identity.
func DelegatedUsername(providerName, providerUserID string) string {
	return fmt.Sprintf("%s@%s", providerUserID, providerName)
}
