package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/errors"
	"github.com/signet-dev/signet/internal/metrics"
)

// Authenticator is the credential verifier: it validates resource-owner
// credentials and produces the authenticated principal. Every failure
// path collapses into ErrInvalidCredentials so callers cannot probe for
// account existence.
type Authenticator struct {
	users  domain.UserRepository
	hasher PasswordHasher
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(users domain.UserRepository, hasher PasswordHasher) *Authenticator {
	return &Authenticator{users: users, hasher: hasher}
}

// Authenticate looks the user up by exact username and verifies the
// password against the stored hash. Accounts created by delegated login
// carry no password hash and always fail here.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := a.users.GetUserByUsername(ctx, username)
	if err != nil {
		metrics.IncLoginFailure()
		return nil, errors.ErrInvalidCredentials
	}

	if !user.HasPassword() {
		// Delegated-only account; password auth is never valid for it.
		metrics.IncLoginFailure()
		return nil, errors.ErrInvalidCredentials
	}

	if err := a.hasher.Verify(user.PasswordHash, password); err != nil {
		metrics.IncLoginFailure()
		return nil, errors.ErrInvalidCredentials
	}

	if user.Status == domain.UserStatusLocked {
		metrics.IncLoginFailure()
		return nil, errors.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	if err := a.users.UpdateUser(ctx, user); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record last login time")
	}

	metrics.IncLoginSuccess()
	log.Debug().Str("user_id", user.ID).Msg("User authenticated")

	return user, nil
}

// Register creates a native account with a hashed password. It exists for
// the admin CLI and tests; self-service registration is not part of the
// protocol core.
func (a *Authenticator) Register(ctx context.Context, username, password string) (*domain.User, error) {
	hash, err := a.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
