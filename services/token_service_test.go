package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/signet-dev/signet/cache"
	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/errors"
	"github.com/signet-dev/signet/memory"
)

// MockTokenRepository mocks domain.TokenRepository.
type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) StoreToken(ctx context.Context, token *domain.Token) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) GetToken(ctx context.Context, tokenValue, tokenType string) (*domain.Token, error) {
	args := m.Called(ctx, tokenValue, tokenType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Token), args.Error(1)
}

func (m *MockTokenRepository) RevokeToken(ctx context.Context, tokenValue string) error {
	args := m.Called(ctx, tokenValue)
	return args.Error(0)
}

func (m *MockTokenRepository) RevokeTokensByAuthCode(ctx context.Context, code string) ([]*domain.Token, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Token), args.Error(1)
}

func (m *MockTokenRepository) RevokeTokensByParent(ctx context.Context, parentID string) error {
	args := m.Called(ctx, parentID)
	return args.Error(0)
}

func (m *MockTokenRepository) ListTokensByUserAndClient(ctx context.Context, userID, clientID string) ([]*domain.Token, error) {
	args := m.Called(ctx, userID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Token), args.Error(1)
}

func (m *MockTokenRepository) DeleteExpiredTokens(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newTokenService(t *testing.T) (*TokenService, *memory.TokenRepository) {
	t.Helper()
	repo := memory.NewTokenRepository()
	store := cache.NewMemoryTokenStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	return NewTokenService(repo, store), repo
}

func TestTokenService_MintAndValidate(t *testing.T) {
	s, _ := newTokenService(t)
	ctx := context.Background()

	token, err := s.Mint(ctx, MintOptions{
		TokenType: domain.TokenTypeAccess,
		UserID:    "u1",
		ClientID:  "c1",
		Scope:     "read",
		TTL:       time.Hour,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token.ID)
	assert.NotEmpty(t, token.TokenValue)

	got, err := s.ValidateAccessToken(ctx, token.TokenValue)
	require.NoError(t, err)
	assert.Equal(t, token.ID, got.ID)
	assert.Equal(t, "read", got.Scope)
}

func TestTokenService_ValidateUnknown(t *testing.T) {
	s, _ := newTokenService(t)
	_, err := s.ValidateAccessToken(context.Background(), "missing")
	assert.ErrorIs(t, err, errors.ErrTokenNotFound)
}

func TestTokenService_ValidateExpired(t *testing.T) {
	s, _ := newTokenService(t)
	ctx := context.Background()

	token, err := s.Mint(ctx, MintOptions{
		TokenType: domain.TokenTypeAccess,
		UserID:    "u1",
		ClientID:  "c1",
		TTL:       -time.Minute,
	})
	require.NoError(t, err)

	_, err = s.ValidateAccessToken(ctx, token.TokenValue)
	assert.ErrorIs(t, err, errors.ErrTokenExpired)
}

// Revocation through the repository must win over the cache tier: a
// revoked token fails validation immediately.
func TestTokenService_RevokeBeatsCache(t *testing.T) {
	s, _ := newTokenService(t)
	ctx := context.Background()

	token, err := s.Mint(ctx, MintOptions{
		TokenType: domain.TokenTypeAccess,
		UserID:    "u1",
		ClientID:  "c1",
		TTL:       time.Hour,
	})
	require.NoError(t, err)

	// Warm the cache.
	_, err = s.ValidateAccessToken(ctx, token.TokenValue)
	require.NoError(t, err)

	require.NoError(t, s.Revoke(ctx, token.TokenValue))

	_, err = s.ValidateAccessToken(ctx, token.TokenValue)
	assert.ErrorIs(t, err, errors.ErrTokenRevoked)
}

func TestTokenService_RevokeRefreshTokenCascades(t *testing.T) {
	s, _ := newTokenService(t)
	ctx := context.Background()

	refresh, err := s.Mint(ctx, MintOptions{
		TokenType: domain.TokenTypeRefresh,
		UserID:    "u1",
		ClientID:  "c1",
		TTL:       time.Hour,
	})
	require.NoError(t, err)

	access, err := s.Mint(ctx, MintOptions{
		TokenType: domain.TokenTypeAccess,
		UserID:    "u1",
		ClientID:  "c1",
		ParentID:  refresh.ID,
		TTL:       time.Hour,
	})
	require.NoError(t, err)

	require.NoError(t, s.RevokeRefreshToken(ctx, refresh))

	_, err = s.GetRefreshToken(ctx, refresh.TokenValue)
	assert.Error(t, err)
	_, err = s.ValidateAccessToken(ctx, access.TokenValue)
	assert.ErrorIs(t, err, errors.ErrTokenRevoked)
}

// A store fault during lookup must surface as the fault itself, never as
// not-found: callers answer with a server error instead of denying the
// token.
func TestTokenService_StoreFaultPropagates(t *testing.T) {
	repo := new(MockTokenRepository)
	s := NewTokenService(repo, nil)
	ctx := context.Background()

	storeErr := errors.New("server selection timeout")
	repo.On("GetToken", mock.Anything, "v", domain.TokenTypeAccess).Return(nil, storeErr)
	repo.On("GetToken", mock.Anything, "v", domain.TokenTypeRefresh).Return(nil, storeErr)

	_, err := s.ValidateAccessToken(ctx, "v")
	require.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, errors.ErrTokenNotFound)

	_, err = s.GetRefreshToken(ctx, "v")
	require.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, errors.ErrTokenNotFound)
}

// Mint retries with a fresh random value when the store reports a
// collision, and gives up after the retry budget.
func TestTokenService_MintRetriesOnCollision(t *testing.T) {
	repo := new(MockTokenRepository)
	store := cache.NewMemoryTokenStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	s := NewTokenService(repo, store)

	repo.On("StoreToken", mock.Anything, mock.Anything).Return(errors.New("duplicate value")).Twice()
	repo.On("StoreToken", mock.Anything, mock.Anything).Return(nil).Once()

	token, err := s.Mint(context.Background(), MintOptions{
		TokenType: domain.TokenTypeAccess,
		UserID:    "u1",
		ClientID:  "c1",
		TTL:       time.Hour,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token.TokenValue)
	repo.AssertNumberOfCalls(t, "StoreToken", 3)
}

func TestTokenService_MintGivesUpAfterRetries(t *testing.T) {
	repo := new(MockTokenRepository)
	store := cache.NewMemoryTokenStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	s := NewTokenService(repo, store)

	repo.On("StoreToken", mock.Anything, mock.Anything).Return(errors.New("duplicate value"))

	_, err := s.Mint(context.Background(), MintOptions{
		TokenType: domain.TokenTypeAccess,
		TTL:       time.Hour,
	})
	require.Error(t, err)
	repo.AssertNumberOfCalls(t, "StoreToken", valueCollisionRetries)
}
