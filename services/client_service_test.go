package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/errors"
	"github.com/signet-dev/signet/memory"
)

func newClientService(t *testing.T) (*ClientService, *memory.ClientRepository) {
	t.Helper()
	repo := memory.NewClientRepository()
	require.NoError(t, repo.CreateClient(context.Background(), &domain.Client{
		ID:                "client-1",
		Secret:            "s3cret",
		Type:              domain.ClientTypeConfidential,
		RedirectURIs:      []string{"https://app.example.com/cb"},
		AllowedScopes:     []string{"read", "write"},
		AllowedGrantTypes: []string{"authorization_code"},
		IsActive:          true,
	}))
	return NewClientService(repo), repo
}

func TestClientService_ValidateClient(t *testing.T) {
	s, _ := newClientService(t)
	ctx := context.Background()

	client, err := s.ValidateClient(ctx, "client-1", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "client-1", client.ID)

	_, err = s.ValidateClient(ctx, "client-1", "wrong")
	assert.ErrorIs(t, err, errors.ErrInvalidClient)

	// Unknown clients fail with the same error as bad secrets.
	_, err = s.ValidateClient(ctx, "ghost", "s3cret")
	assert.ErrorIs(t, err, errors.ErrInvalidClient)
}

func TestClientService_InactiveClient(t *testing.T) {
	s, repo := newClientService(t)
	ctx := context.Background()

	client, err := repo.GetClient(ctx, "client-1")
	require.NoError(t, err)
	client.IsActive = false
	require.NoError(t, repo.UpdateClient(ctx, client))

	_, err = s.GetClient(ctx, "client-1")
	assert.ErrorIs(t, err, errors.ErrClientNotFound)
	_, err = s.ValidateClient(ctx, "client-1", "s3cret")
	assert.ErrorIs(t, err, errors.ErrInvalidClient)
}

// faultyClientRepository fails every lookup the way an unreachable store
// does.
type faultyClientRepository struct {
	domain.ClientRepository
	err error
}

func (r faultyClientRepository) GetClient(context.Context, string) (*domain.Client, error) {
	return nil, r.err
}

// A store fault is not an unknown client: it propagates so the caller can
// answer with a server error instead of rejecting the credentials.
func TestClientService_StoreFaultPropagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	s := NewClientService(faultyClientRepository{err: storeErr})
	ctx := context.Background()

	_, err := s.GetClient(ctx, "client-1")
	require.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, errors.ErrClientNotFound)

	_, err = s.ValidateClient(ctx, "client-1", "s3cret")
	require.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, errors.ErrInvalidClient)
}

func TestClientService_ValidateRedirectURI(t *testing.T) {
	s, _ := newClientService(t)
	client, err := s.GetClient(context.Background(), "client-1")
	require.NoError(t, err)

	assert.NoError(t, s.ValidateRedirectURI(client, "https://app.example.com/cb"))

	// Exact string match: prefixes, subpaths and case variants all fail.
	assert.ErrorIs(t, s.ValidateRedirectURI(client, "https://app.example.com/cb/extra"), errors.ErrInvalidRedirectURI)
	assert.ErrorIs(t, s.ValidateRedirectURI(client, "https://app.example.com/CB"), errors.ErrInvalidRedirectURI)
	assert.ErrorIs(t, s.ValidateRedirectURI(client, ""), errors.ErrInvalidRedirectURI)
}

func TestClientService_ValidateScope(t *testing.T) {
	s, _ := newClientService(t)
	client, err := s.GetClient(context.Background(), "client-1")
	require.NoError(t, err)

	assert.NoError(t, s.ValidateScope(client, "read"))
	assert.NoError(t, s.ValidateScope(client, "read write"))
	assert.ErrorIs(t, s.ValidateScope(client, "read admin"), errors.ErrInvalidScope)
}

func TestClientService_ValidateGrantType(t *testing.T) {
	s, _ := newClientService(t)
	client, err := s.GetClient(context.Background(), "client-1")
	require.NoError(t, err)

	assert.NoError(t, s.ValidateGrantType(client, "authorization_code"))
	assert.ErrorIs(t, s.ValidateGrantType(client, "refresh_token"), errors.ErrUnsupportedGrantType)
}
