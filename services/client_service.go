package services

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/errors"
)

// ClientService is the client registry boundary: client lookup, secret
// validation, redirect URI and scope checks.
type ClientService struct {
	clients domain.ClientRepository
}

// NewClientService creates a new ClientService.
func NewClientService(clients domain.ClientRepository) *ClientService {
	return &ClientService{clients: clients}
}

// GetClient retrieves a registered, active client. Unknown and inactive
// ids both fail with ErrClientNotFound; store faults pass through so the
// caller can answer with a server error instead of denying the client.
func (s *ClientService) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, errors.ErrClientNotFound) {
			return nil, errors.ErrClientNotFound
		}
		return nil, err
	}
	if !client.IsActive {
		return nil, errors.ErrClientNotFound
	}
	return client, nil
}

// ValidateClient authenticates a client by id and secret. The secret
// comparison is constant time, and unknown-client and bad-secret collapse
// into the same error.
func (s *ClientService) ValidateClient(ctx context.Context, clientID, clientSecret string) (*domain.Client, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		if !errors.Is(err, errors.ErrClientNotFound) {
			return nil, err
		}
		// Burn a comparison anyway so unknown ids cost the same as bad secrets.
		subtle.ConstantTimeCompare([]byte(clientSecret), []byte(clientSecret))
		return nil, errors.ErrInvalidClient
	}

	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
		return nil, errors.ErrInvalidClient
	}

	return client, nil
}

// ValidateRedirectURI checks the uri against the client's allow-list.
// Only exact matches pass.
func (s *ClientService) ValidateRedirectURI(client *domain.Client, uri string) error {
	if uri == "" || !client.AllowsRedirectURI(uri) {
		return errors.ErrInvalidRedirectURI
	}
	return nil
}

// ValidateScope checks that every requested scope token is within the
// client's allowed scopes. An empty request is valid.
func (s *ClientService) ValidateScope(client *domain.Client, requestedScope string) error {
	if requestedScope == "" {
		return nil
	}

	for _, requested := range strings.Fields(requestedScope) {
		found := false
		for _, allowed := range client.AllowedScopes {
			if requested == allowed {
				found = true
				break
			}
		}
		if !found {
			return errors.ErrInvalidScope
		}
	}
	return nil
}

// ValidateGrantType checks that the client may use the given grant type.
func (s *ClientService) ValidateGrantType(client *domain.Client, grantType string) error {
	if !client.AllowsGrantType(grantType) {
		return errors.ErrUnsupportedGrantType
	}
	return nil
}
