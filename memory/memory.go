// Package memory provides in-memory implementations of the domain
// repositories for single-process deployments and tests. All stores are
// safe for concurrent use; the auth code store in particular performs its
// consume as a compare-and-set under one mutex so that at most one
// exchange succeeds per code.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/errors"
)

// AuthCodeRepository is an in-memory domain.AuthCodeRepository.
type AuthCodeRepository struct {
	mu    sync.Mutex
	codes map[string]*domain.AuthCode
}

func NewAuthCodeRepository() *AuthCodeRepository {
	return &AuthCodeRepository{codes: make(map[string]*domain.AuthCode)}
}

func (r *AuthCodeRepository) SaveAuthCode(_ context.Context, code *domain.AuthCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.codes[code.Code]; exists {
		return errors.ErrAuthCodeExists
	}
	cp := *code
	r.codes[code.Code] = &cp
	return nil
}

func (r *AuthCodeRepository) GetAuthCode(_ context.Context, code string) (*domain.AuthCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.codes[code]
	if !ok {
		return nil, errors.ErrAuthCodeNotFound
	}
	cp := *stored
	return &cp, nil
}

// ConsumeAuthCode flips the used flag atomically. Losing callers get
// errors.ErrAuthCodeUsed.
func (r *AuthCodeRepository) ConsumeAuthCode(_ context.Context, code string) (*domain.AuthCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.codes[code]
	if !ok {
		return nil, errors.ErrAuthCodeNotFound
	}
	if stored.Used {
		return nil, errors.ErrAuthCodeUsed
	}
	stored.Used = true
	cp := *stored
	return &cp, nil
}

func (r *AuthCodeRepository) DeleteExpiredAuthCodes(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for value, code := range r.codes {
		if code.Expired(now) {
			delete(r.codes, value)
		}
	}
	return nil
}

var _ domain.AuthCodeRepository = (*AuthCodeRepository)(nil)

// TokenRepository is an in-memory domain.TokenRepository.
type TokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]*domain.Token // keyed by token value
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{tokens: make(map[string]*domain.Token)}
}

func (r *TokenRepository) StoreToken(_ context.Context, token *domain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[token.TokenValue]; exists {
		return errors.New("token value collision")
	}
	cp := *token
	r.tokens[token.TokenValue] = &cp
	return nil
}

func (r *TokenRepository) GetToken(_ context.Context, tokenValue, tokenType string) (*domain.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.tokens[tokenValue]
	if !ok || stored.TokenType != tokenType {
		return nil, errors.ErrTokenNotFound
	}
	cp := *stored
	return &cp, nil
}

func (r *TokenRepository) RevokeToken(_ context.Context, tokenValue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tokens[tokenValue]
	if !ok {
		return errors.ErrTokenNotFound
	}
	stored.IsRevoked = true
	return nil
}

func (r *TokenRepository) RevokeTokensByAuthCode(_ context.Context, code string) ([]*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var revoked []*domain.Token
	for _, token := range r.tokens {
		if token.AuthCode == code {
			token.IsRevoked = true
			cp := *token
			revoked = append(revoked, &cp)
		}
	}
	return revoked, nil
}

func (r *TokenRepository) RevokeTokensByParent(_ context.Context, parentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, token := range r.tokens {
		if token.ParentID == parentID {
			token.IsRevoked = true
		}
	}
	return nil
}

func (r *TokenRepository) ListTokensByUserAndClient(_ context.Context, userID, clientID string) ([]*domain.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	var out []*domain.Token
	for _, token := range r.tokens {
		if token.UserID == userID && token.ClientID == clientID && !token.IsRevoked && !token.Expired(now) {
			cp := *token
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *TokenRepository) DeleteExpiredTokens(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for value, token := range r.tokens {
		if token.Expired(now) {
			delete(r.tokens, value)
		}
	}
	return nil
}

var _ domain.TokenRepository = (*TokenRepository)(nil)

// ClientRepository is an in-memory domain.ClientRepository.
type ClientRepository struct {
	mu      sync.RWMutex
	clients map[string]*domain.Client
}

func NewClientRepository() *ClientRepository {
	return &ClientRepository{clients: make(map[string]*domain.Client)}
}

func (r *ClientRepository) CreateClient(_ context.Context, client *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[client.ID]; exists {
		return errors.New("client already exists")
	}
	cp := *client
	r.clients[client.ID] = &cp
	return nil
}

func (r *ClientRepository) GetClient(_ context.Context, clientID string) (*domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.clients[clientID]
	if !ok {
		return nil, errors.ErrClientNotFound
	}
	cp := *stored
	return &cp, nil
}

func (r *ClientRepository) UpdateClient(_ context.Context, client *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[client.ID]; !ok {
		return errors.ErrClientNotFound
	}
	cp := *client
	r.clients[client.ID] = &cp
	return nil
}

func (r *ClientRepository) DeleteClient(_ context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[clientID]; !ok {
		return errors.ErrClientNotFound
	}
	delete(r.clients, clientID)
	return nil
}

func (r *ClientRepository) ListClients(_ context.Context) ([]*domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Client, 0, len(r.clients))
	for _, client := range r.clients {
		cp := *client
		out = append(out, &cp)
	}
	return out, nil
}

var _ domain.ClientRepository = (*ClientRepository)(nil)

// UserRepository is an in-memory domain.UserRepository.
type UserRepository struct {
	mu         sync.RWMutex
	byID       map[string]*domain.User
	byUsername map[string]*domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:       make(map[string]*domain.User),
		byUsername: make(map[string]*domain.User),
	}
}

func (r *UserRepository) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return errors.ErrUserExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	r.byID[user.ID] = &cp
	r.byUsername[user.Username] = &cp
	return nil
}

func (r *UserRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	cp := *stored
	return &cp, nil
}

func (r *UserRepository) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byUsername[username]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	cp := *stored
	return &cp, nil
}

func (r *UserRepository) UpdateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[user.ID]
	if !ok {
		return errors.ErrUserNotFound
	}
	delete(r.byUsername, stored.Username)
	cp := *user
	r.byID[user.ID] = &cp
	r.byUsername[user.Username] = &cp
	return nil
}

var _ domain.UserRepository = (*UserRepository)(nil)

// FederatedIdentityRepository is an in-memory
// domain.FederatedIdentityRepository keyed by (provider, provider user id).
type FederatedIdentityRepository struct {
	mu         sync.RWMutex
	identities map[string]*domain.FederatedIdentity
}

func NewFederatedIdentityRepository() *FederatedIdentityRepository {
	return &FederatedIdentityRepository{identities: make(map[string]*domain.FederatedIdentity)}
}

func identityKey(providerName, providerUserID string) string {
	return providerName + "\x00" + providerUserID
}

func (r *FederatedIdentityRepository) CreateIdentity(_ context.Context, identity *domain.FederatedIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := identityKey(identity.ProviderName, identity.ProviderUserID)
	if _, exists := r.identities[key]; exists {
		return errors.New("federated identity already exists")
	}
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	cp := *identity
	r.identities[key] = &cp
	return nil
}

func (r *FederatedIdentityRepository) GetIdentity(_ context.Context, providerName, providerUserID string) (*domain.FederatedIdentity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.identities[identityKey(providerName, providerUserID)]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	cp := *stored
	return &cp, nil
}

var _ domain.FederatedIdentityRepository = (*FederatedIdentityRepository)(nil)
