package domain

import "context"

// AuthCodeRepository persists authorization codes. Consume is the only
// mutation a protocol exchange performs; it must be atomic with respect
// to concurrent exchange attempts for the same code.
type AuthCodeRepository interface {
	// SaveAuthCode stores a freshly issued code. Storing a code value that
	// already exists is a fatal generation error and must be reported.
	SaveAuthCode(ctx context.Context, code *AuthCode) error

	// GetAuthCode retrieves a code by value, consumed or not.
	GetAuthCode(ctx context.Context, code string) (*AuthCode, error)

	// ConsumeAuthCode atomically flips the used flag and returns the code
	// record. At most one caller succeeds per code; later callers receive
	// errors.ErrAuthCodeUsed. Expiry is the caller's check: an expired but
	// unconsumed code is still consumed, it is dead either way.
	ConsumeAuthCode(ctx context.Context, code string) (*AuthCode, error)

	// DeleteExpiredAuthCodes removes codes past their validity window.
	DeleteExpiredAuthCodes(ctx context.Context) error
}

// TokenRepository persists issued access and refresh tokens, keyed by
// opaque value, with a secondary index on (user_id, client_id) for
// revocation sweeps.
type TokenRepository interface {
	StoreToken(ctx context.Context, token *Token) error

	// GetToken retrieves a token of the given type by its opaque value,
	// revoked or expired included; validity is the caller's check.
	GetToken(ctx context.Context, tokenValue, tokenType string) (*Token, error)

	// RevokeToken marks a single token revoked by value.
	RevokeToken(ctx context.Context, tokenValue string) error

	// RevokeTokensByAuthCode revokes every token minted from the given
	// authorization code and returns the revoked records. Used when code
	// reuse is detected.
	RevokeTokensByAuthCode(ctx context.Context, code string) ([]*Token, error)

	// RevokeTokensByParent revokes every token whose ParentID matches the
	// given token ID. Used for immediate refresh-token revocation.
	RevokeTokensByParent(ctx context.Context, parentID string) error

	// ListTokensByUserAndClient returns live tokens for a (user, client)
	// pair, for revocation sweeps.
	ListTokensByUserAndClient(ctx context.Context, userID, clientID string) ([]*Token, error)

	DeleteExpiredTokens(ctx context.Context) error
}

// ClientRepository stores registered client applications.
type ClientRepository interface {
	CreateClient(ctx context.Context, client *Client) error
	GetClient(ctx context.Context, clientID string) (*Client, error)
	UpdateClient(ctx context.Context, client *Client) error
	DeleteClient(ctx context.Context, clientID string) error
	ListClients(ctx context.Context) ([]*Client, error)
}

// UserRepository is the boundary to the external account store. The core
// only creates, looks up by id or username, and touches login timestamps;
// it never enumerates or deletes principals.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
}

// FederatedIdentityRepository links local users to external providers.
type FederatedIdentityRepository interface {
	CreateIdentity(ctx context.Context, identity *FederatedIdentity) error
	GetIdentity(ctx context.Context, providerName, providerUserID string) (*FederatedIdentity, error)
}
