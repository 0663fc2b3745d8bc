package cache

import (
	"context"
	"time"
)

// TokenEntry is the cached projection of an issued access token. The
// cache is a read-through tier in front of the token repository; the
// repository stays authoritative for revocation.
type TokenEntry struct {
	ID         string    `redis:"id"         json:"id"`
	TokenType  string    `redis:"tokenType"  json:"token_type"`
	TokenValue string    `redis:"tokenValue" json:"token_value"`
	ClientID   string    `redis:"clientId"   json:"client_id"`
	UserID     string    `redis:"userId"     json:"user_id"`
	Scope      string    `redis:"scope"      json:"scope"`
	ExpiresAt  time.Time `redis:"expiresAt"  json:"expires_at"`
	CreatedAt  time.Time `redis:"createdAt"  json:"created_at"`
	IsRevoked  bool      `redis:"isRevoked"  json:"is_revoked"`
}

// TokenStore caches token entries keyed by the sha256 hash of the token
// value. Implementations expire entries at the token's ExpiresAt.
type TokenStore interface {
	Set(ctx context.Context, token *TokenEntry) error
	Get(ctx context.Context, tokenValue string) (*TokenEntry, error)
	Delete(ctx context.Context, tokenValue string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) int
	Close() error
}
