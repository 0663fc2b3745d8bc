// Package redis provides a Redis-backed token cache for deployments where
// several server processes share the same store.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/signet-dev/signet/cache"
	"github.com/signet-dev/signet/errors"
)

// TokenStore implements cache.TokenStore using Redis. Entries are stored
// as JSON strings with a key TTL matching the token expiry.
type TokenStore struct {
	client *redis.Client
	prefix string
}

// NewTokenStore creates a new TokenStore instance. prefix namespaces the
// keys so several deployments can share one Redis.
func NewTokenStore(client *redis.Client, prefix string) *TokenStore {
	return &TokenStore{client: client, prefix: prefix}
}

func (r *TokenStore) redisKey(tokenValue string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, cache.HashToken(tokenValue))
}

// Set stores a token entry with an expiry matching the token's.
func (r *TokenStore) Set(ctx context.Context, token *cache.TokenEntry) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token entry: %w", err)
	}

	if err := r.client.Set(ctx, r.redisKey(token.TokenValue), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}
	return nil
}

// Get retrieves a token entry by its value.
func (r *TokenStore) Get(ctx context.Context, tokenValue string) (*cache.TokenEntry, error) {
	payload, err := r.client.Get(ctx, r.redisKey(tokenValue)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token from redis: %w", err)
	}

	var entry cache.TokenEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token entry: %w", err)
	}
	return &entry, nil
}

// Delete removes a token entry.
func (r *TokenStore) Delete(ctx context.Context, tokenValue string) error {
	if err := r.client.Del(ctx, r.redisKey(tokenValue)).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}

// Clear removes every entry under this store's prefix.
func (r *TokenStore) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, fmt.Sprintf("%s:token:*", r.prefix), 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete token from redis: %w", err)
		}
	}
	return iter.Err()
}

// Count returns the number of cached tokens under this store's prefix.
func (r *TokenStore) Count(ctx context.Context) int {
	count := 0
	iter := r.client.Scan(ctx, 0, fmt.Sprintf("%s:token:*", r.prefix), 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}

// Close releases the underlying client connection.
func (r *TokenStore) Close() error {
	return r.client.Close()
}

var _ cache.TokenStore = (*TokenStore)(nil)
