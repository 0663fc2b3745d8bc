package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/signet-dev/signet/cache"
	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/errors"
	"github.com/signet-dev/signet/internal/metrics"
	"github.com/signet-dev/signet/internal/randutil"
)

// valueCollisionRetries bounds how many fresh random draws Mint attempts
// when the store reports a value collision before giving up.
const valueCollisionRetries = 3

// TokenService mints, validates and revokes opaque tokens. A cache tier
// sits in front of the repository for access-token validation; the
// repository stays authoritative so revocation is never masked by a
// stale cache entry longer than the delete it triggers.
type TokenService struct {
	repo  domain.TokenRepository
	cache cache.TokenStore
}

// NewTokenService creates a new TokenService instance.
func NewTokenService(repo domain.TokenRepository, tokenCache cache.TokenStore) *TokenService {
	return &TokenService{repo: repo, cache: tokenCache}
}

// MintOptions carries everything needed to mint one token.
type MintOptions struct {
	TokenType string
	UserID    string
	ClientID  string
	Scope     string
	// AuthCode links the token to the authorization code it descends
	// from, for reuse-detection sweeps.
	AuthCode string
	// ParentID links an access token to the refresh token that minted it.
	ParentID string
	TTL      time.Duration
}

// Mint generates a fresh opaque value, persists the token and caches it
// if it is an access token. A stored-value collision is retried with a
// new random draw; it never overwrites an existing token.
func (s *TokenService) Mint(ctx context.Context, opts MintOptions) (*domain.Token, error) {
	var lastErr error
	for attempt := 0; attempt < valueCollisionRetries; attempt++ {
		value, err := randutil.OpaqueValue()
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		token := &domain.Token{
			ID:         uuid.NewString(),
			TokenType:  opts.TokenType,
			TokenValue: value,
			ClientID:   opts.ClientID,
			UserID:     opts.UserID,
			Scope:      opts.Scope,
			AuthCode:   opts.AuthCode,
			ParentID:   opts.ParentID,
			ExpiresAt:  now.Add(opts.TTL),
			CreatedAt:  now,
			LastUsedAt: now,
		}

		if err := s.repo.StoreToken(ctx, token); err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("Token value collision, drawing a new value")
			continue
		}

		if token.TokenType == domain.TokenTypeAccess && s.cache != nil {
			if err := s.cache.Set(ctx, toCacheEntry(token)); err != nil {
				log.Warn().Err(err).Msg("Failed to cache access token")
			}
		}

		metrics.IncTokensIssued()
		return token, nil
	}
	return nil, lastErr
}

// ValidateAccessToken returns the token record for a live access token.
// Expired or revoked tokens fail with ErrTokenExpired/ErrTokenRevoked;
// unknown values with ErrTokenNotFound.
func (s *TokenService) ValidateAccessToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	if s.cache != nil {
		if entry, err := s.cache.Get(ctx, tokenValue); err == nil {
			token := fromCacheEntry(entry)
			if err := checkLiveness(token); err != nil {
				return nil, err
			}
			return token, nil
		}
	}

	token, err := s.repo.GetToken(ctx, tokenValue, domain.TokenTypeAccess)
	if err != nil {
		if errors.Is(err, errors.ErrTokenNotFound) {
			return nil, errors.ErrTokenNotFound
		}
		return nil, err
	}
	if err := checkLiveness(token); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, toCacheEntry(token)); err != nil {
			log.Warn().Err(err).Msg("Failed to cache access token")
		}
	}
	return token, nil
}

// GetRefreshToken returns the live refresh token record for a value.
func (s *TokenService) GetRefreshToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	token, err := s.repo.GetToken(ctx, tokenValue, domain.TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, errors.ErrTokenNotFound) {
			return nil, errors.ErrTokenNotFound
		}
		return nil, err
	}
	if err := checkLiveness(token); err != nil {
		return nil, err
	}
	return token, nil
}

// Revoke marks a single token revoked and drops it from the cache.
func (s *TokenService) Revoke(ctx context.Context, tokenValue string) error {
	if err := s.repo.RevokeToken(ctx, tokenValue); err != nil {
		return err
	}
	s.dropFromCache(ctx, tokenValue)
	metrics.IncTokensRevoked()
	return nil
}

// RevokeRefreshToken revokes the refresh token and, per the immediate
// revocation policy, every access token minted from it.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, token *domain.Token) error {
	// Snapshot the live (user, client) tokens first; descendant access
	// tokens must leave the cache too and the sweep only sees live rows.
	var descendants []*domain.Token
	if s.cache != nil {
		var err error
		descendants, err = s.repo.ListTokensByUserAndClient(ctx, token.UserID, token.ClientID)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to list tokens for cache sweep")
		}
	}

	if err := s.repo.RevokeToken(ctx, token.TokenValue); err != nil {
		return err
	}
	if err := s.repo.RevokeTokensByParent(ctx, token.ID); err != nil {
		return err
	}

	for _, t := range descendants {
		if t.ParentID == token.ID {
			s.dropFromCache(ctx, t.TokenValue)
		}
	}
	metrics.IncTokensRevoked()
	return nil
}

// RevokeByAuthCode revokes every token descending from an authorization
// code. Called when code reuse is detected.
func (s *TokenService) RevokeByAuthCode(ctx context.Context, code string) error {
	revoked, err := s.repo.RevokeTokensByAuthCode(ctx, code)
	if err != nil {
		return err
	}
	for _, t := range revoked {
		if t.TokenType == domain.TokenTypeAccess {
			s.dropFromCache(ctx, t.TokenValue)
		}
	}
	metrics.IncCodeReuseDetected()
	return nil
}

func (s *TokenService) dropFromCache(ctx context.Context, tokenValue string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, tokenValue); err != nil {
		log.Warn().Err(err).Msg("Failed to drop token from cache")
	}
}

// checkLiveness enforces the validity window and the revoked flag.
func checkLiveness(token *domain.Token) error {
	if token.IsRevoked {
		return errors.ErrTokenRevoked
	}
	if token.Expired(time.Now()) {
		return errors.ErrTokenExpired
	}
	return nil
}

func toCacheEntry(t *domain.Token) *cache.TokenEntry {
	return &cache.TokenEntry{
		ID:         t.ID,
		TokenType:  t.TokenType,
		TokenValue: t.TokenValue,
		ClientID:   t.ClientID,
		UserID:     t.UserID,
		Scope:      t.Scope,
		ExpiresAt:  t.ExpiresAt,
		CreatedAt:  t.CreatedAt,
		IsRevoked:  t.IsRevoked,
	}
}

func fromCacheEntry(entry *cache.TokenEntry) *domain.Token {
	return &domain.Token{
		ID:         entry.ID,
		TokenType:  entry.TokenType,
		TokenValue: entry.TokenValue,
		ClientID:   entry.ClientID,
		UserID:     entry.UserID,
		Scope:      entry.Scope,
		ExpiresAt:  entry.ExpiresAt,
		CreatedAt:  entry.CreatedAt,
		IsRevoked:  entry.IsRevoked,
	}
}
