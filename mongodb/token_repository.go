package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/errors"
)

type TokenRepository struct {
	tokens *mongo.Collection
}

func NewTokenRepository(db *mongo.Database) *TokenRepository {
	return &TokenRepository{tokens: db.Collection(TokensCollection)}
}

var _ domain.TokenRepository = (*TokenRepository)(nil)

func (r *TokenRepository) StoreToken(ctx context.Context, token *domain.Token) error {
	_, err := r.tokens.InsertOne(ctx, token)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("token value already exists: %w", err)
		}
		log.Error().Err(err).Str("token_id", token.ID).Msg("Error storing token")
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetToken(ctx context.Context, tokenValue, tokenType string) (*domain.Token, error) {
	var token domain.Token
	filter := bson.M{"token_value": tokenValue, "token_type": tokenType}
	if err := r.tokens.FindOne(ctx, filter).Decode(&token); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrTokenNotFound
		}
		log.Error().Err(err).Msg("Error retrieving token")
		return nil, fmt.Errorf("failed to retrieve token: %w", err)
	}
	return &token, nil
}

func (r *TokenRepository) RevokeToken(ctx context.Context, tokenValue string) error {
	filter := bson.M{"token_value": tokenValue}
	update := bson.M{"$set": bson.M{"is_revoked": true, "last_used_at": time.Now().UTC()}}
	result, err := r.tokens.UpdateOne(ctx, filter, update)
	if err != nil {
		log.Error().Err(err).Msg("Error revoking token")
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrTokenNotFound
	}
	return nil
}

// RevokeTokensByAuthCode revokes every token minted from the given
// authorization code and returns the affected records so callers can
// evict their cache entries.
func (r *TokenRepository) RevokeTokensByAuthCode(ctx context.Context, code string) ([]*domain.Token, error) {
	filter := bson.M{"auth_code": code, "is_revoked": false}

	cursor, err := r.tokens.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find tokens for code: %w", err)
	}
	var revoked []*domain.Token
	if err := cursor.All(ctx, &revoked); err != nil {
		return nil, fmt.Errorf("failed to decode tokens for code: %w", err)
	}
	if len(revoked) == 0 {
		return nil, nil
	}

	update := bson.M{"$set": bson.M{"is_revoked": true}}
	if _, err := r.tokens.UpdateMany(ctx, filter, update); err != nil {
		return nil, fmt.Errorf("failed to revoke tokens for code: %w", err)
	}

	for _, t := range revoked {
		t.IsRevoked = true
	}
	log.Warn().Int("count", len(revoked)).Msg("Revoked token family for replayed authorization code")
	return revoked, nil
}

func (r *TokenRepository) RevokeTokensByParent(ctx context.Context, parentID string) error {
	filter := bson.M{"parent_id": parentID, "is_revoked": false}
	update := bson.M{"$set": bson.M{"is_revoked": true}}
	if _, err := r.tokens.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to revoke child tokens: %w", err)
	}
	return nil
}

// ListTokensByUserAndClient returns the live tokens of one user/client
// pair.
func (r *TokenRepository) ListTokensByUserAndClient(ctx context.Context, userID, clientID string) ([]*domain.Token, error) {
	filter := bson.M{
		"user_id":    userID,
		"client_id":  clientID,
		"is_revoked": false,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}
	cursor, err := r.tokens.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	var tokens []*domain.Token
	if err := cursor.All(ctx, &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode tokens: %w", err)
	}
	return tokens, nil
}

func (r *TokenRepository) DeleteExpiredTokens(ctx context.Context) error {
	_, err := r.tokens.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
