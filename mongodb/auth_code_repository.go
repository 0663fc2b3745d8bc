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

type AuthCodeRepository struct {
	codes *mongo.Collection
}

func NewAuthCodeRepository(db *mongo.Database) *AuthCodeRepository {
	return &AuthCodeRepository{codes: db.Collection(CodesCollection)}
}

var _ domain.AuthCodeRepository = (*AuthCodeRepository)(nil)

func (r *AuthCodeRepository) SaveAuthCode(ctx context.Context, authCode *domain.AuthCode) error {
	if authCode.Code == "" {
		return errors.New("auth code value cannot be empty")
	}

	_, err := r.codes.InsertOne(ctx, authCode)
	if err != nil {
		if isDuplicateKey(err) {
			return errors.ErrAuthCodeExists
		}
		log.Error().Err(err).Msg("Error saving authorization code")
		return fmt.Errorf("failed to save authorization code: %w", err)
	}

	log.Debug().Str("user_id", authCode.UserID).Str("client_id", authCode.ClientID).Msg("Authorization code saved")
	return nil
}

func (r *AuthCodeRepository) GetAuthCode(ctx context.Context, codeValue string) (*domain.AuthCode, error) {
	var authCode domain.AuthCode
	err := r.codes.FindOne(ctx, bson.M{"code": codeValue}).Decode(&authCode)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrAuthCodeNotFound
		}
		log.Error().Err(err).Msg("Error retrieving authorization code")
		return nil, fmt.Errorf("failed to retrieve authorization code: %w", err)
	}
	return &authCode, nil
}

// ConsumeAuthCode flips the used flag with a single findAndModify so that
// under concurrent exchanges exactly one caller receives the code.
func (r *AuthCodeRepository) ConsumeAuthCode(ctx context.Context, codeValue string) (*domain.AuthCode, error) {
	filter := bson.M{"code": codeValue, "used": false}
	update := bson.M{"$set": bson.M{"used": true}}

	var authCode domain.AuthCode
	err := r.codes.FindOneAndUpdate(ctx, filter, update).Decode(&authCode)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Distinguish an unknown code from a consumed one.
			count, countErr := r.codes.CountDocuments(ctx, bson.M{"code": codeValue})
			if countErr == nil && count > 0 {
				return nil, errors.ErrAuthCodeUsed
			}
			return nil, errors.ErrAuthCodeNotFound
		}
		log.Error().Err(err).Msg("Error consuming authorization code")
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	authCode.Used = true
	return &authCode, nil
}

func (r *AuthCodeRepository) DeleteExpiredAuthCodes(ctx context.Context) error {
	_, err := r.codes.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
