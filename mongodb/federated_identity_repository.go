package mongodb

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/errors"
)

type FederatedIdentityRepository struct {
	identities *mongo.Collection
}

func NewFederatedIdentityRepository(db *mongo.Database) *FederatedIdentityRepository {
	return &FederatedIdentityRepository{identities: db.Collection(IdentitiesCollection)}
}

var _ domain.FederatedIdentityRepository = (*FederatedIdentityRepository)(nil)

func (r *FederatedIdentityRepository) CreateIdentity(ctx context.Context, identity *domain.FederatedIdentity) error {
	_, err := r.identities.InsertOne(ctx, identity)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("identity %s/%s already linked: %w", identity.ProviderName, identity.ProviderUserID, err)
		}
		log.Error().Err(err).Str("provider", identity.ProviderName).Msg("Error creating federated identity")
		return fmt.Errorf("failed to create federated identity: %w", err)
	}
	return nil
}

func (r *FederatedIdentityRepository) GetIdentity(ctx context.Context, providerName, providerUserID string) (*domain.FederatedIdentity, error) {
	var identity domain.FederatedIdentity
	filter := bson.M{"provider_name": providerName, "provider_user_id": providerUserID}
	if err := r.identities.FindOne(ctx, filter).Decode(&identity); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrUserNotFound
		}
		log.Error().Err(err).Str("provider", providerName).Msg("Error retrieving federated identity")
		return nil, fmt.Errorf("failed to retrieve federated identity: %w", err)
	}
	return &identity, nil
}
