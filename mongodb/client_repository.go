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

type ClientRepository struct {
	clients *mongo.Collection
}

func NewClientRepository(db *mongo.Database) *ClientRepository {
	return &ClientRepository{clients: db.Collection(ClientsCollection)}
}

var _ domain.ClientRepository = (*ClientRepository)(nil)

func (r *ClientRepository) CreateClient(ctx context.Context, client *domain.Client) error {
	_, err := r.clients.InsertOne(ctx, client)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("client %s already exists: %w", client.ID, err)
		}
		log.Error().Err(err).Str("client_id", client.ID).Msg("Error creating client")
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (r *ClientRepository) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	var client domain.Client
	if err := r.clients.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&client); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrClientNotFound
		}
		log.Error().Err(err).Str("client_id", clientID).Msg("Error retrieving client")
		return nil, fmt.Errorf("failed to retrieve client: %w", err)
	}
	return &client, nil
}

func (r *ClientRepository) UpdateClient(ctx context.Context, client *domain.Client) error {
	client.UpdatedAt = time.Now().UTC()
	result, err := r.clients.ReplaceOne(ctx, bson.M{"client_id": client.ID}, client)
	if err != nil {
		log.Error().Err(err).Str("client_id", client.ID).Msg("Error updating client")
		return fmt.Errorf("failed to update client: %w", err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrClientNotFound
	}
	return nil
}

func (r *ClientRepository) DeleteClient(ctx context.Context, clientID string) error {
	result, err := r.clients.DeleteOne(ctx, bson.M{"client_id": clientID})
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if result.DeletedCount == 0 {
		return errors.ErrClientNotFound
	}
	return nil
}

func (r *ClientRepository) ListClients(ctx context.Context) ([]*domain.Client, error) {
	cursor, err := r.clients.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	var clients []*domain.Client
	if err := cursor.All(ctx, &clients); err != nil {
		return nil, fmt.Errorf("failed to decode clients: %w", err)
	}
	return clients, nil
}
