package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Connect establishes the MongoDB connection, verifies it with a ping
// against the primary and returns the database handle.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping mongodb primary: %w", err)
	}

	log.Info().Str("db", dbName).Msg("MongoDB connection established")
	return client, client.Database(dbName), nil
}

// EnsureIndexes creates the indexes the repositories rely on. Token and
// code values plus usernames are unique; the (provider, provider user)
// pair identifies one federated identity; the (user, client) pair backs
// revocation sweeps.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	type spec struct {
		collection string
		model      mongo.IndexModel
	}
	specs := []spec{
		{CodesCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{CodesCollection, mongo.IndexModel{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
		}},
		{TokensCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "token_value", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{TokensCollection, mongo.IndexModel{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "client_id", Value: 1}},
		}},
		{TokensCollection, mongo.IndexModel{
			Keys: bson.D{{Key: "auth_code", Value: 1}},
		}},
		{TokensCollection, mongo.IndexModel{
			Keys: bson.D{{Key: "parent_id", Value: 1}},
		}},
		{ClientsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "client_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{UsersCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{IdentitiesCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "provider_name", Value: 1}, {Key: "provider_user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}

	for _, s := range specs {
		if _, err := db.Collection(s.collection).Indexes().CreateOne(ctx, s.model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", s.collection, err)
		}
	}
	return nil
}

// isDuplicateKey reports whether err is a mongo unique-index violation.
func isDuplicateKey(err error) bool {
	var writeException mongo.WriteException
	if errors.As(err, &writeException) {
		for _, writeError := range writeException.WriteErrors {
			if writeError.Code == 11000 || writeError.Code == 11001 {
				return true
			}
		}
	}
	return false
}
