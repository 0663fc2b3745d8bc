package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/signet-dev/signet/config"
	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/mongodb"
)

var cfg *config.ServerConfig

var rootCmd = &cobra.Command{
	Use:   "signetctl",
	Short: "signetctl manages the signet authorization server's registry",
	Long:  `A command-line interface for registering OAuth clients and user accounts directly against the signet store.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// stores bundles the repositories the admin commands operate on.
type stores struct {
	clients domain.ClientRepository
	users   domain.UserRepository
}

// openStores connects to the configured backing store. The CLI only
// supports the mongo backend: an in-memory registry would vanish with
// the process and is useless for administration.
func openStores(ctx context.Context) (*stores, func(), error) {
	if cfg.Storage != "mongo" {
		return nil, nil, fmt.Errorf("signetctl requires STORAGE=mongo, got %q", cfg.Storage)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, db, err := mongodb.Connect(connectCtx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, nil, err
	}
	if err := mongodb.EnsureIndexes(connectCtx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}

	cleanup := func() { _ = client.Disconnect(context.Background()) }
	return &stores{
		clients: mongodb.NewClientRepository(db),
		users:   mongodb.NewUserRepository(db),
	}, cleanup, nil
}
