package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/internal/randutil"
)

var (
	clientName      string
	clientType      string
	clientRedirects []string
	clientScopes    []string
	clientGrants    []string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage OAuth clients",
}

var clientAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new OAuth client",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, cleanup, err := openStores(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		secret, err := randutil.OpaqueValue()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		client := &domain.Client{
			ID:                uuid.NewString(),
			Secret:            secret,
			Type:              domain.ClientType(clientType),
			Name:              clientName,
			RedirectURIs:      clientRedirects,
			AllowedScopes:     clientScopes,
			AllowedGrantTypes: clientGrants,
			CreatedAt:         now,
			UpdatedAt:         now,
			IsActive:          true,
		}
		if err := st.clients.CreateClient(cmd.Context(), client); err != nil {
			return err
		}

		// The secret is shown exactly once, at registration.
		fmt.Printf("client_id:     %s\n", client.ID)
		fmt.Printf("client_secret: %s\n", secret)
		return nil
	},
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered OAuth clients",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, cleanup, err := openStores(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		clients, err := st.clients.ListClients(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range clients {
			c.Secret = ""
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(clients)
	},
}

func init() {
	clientAddCmd.Flags().StringVar(&clientName, "name", "", "human-readable client name")
	clientAddCmd.Flags().StringVar(&clientType, "type", string(domain.ClientTypeConfidential), "client type: confidential or public")
	clientAddCmd.Flags().StringSliceVar(&clientRedirects, "redirect-uri", nil, "allowed redirect URI (repeatable)")
	clientAddCmd.Flags().StringSliceVar(&clientScopes, "scope", nil, "allowed scope (repeatable)")
	clientAddCmd.Flags().StringSliceVar(&clientGrants, "grant-type", []string{"authorization_code", "refresh_token"}, "allowed grant type (repeatable)")
	_ = clientAddCmd.MarkFlagRequired("name")
	_ = clientAddCmd.MarkFlagRequired("redirect-uri")

	clientCmd.AddCommand(clientAddCmd, clientListCmd)
	rootCmd.AddCommand(clientCmd)
}
