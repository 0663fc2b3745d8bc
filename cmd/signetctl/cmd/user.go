package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/internal/auth"
)

var (
	userUsername  string
	userPassword  string
	userFirstName string
	userLastName  string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user account with password credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, cleanup, err := openStores(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		hasher := auth.NewBcryptPasswordHasher(bcrypt.DefaultCost)
		hash, err := hasher.Hash(userPassword)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		now := time.Now().UTC()
		user := &domain.User{
			ID:           uuid.NewString(),
			Username:     userUsername,
			PasswordHash: hash,
			Status:       domain.UserStatusActive,
			FirstName:    userFirstName,
			LastName:     userLastName,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := st.users.CreateUser(cmd.Context(), user); err != nil {
			return err
		}

		fmt.Printf("user_id:  %s\n", user.ID)
		fmt.Printf("username: %s\n", user.Username)
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userUsername, "username", "", "login username")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "initial password")
	userAddCmd.Flags().StringVar(&userFirstName, "first-name", "", "given name")
	userAddCmd.Flags().StringVar(&userLastName, "last-name", "", "family name")
	_ = userAddCmd.MarkFlagRequired("username")
	_ = userAddCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}
