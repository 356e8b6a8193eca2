package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/auth"
)

var userAddPassword string

// userAddCmd creates a user account directly in the store.
var userAddCmd = &cobra.Command{
	Use:   "useradd <email>",
	Short: "Create a user account",
	Long: `Create a user account in the configured store.

The password is read from the --password flag or, if omitted, prompted
for on the terminal.

Examples:
  # Prompt for the password
  annotctl useradd alice@example.com

  # Non-interactive (e.g. provisioning scripts)
  annotctl useradd --password s3cretpass alice@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

func init() {
	userAddCmd.Flags().StringVar(&userAddPassword, "password", "", "password for the new account (prompted if empty)")
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	email := args[0]

	password := userAddPassword
	if password == "" {
		fmt.Print("Password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}

	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := auth.NewService(&auth.Config{
		BcryptCost: cfg.Auth.BcryptCost,
		TokenTTL:   cfg.Auth.TokenTTL.Duration(),
	}, st, zap.NewNop())
	if err != nil {
		return err
	}

	u, err := svc.Signup(cmd.Context(), email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Created user %s (%s)\n", u.Email, u.ID)
	return nil
}
