package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitcore/internal/auth"
	"github.com/mmynk/splitcore/internal/models"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a development bearer token",
		Long: `Sign a token for a persisted participant with the configured secret.
Production tokens are issued by the identity service; this is for local
development and scripted tests.`,
		Args: cobra.ExactArgs(1),
		RunE: runToken,
	}

	cmd.Flags().String("name", "", "display name carried in the token")

	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireSecret(); err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")

	jwtManager := auth.NewJWTManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	token, err := jwtManager.Generate(models.Persisted(args[0]), name)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
