package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/sow-service/internal/api/dto"
	"github.com/spec-kit/sow-service/internal/auth"
	"github.com/spec-kit/sow-service/internal/domain"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for a user",
	Long:  "Signs a bearer token for local testing. The user must exist and be active for the API to accept it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		userID, _ := cmd.Flags().GetString("user-id")
		role, _ := cmd.Flags().GetString("role")
		if strings.TrimSpace(userID) == "" {
			return errors.New("--user-id is required")
		}

		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
		token, expiresAt, err := tokens.GenerateToken(userID, domain.Role(strings.ToUpper(role)))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(dto.TokenResponse{AccessToken: token, ExpiresAt: expiresAt})
	},
}

func init() {
	tokenCmd.Flags().String("user-id", "", "user id placed in the token subject")
	tokenCmd.Flags().String("role", string(domain.RoleLandlord), "role claim")
	rootCmd.AddCommand(tokenCmd)
}
