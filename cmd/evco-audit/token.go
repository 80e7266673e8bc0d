package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xela07ax/evco-audit/internal/domain"
	"github.com/xela07ax/evco-audit/internal/infra/auth"
)

var (
	tokenSubject string
	tokenRoles   []string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an RS256 bearer token for local testing.",
	Long: `Signs a token with auth.private_key_path (or AUTH_PRIVATE_KEY_DATA) in the
same shape the platform's auth service issues, e.g.

  evco-audit token --subject staff-42 --role STAFF`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := auth.ParseRSAPrivateKey(appConfig.Auth.PrivateKey)
		if err != nil {
			return err
		}

		roles := make([]domain.Role, 0, len(tokenRoles))
		for _, r := range tokenRoles {
			roles = append(roles, domain.ParseRole(r))
		}

		ttl := tokenTTL
		if ttl <= 0 {
			ttl = appConfig.Auth.TokenTTL
		}

		token, err := auth.NewTokenIssuer(key, appConfig.Auth.Issuer).Mint(tokenSubject, roles, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject (user id)")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", []string{string(domain.RoleStaff)}, "Role(s) to grant")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default auth.token_ttl)")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}
