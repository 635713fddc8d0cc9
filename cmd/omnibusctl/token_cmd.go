package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/auth/tokens"
	platformclock "github.com/omnibus-tickets/omnibus-api/internal/platform/clock"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/config"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint and inspect access tokens with the configured TOKEN_SECRET",
	}

	cmd.AddCommand(newTokenMintCmd())
	cmd.AddCommand(newTokenInspectCmd())

	return cmd
}

func newTokenMintCmd() *cobra.Command {
	var (
		subject string
		email   string
		role    string
		roles   []string
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Issue a token for a subject acting under one role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(subject) == "" {
				return fmt.Errorf("--subject is required")
			}
			active, ok := domain.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			held := domain.RolesFromStrings(roles)
			if len(roles) == 0 {
				held = domain.Roles{active}
			}

			svc, err := tokenService()
			if err != nil {
				return err
			}
			cred, err := svc.Issue(tokens.Identity{ID: domain.UserID(subject), Email: email, Roles: held}, active)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"token":     cred.Token,
				"tokenType": "Bearer",
				"role":      string(cred.Role),
				"expiresAt": cred.ExpiresAt,
			})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "User id placed in the sub claim")
	cmd.Flags().StringVar(&email, "email", "", "Optional email claim")
	cmd.Flags().StringVar(&role, "role", string(domain.RolePassenger), "Active role (PASSENGER|COMPANY|ADMIN)")
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "Roles the subject holds (defaults to --role)")

	return cmd
}

func newTokenInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token>",
		Short: "Validate a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := tokenService()
			if err != nil {
				return err
			}
			claims, err := svc.Verify(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"sub":  string(claims.Subject),
				"role": string(claims.Role),
				"iss":  claims.Issuer,
				"iat":  claims.IssuedAt,
				"exp":  claims.ExpiresAt,
			})
		},
	}
}

func tokenService() (*tokens.Service, error) {
	cfg, err := config.LoadTokenConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("token config: %w", err)
	}
	return tokens.NewService(cfg, platformclock.NewSystemClock()), nil
}
