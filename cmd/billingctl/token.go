package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		email string
		admin bool
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			v, err := auth.NewVerifier(cfg.JWTSecret)
			if err != nil {
				return err
			}
			role := auth.RoleUser
			if admin {
				role = auth.RoleAdmin
			}
			tok, err := v.GenerateAccessToken(args[0], email, role, ttl)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
