package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexuschat/nexus-relay/internal/auth"
	"github.com/nexuschat/nexus-relay/internal/config"
	"github.com/nexuschat/nexus-relay/internal/log"
)

func newTokenCmd() *cobra.Command {
	var (
		identity string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT for the given identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if identity == "" {
				return fmt.Errorf("--identity is required")
			}

			bootstrap := log.New("warn", "console")
			cfg, _, err := config.Load(bootstrap, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			token, err := auth.GenerateToken(&auth.Config{
				Secret:   []byte(cfg.JWTSecret),
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
				TTL:      ttl,
			}, identity)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "identity (subject) to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
