// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taibuivan/inkshelf/internal/platform/constants"
	"github.com/taibuivan/inkshelf/internal/platform/sec"
)

// maxTokenTTL keeps operator tokens short-lived.
const maxTokenTTL = 24 * time.Hour

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
		keyPath string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a short-lived bearer token for ingestion scripts",
		Long: "Signs a token with the identity service private key so batch import\n" +
			"scripts can call the admin endpoints. Requires JWT_PRIVATE_KEY_PATH or --key.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 || ttl > maxTokenTTL {
				return fmt.Errorf("token: --ttl must be within (0, %s]", maxTokenTTL)
			}
			if keyPath == "" {
				cfg, err := ctx.loadConfig()
				if err != nil {
					return err
				}
				keyPath = cfg.JWTPrivKeyPath
			}
			if keyPath == "" {
				return errors.New("token: no private key configured")
			}

			signer, err := sec.LoadSigner(keyPath, constants.AuthIssuer)
			if err != nil {
				return err
			}

			token, err := signer.Issue(subject, sec.UserRole(role), ttl)
			if err != nil {
				return err
			}

			ctx.log().Info("token_issued",
				"subject", subject,
				"role", role,
				"expires_in", ttl.String(),
			)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "inkctl", "Subject recorded as actor_id in audit logs")
	cmd.Flags().StringVar(&role, "role", string(sec.RoleAdmin), "Role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "Token lifetime")
	cmd.Flags().StringVar(&keyPath, "key", "", "PEM private key (defaults to JWT_PRIVATE_KEY_PATH)")

	return cmd
}
