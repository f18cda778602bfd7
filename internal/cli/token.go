package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"codequest/internal/security"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Sign a bearer token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		admin, _ := cmd.Flags().GetBool("admin")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		verifier, err := security.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			return err
		}
		token, err := verifier.Sign(args[0], admin, ttl)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Bool("admin", false, "Grant admin access")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}
