package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"notes-ledger/internal/auth"
)

var (
	tokenParticipant string
	tokenTTL         time.Duration
)

// tokenCmd issues a participant token signed with JWT_SECRET
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a participant token",
	Long:  `Issue a bearer token for POST /ratings. The key is read from JWT_SECRET.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := auth.ParsePrivateKey(cfg.Auth.Secret); err != nil {
			return fmt.Errorf("JWT_SECRET must hold a PEM-encoded EC key (see \"notesctl keygen\"): %w", err)
		}

		tokens, err := auth.NewService(&cfg.Auth)
		if err != nil {
			return err
		}

		token, err := tokens.GenerateToken(tokenParticipant, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

// keygenCmd prints a new signing key for JWT_SECRET
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a signing key for JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := auth.GenerateKeyPEM()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd, keygenCmd)
	tokenCmd.Flags().StringVar(&tokenParticipant, "participant", "", "Participant ID (token subject)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default JWT_EXPIRATION)")
	_ = tokenCmd.MarkFlagRequired("participant")
}
