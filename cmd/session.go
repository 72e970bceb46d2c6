package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/speakquest/internal/api"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Administer conversation sessions",
}

var sessionAbandonCmd = &cobra.Command{
	Use:   "abandon <session-id>",
	Short: "Mark an active conversation session as abandoned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		svc, err := buildServices(cmd.Context(), cfg, false, adminLogger())
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.conversation.Abandon(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("abandon session %s: %w", args[0], err)
		}
		fmt.Printf("Session %s abandoned.\n", args[0])
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <student-id>",
	Short: "Mint a bearer token for a student (development)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(cfg.Auth.JWTSecret) < 16 {
			return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
		}
		ttl := cfg.Auth.TokenTTL
		if d, _ := cmd.Flags().GetDuration("ttl"); d > 0 {
			ttl = d
		}

		tok, err := api.IssueToken([]byte(cfg.Auth.JWTSecret), args[0], ttl, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (overrides auth.token_ttl)")

	sessionCmd.AddCommand(sessionAbandonCmd)
}
