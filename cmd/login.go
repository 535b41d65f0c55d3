package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Run the interactive Gmail authorization flow",
	Long: `Runs the OAuth2 consent flow in the browser and saves the resulting
token to the configured token file. Use this once before the first
serve run, or whenever the saved token has been revoked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		creds, err := newCredentialSource(ctx)
		if err != nil {
			return err
		}

		// Force a fresh consent even when a token is already saved.
		if _, err := creds.Authorize(ctx); err != nil {
			return err
		}

		fmt.Println("Authorization complete.")
		return nil
	},
}
