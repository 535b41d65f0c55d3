// cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/meko-christian/mail-autoreply/internal/responder"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Continuously watch the mailbox and auto-reply to the target sender",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !viper.InConfig("filter") || !viper.InConfig("reply") {
			fmt.Fprintln(os.Stderr, `configuration missing or incomplete.

Create a config.yaml file by running:
  mail-autoreply init

The configuration file should be in your current directory and contain:
- The target sender address (whose mails get an automatic reply)
- The reply body text
- Paths to the Gmail OAuth2 client secret and token files`)
			return nil
		}

		slog.Info("Starting serve mode (watching mailbox)")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		creds, err := newCredentialSource(ctx)
		if err != nil {
			return err
		}

		err = responder.Serve(ctx, creds)

		// A config error is reported but exits cleanly: monitoring
		// never started, there is nothing to recover.
		var cfgErr *responder.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\nEdit config.yaml or run `mail-autoreply init`.\n", err)
			return nil
		}

		return err
	},
}
