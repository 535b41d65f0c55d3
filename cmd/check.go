package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/meko-christian/mail-autoreply/internal/responder"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the mailbox once and reply to waiting mails",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		creds, err := newCredentialSource(ctx)
		if err != nil {
			fmt.Printf("Check failed: %v\n", err)
			return
		}

		if err := responder.CheckAndReply(ctx, creds); err != nil {
			fmt.Printf("Check failed: %v\n", err)
		}
	},
}
