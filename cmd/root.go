package cmd

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/meko-christian/mail-autoreply/internal/auth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "mail-autoreply",
	Short: "Auto-reply to mails from a configured sender",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Setup logger after flag parsing
		setupLogger()
	},
}

func init() {
	// Add persistent flag to enable verbose logging
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose (info/debug) logging")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	cobra.OnInitialize(initConfig)

	// Register subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(initCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("No config.yaml found in current directory.",
				"hint", "Run `mail-autoreply init` to create one interactively.")
		} else {
			slog.Error("Failed to read config", "error", err)
		}
	} else {
		// Validate config after successful load
		validateConfig()
	}
}

func validateConfig() {
	// Validate the target sender address
	target := viper.GetString("filter.from")
	if target == "" {
		slog.Warn("No filter.from address configured - no mails will be answered")
	} else if target != strings.ToLower(target) {
		slog.Warn("Target sender address contains uppercase letters",
			"configured_address", target,
			"hint", "Address matching is case-insensitive, consider using lowercase for consistency")
	}

	if viper.GetString("reply.body") == "" {
		slog.Warn("No reply.body configured - replies will not be sent")
	}
}

func setupLogger() {
	var level slog.Level
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	} else {
		level = slog.LevelError
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}

// newCredentialSource builds the OAuth2 credential source from the
// configured file paths and scopes. Runs the interactive consent flow
// when no saved token exists yet.
func newCredentialSource(ctx context.Context) (*auth.Source, error) {
	credentialsFile := viper.GetString("gmail.credentials_file")
	if credentialsFile == "" {
		credentialsFile = "credentials.json"
	}

	tokenFile := viper.GetString("gmail.token_file")
	if tokenFile == "" {
		tokenFile = "token.json"
	}

	scopes := viper.GetStringSlice("gmail.scopes")
	if len(scopes) == 0 {
		scopes = []string{
			"https://mail.google.com/",
			"https://www.googleapis.com/auth/gmail.send",
			"https://www.googleapis.com/auth/gmail.readonly",
		}
	}

	return auth.NewSource(ctx, credentialsFile, tokenFile, scopes)
}
