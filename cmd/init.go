package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively generate a config.yaml file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := "config.yaml"

		if _, err := os.Stat(configFile); err == nil {
			fmt.Printf("config.yaml already exists. Use --force to overwrite.\n")
			return nil
		}

		reader := bufio.NewReader(os.Stdin)

		fmt.Println("Let's set up your config.yaml!")

		fmt.Println("\n--- FILTER ---")
		target := prompt(reader, "Sender address to auto-reply to (e.g. boss@example.com): ")

		fmt.Println("\n--- REPLY ---")
		body := prompt(reader, "Reply text (e.g. Got it, will do!): ")

		fmt.Println("\n--- GMAIL ---")
		credentialsFile := promptDefault(reader, "OAuth2 client secret file", "credentials.json")
		tokenFile := promptDefault(reader, "Token file", "token.json")

		fmt.Println("\n--- IMAP ---")
		imapServer := promptDefault(reader, "IMAP server", "imap.gmail.com")
		imapPort := promptDefault(reader, "IMAP port", "993")

		content := fmt.Sprintf(`filter:
  from: %s

reply:
  body: %s

gmail:
  credentials_file: %s
  token_file: %s

imap:
  server: %s
  port: %s
`, strings.ToLower(target), body, credentialsFile, tokenFile, imapServer, imapPort)

		if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write config.yaml: %w", err)
		}

		fmt.Println("\n✅ config.yaml created successfully.")
		fmt.Println("Next, run `mail-autoreply login` to authorize Gmail access.")
		return nil
	},
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	text, _ := r.ReadString('\n')
	return strings.TrimSpace(text)
}

func promptDefault(r *bufio.Reader, label, fallback string) string {
	value := prompt(r, fmt.Sprintf("%s [%s]: ", label, fallback))
	if value == "" {
		return fallback
	}
	return value
}
