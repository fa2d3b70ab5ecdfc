// Command autoresponder answers the first WhatsApp message of every sender
// with a generated reply. Run "autoresponder supervise" in production: it
// keeps "autoresponder bot" alive across crashes.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"whatsapp-autoresponder/internal/config"
	"whatsapp-autoresponder/internal/logger"
)

// Version is set at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "autoresponder",
	Short:         "WhatsApp auto-responder backed by Gemini",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine, the environment may already be set.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.AddCommand(botCmd, webhookCmd, superviseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration for commands that call Gemini and
// explains what to do when the key is missing.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if errors.Is(err, config.ErrMissingAPIKey) {
		fmt.Fprintln(os.Stderr, "💡 Please create a .env file and add your Google API key (GOOGLE_API_KEY)")
	}
	return cfg, err
}

func newLogger(cfg *config.Config, role string) zerolog.Logger {
	return logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel, role)
}
