// PicoChat - chat client for a webhook-backed bot
// Serves a web chat UI, a terminal chat and one-shot questions, all relaying
// to the same webhook and rendering replies with the inline formatter.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sipeed/picochat/pkg/config"
	"github.com/sipeed/picochat/pkg/logger"
	"github.com/sipeed/picochat/pkg/webhook"
)

var version = "dev"

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "picochat",
	Short: "Chat with a webhook-backed bot from the browser or the terminal",
	Long: `picochat relays chat messages to a webhook and renders the replies.

Examples:
  picochat serve --port 8080          # web chat UI
  picochat tui                        # full-screen terminal chat
  picochat ask "what are your opening hours?"
  picochat config init                # write a default config`,
	SilenceUsage:      true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.json, .toml or .yaml; default ~/.picochat/config.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// loadConfig reads the config file and applies its log settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := logger.ParseLevel(cfg.Log.Level)
	if debug {
		level = logger.DEBUG
	}
	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File, level); err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
	} else {
		logger.SetLevel(level)
	}
	return cfg, nil
}

func newSender(cfg *config.Config) (*webhook.Client, error) {
	client, err := webhook.NewClient(cfg.Webhook)
	if errors.Is(err, webhook.ErrNoURL) {
		return nil, fmt.Errorf("%w: set webhook.url in %s or PICOCHAT_WEBHOOK_URL", err, resolveConfigPath())
	}
	return client, err
}

// notifyContext is cancelled on SIGINT or SIGTERM.
func notifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
