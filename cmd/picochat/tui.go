package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/sipeed/picochat/pkg/chat"
	"github.com/sipeed/picochat/pkg/logger"
	"github.com/sipeed/picochat/pkg/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Chat in a full-screen terminal UI",
	Long: `Open a full-screen terminal chat.

Keys:
  enter       send
  alt+enter   newline
  ctrl+y      copy last reply
  ctrl+n      new chat
  ctrl+c      quit

Commands: /clear, /copy, /export FILE, /help, /quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// log lines would tear the alt screen
	if cfg.Log.File == "" {
		level := logger.ParseLevel(cfg.Log.Level)
		if debug {
			level = logger.DEBUG
		}
		logger.SetOutput(io.Discard, level)
	}

	sender, err := newSender(cfg)
	if err != nil {
		return err
	}

	ctx, stop := notifyContext()
	defer stop()

	return tui.Run(ctx, sender, tui.Options{
		Title:          cfg.WebChat.Title,
		Subtitle:       cfg.WebChat.Subtitle,
		Labels:         chat.Labels{User: cfg.TUI.UserLabel, Bot: cfg.TUI.BotLabel},
		FailureMessage: cfg.FailureMessage(),
	})
}
