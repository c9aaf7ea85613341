package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sipeed/picochat/pkg/chat"
	"github.com/sipeed/picochat/pkg/format"
)

var (
	askSession string
	askRaw     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [text...]",
	Short: "Send one message and print the reply",
	Long: `Send one message to the webhook and print the formatted reply.

The message is read from stdin when no text is given.

Examples:
  picochat ask "how do I reset my password?"
  echo "hello" | picochat ask
  picochat ask --raw "show the markup"`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Session id to continue (default: new session)")
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "Print the reply without formatting")
}

func runAsk(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if text == "" && !term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sender, err := newSender(cfg)
	if err != nil {
		return err
	}

	ctx, stop := notifyContext()
	defer stop()

	opts := []chat.Option{chat.WithFailureMessage(cfg.FailureMessage())}
	if askSession != "" {
		opts = append(opts, chat.WithID(askSession))
	}
	session := chat.NewSession(sender, opts...)

	reply, err := session.Send(ctx, text)
	if errors.Is(err, chat.ErrEmptyInput) {
		return errors.New("nothing to send: pass text or pipe it on stdin")
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderReply(reply, out))
	if reply.Failed {
		return errors.New("webhook request failed")
	}
	return nil
}

// renderReply styles the reply for a terminal and strips markup otherwise.
func renderReply(reply chat.Message, out io.Writer) string {
	if askRaw {
		return reply.Text
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		width, _, err := term.GetSize(int(f.Fd()))
		if err != nil {
			width = 0
		}
		return format.DefaultTheme().Render(reply.Doc, width)
	}
	return format.PlainText(reply.Doc)
}
