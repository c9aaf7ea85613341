package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sipeed/picochat/pkg/channels"
	"github.com/sipeed/picochat/pkg/logger"
)

var (
	serveHost string
	servePort int
	serveQR   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web chat UI",
	Long: `Serve the single-page chat UI and relay its messages to the webhook.

Endpoints:
  GET  /
  GET  /healthz
  POST /chat/send
  GET  /chat/poll
  POST /chat/reset
  GET  /chat/export
  GET  /chat/ws`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (overrides webchat.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (overrides webchat.port)")
	serveCmd.Flags().BoolVar(&serveQR, "qr", false, "Print a QR code of the chat URL")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.WebChat.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		if servePort < 0 || servePort > 65535 {
			return fmt.Errorf("invalid --port %d (must be 0-65535)", servePort)
		}
		cfg.WebChat.Port = servePort
	}

	sender, err := newSender(cfg)
	if err != nil {
		return err
	}

	ctx, stop := notifyContext()
	defer stop()

	webchat := channels.NewWebChatChannel(cfg, sender)
	if err := webchat.Start(ctx); err != nil {
		return err
	}

	url := chatURL(webchat.Addr())
	fmt.Fprintf(cmd.OutOrStdout(), "%s listening on %s\n", cfg.WebChat.Title, url)
	if serveQR {
		printQR(cmd.OutOrStdout(), url)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return <-webchat.Done()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return webchat.Stop(shutdownCtx)
	})

	err = g.Wait()
	logger.InfoC("serve", "Shutdown complete")
	return err
}

// chatURL turns a bound address into a browsable URL. Wildcard hosts are
// replaced with the first non-loopback address so the QR code is usable
// from another device.
func chatURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/"
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = outboundHost()
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func outboundHost() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}

func printQR(w io.Writer, url string) {
	qrterminal.GenerateHalfBlock(url, qrterminal.L, w)
}
