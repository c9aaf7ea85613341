// Package webhook posts chat input to a remote webhook and decodes its reply.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/sipeed/picochat/pkg/config"
	"github.com/sipeed/picochat/pkg/logger"
)

var ErrNoURL = errors.New("webhook: no url configured")

// StatusError is returned when the webhook answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook: HTTP error, status %d", e.StatusCode)
}

type Client struct {
	http       *resty.Client
	url        string
	inputField string
	replyField string
	authHeader string
	authToken  string
}

func NewClient(cfg config.WebhookConfig) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrNoURL
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		http:       resty.New().SetTimeout(timeout),
		url:        cfg.URL,
		inputField: cfg.InputField,
		replyField: cfg.ReplyField,
		authHeader: cfg.AuthHeader,
		authToken:  cfg.AuthToken,
	}
	if c.inputField == "" {
		c.inputField = "chatInput"
	}
	if c.replyField == "" {
		c.replyField = "output"
	}
	if c.authHeader == "" {
		c.authHeader = "auth"
	}
	return c, nil
}

// Send posts text for the given session and returns the normalized reply.
func (c *Client) Send(ctx context.Context, text, sessionID string) (string, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			c.inputField: text,
			"sessionId":  sessionID,
		})
	if c.authToken != "" {
		req.SetHeader(c.authHeader, c.authToken)
	}

	start := time.Now()
	resp, err := req.Post(c.url)
	if err != nil {
		return "", fmt.Errorf("webhook: post: %w", err)
	}

	logger.DebugCF("webhook", "Reply received", map[string]interface{}{
		"status":      resp.StatusCode(),
		"bytes":       len(resp.Body()),
		"duration_ms": time.Since(start).Milliseconds(),
		"session":     sessionID,
	})

	if !resp.IsSuccess() {
		return "", &StatusError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 500)}
	}

	return DecodeReply(resp.Body(), c.replyField), nil
}

// DecodeReply extracts the reply text from a webhook response body. A JSON
// object carrying a string field named field wins; any other body is used
// as raw text.
func DecodeReply(body []byte, field string) string {
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		if parsed.IsObject() {
			if v := parsed.Get(gjson.Escape(field)); v.Type == gjson.String {
				return Normalize(v.Str)
			}
		}
	}
	return Normalize(string(body))
}

// Normalize turns literal "\n" escape sequences into newlines and trims
// surrounding whitespace.
func Normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `\n`, "\n"))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
