// PicoChat - AWS Lambda serverless handler
// Serves the web chat UI and its JSON endpoints behind API Gateway. The
// websocket endpoint is not reachable this way; the page falls back to
// /chat/send on its own.
//
// Environment variables:
//   PICOCHAT_CONFIG_JSON   - Full config JSON (alternative to config file)
//   PICOCHAT_CONFIG_PATH   - Config file path (default: config.json)
//   PICOCHAT_WEBHOOK_URL   - Webhook URL (overrides config)

package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/sipeed/picochat/pkg/channels"
	"github.com/sipeed/picochat/pkg/config"
	"github.com/sipeed/picochat/pkg/logger"
	"github.com/sipeed/picochat/pkg/webhook"
)

var (
	handlerHTTP http.Handler
	initOnce    sync.Once
	initErr     error
)

func initialize() error {
	initOnce.Do(func() {
		initErr = doInit()
	})
	return initErr
}

func doInit() error {
	configPath := os.Getenv("PICOCHAT_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	client, err := webhook.NewClient(cfg.Webhook)
	if err != nil {
		return fmt.Errorf("creating webhook client: %w", err)
	}

	// Sessions live as long as the warm container.
	handlerHTTP = channels.NewWebChatChannel(cfg, client).Handler()

	logger.InfoCF("lambda", "Lambda initialized", map[string]interface{}{"title": cfg.WebChat.Title})
	return nil
}

// responseBuffer collects what the chat handler writes for one invocation.
type responseBuffer struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{header: make(http.Header)}
}

func (r *responseBuffer) Header() http.Header {
	return r.header
}

func (r *responseBuffer) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(b)
}

func (r *responseBuffer) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func toHTTPRequest(ctx context.Context, request events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return nil, fmt.Errorf("decoding body: %w", err)
		}
		body = decoded
	}

	query := url.Values{}
	for k, vs := range request.MultiValueQueryStringParameters {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	for k, v := range request.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}

	path := request.Path
	if path == "" {
		path = "/"
	}
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, request.HTTPMethod, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range request.Headers {
		req.Header.Set(k, v)
	}
	for k, vs := range request.MultiValueHeaders {
		req.Header[http.CanonicalHeaderKey(k)] = vs
	}
	return req, nil
}

func fromResponseBuffer(rec *responseBuffer) events.APIGatewayProxyResponse {
	resp := events.APIGatewayProxyResponse{
		StatusCode:        rec.status,
		Headers:           make(map[string]string, len(rec.header)),
		MultiValueHeaders: make(map[string][]string, len(rec.header)),
		Body:              rec.body.String(),
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	for k, vs := range rec.header {
		resp.Headers[k] = strings.Join(vs, ", ")
		resp.MultiValueHeaders[k] = vs
	}
	return resp
}

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if err := initialize(); err != nil {
		logger.ErrorCF("lambda", "Init error", map[string]interface{}{"error": err.Error()})
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	return serve(ctx, handlerHTTP, request), nil
}

func serve(ctx context.Context, h http.Handler, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	req, err := toHTTPRequest(ctx, request)
	if err != nil {
		logger.WarnCF("lambda", "Bad request", map[string]interface{}{"error": err.Error()})
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}
	}

	rec := newResponseBuffer()
	h.ServeHTTP(rec, req)
	return fromResponseBuffer(rec)
}

func main() {
	lambda.Start(handler)
}
