package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Webhook WebhookConfig `json:"webhook" toml:"webhook" yaml:"webhook"`
	WebChat WebChatConfig `json:"webchat" toml:"webchat" yaml:"webchat"`
	TUI     TUIConfig     `json:"tui" toml:"tui" yaml:"tui"`
	Chat    ChatConfig    `json:"chat" toml:"chat" yaml:"chat"`
	Log     LogConfig     `json:"log" toml:"log" yaml:"log"`
	mu      sync.RWMutex
}

type WebhookConfig struct {
	URL            string `json:"url" toml:"url" yaml:"url" env:"PICOCHAT_WEBHOOK_URL"`
	AuthHeader     string `json:"auth_header" toml:"auth_header" yaml:"auth_header" env:"PICOCHAT_WEBHOOK_AUTH_HEADER"`
	AuthToken      string `json:"auth_token" toml:"auth_token" yaml:"auth_token" env:"PICOCHAT_WEBHOOK_AUTH_TOKEN"`
	InputField     string `json:"input_field" toml:"input_field" yaml:"input_field" env:"PICOCHAT_WEBHOOK_INPUT_FIELD"`
	ReplyField     string `json:"reply_field" toml:"reply_field" yaml:"reply_field" env:"PICOCHAT_WEBHOOK_REPLY_FIELD"`
	TimeoutSeconds int    `json:"timeout_seconds" toml:"timeout_seconds" yaml:"timeout_seconds" env:"PICOCHAT_WEBHOOK_TIMEOUT_SECONDS"`
}

type WebChatConfig struct {
	Host              string `json:"host" toml:"host" yaml:"host" env:"PICOCHAT_WEBCHAT_HOST"`
	Port              int    `json:"port" toml:"port" yaml:"port" env:"PICOCHAT_WEBCHAT_PORT"`
	Title             string `json:"title" toml:"title" yaml:"title" env:"PICOCHAT_WEBCHAT_TITLE"`
	Subtitle          string `json:"subtitle" toml:"subtitle" yaml:"subtitle" env:"PICOCHAT_WEBCHAT_SUBTITLE"`
	SessionTTLMinutes int    `json:"session_ttl_minutes" toml:"session_ttl_minutes" yaml:"session_ttl_minutes" env:"PICOCHAT_WEBCHAT_SESSION_TTL_MINUTES"`
}

type TUIConfig struct {
	UserLabel string `json:"user_label" toml:"user_label" yaml:"user_label" env:"PICOCHAT_TUI_USER_LABEL"`
	BotLabel  string `json:"bot_label" toml:"bot_label" yaml:"bot_label" env:"PICOCHAT_TUI_BOT_LABEL"`
}

type ChatConfig struct {
	FailureMessage string `json:"failure_message" toml:"failure_message" yaml:"failure_message" env:"PICOCHAT_CHAT_FAILURE_MESSAGE"`
}

type LogConfig struct {
	Level string `json:"level" toml:"level" yaml:"level" env:"PICOCHAT_LOG_LEVEL"`
	File  string `json:"file,omitempty" toml:"file,omitempty" yaml:"file,omitempty" env:"PICOCHAT_LOG_FILE"`
}

const DefaultFailureMessage = "Sorry, there was an error sending your message. Please try again."

func DefaultConfig() *Config {
	return &Config{
		Webhook: WebhookConfig{
			URL:            "",
			AuthHeader:     "auth",
			InputField:     "chatInput",
			ReplyField:     "output",
			TimeoutSeconds: 60,
		},
		WebChat: WebChatConfig{
			Host:              "127.0.0.1",
			Port:              18800,
			Title:             "SFDA QA Chatbot",
			Subtitle:          "Always here to help",
			SessionTTLMinutes: 24 * 60,
		},
		TUI: TUIConfig{
			UserLabel: "You",
			BotLabel:  "Bot",
		},
		Chat: ChatConfig{
			FailureMessage: DefaultFailureMessage,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath is where the CLI looks for a config file when none is given.
func DefaultPath() string {
	return expandHome("~/.picochat/config.json")
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Support full config from env var (for containers / serverless)
	if cfgJSON := os.Getenv("PICOCHAT_CONFIG_JSON"); cfgJSON != "" {
		if err := json.Unmarshal([]byte(cfgJSON), cfg); err != nil {
			return nil, fmt.Errorf("parsing PICOCHAT_CONFIG_JSON: %w", err)
		}
		if err := env.Parse(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(cfg)
		data = []byte(sb.String())
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	path = expandHome(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ListenAddr returns the host:port the web front end binds to.
func (c *Config) ListenAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s:%d", c.WebChat.Host, c.WebChat.Port)
}

// FailureMessage returns the text shown when a webhook call fails.
func (c *Config) FailureMessage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if strings.TrimSpace(c.Chat.FailureMessage) == "" {
		return DefaultFailureMessage
	}
	return c.Chat.FailureMessage
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
