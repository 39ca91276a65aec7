// Package config handles Gharkhoji configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/gharkhoji/config.yaml, /etc/gharkhoji/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gharkhoji", "config.yaml"))
	}

	paths = append(paths, "/etc/gharkhoji/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Gharkhoji configuration.
type Config struct {
	Listen        ListenConfig    `yaml:"listen"`
	Models        ModelsConfig    `yaml:"models"`
	Anthropic     AnthropicConfig `yaml:"anthropic"`
	Search        SearchConfig    `yaml:"search"`
	Places        PlacesConfig    `yaml:"places"`
	Market        MarketConfig    `yaml:"market"`
	MQTT          MQTTConfig      `yaml:"mqtt"`
	Email         EmailConfig     `yaml:"email"`
	Titler        TitlerConfig    `yaml:"titler"`
	DataDir       string          `yaml:"data_dir"`
	PublicBaseURL string          `yaml:"public_base_url"`
	LogLevel      string          `yaml:"log_level"`
	LogFormat     string          `yaml:"log_format"` // "text" (default) or "json"
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// ModelsConfig defines model routing settings.
type ModelsConfig struct {
	Default   string            `yaml:"default"`
	Market    string            `yaml:"market"` // model for market analysis (defaults to Default)
	OllamaURL string            `yaml:"ollama_url"`
	Providers map[string]string `yaml:"providers"` // model name → provider (ollama, anthropic)
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearchConfig defines web search provider settings.
type SearchConfig struct {
	Provider string        `yaml:"provider"` // "serper" or "searxng" (default: first configured)
	Location string        `yaml:"location"` // locale hint passed to providers, e.g. "Kathmandu, Nepal"
	Serper   SerperConfig  `yaml:"serper"`
	SearXNG  SearXNGConfig `yaml:"searxng"`
}

// SerperConfig holds settings for the Serper (Google) search provider.
type SerperConfig struct {
	APIKey string `yaml:"api_key"`
}

// Configured reports whether a Serper API key is set.
func (c SerperConfig) Configured() bool { return c.APIKey != "" }

// SearXNGConfig holds settings for a self-hosted SearXNG instance.
type SearXNGConfig struct {
	URL string `yaml:"url"`
}

// Configured reports whether a SearXNG URL is set.
func (c SearXNGConfig) Configured() bool { return c.URL != "" }

// PlacesConfig defines the geocoding/places provider settings.
type PlacesConfig struct {
	GoogleAPIKey string `yaml:"google_api_key"`
}

// Configured reports whether a places API key is set.
func (c PlacesConfig) Configured() bool { return c.GoogleAPIKey != "" }

// MarketConfig defines market analysis settings.
type MarketConfig struct {
	// ContextURLs are pages fetched before each analysis to ground the
	// report in current market coverage. Fetch failures are non-fatal.
	ContextURLs []string `yaml:"context_urls"`
}

// MQTTConfig defines the optional runtime telemetry publisher.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BrokerURL   string `yaml:"broker_url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"` // default "gharkhoji"
	IntervalSec int    `yaml:"interval_sec"` // state publish interval (default 60)
}

// EmailConfig defines SMTP delivery, IMAP intake, and digest settings.
type EmailConfig struct {
	Enabled bool         `yaml:"enabled"`
	From    string       `yaml:"from"` // "Name <addr>" or bare address
	SMTP    SMTPConfig   `yaml:"smtp"`
	IMAP    IMAPConfig   `yaml:"imap"`
	Digest  DigestConfig `yaml:"digest"`
	Intake  IntakeConfig `yaml:"intake"`
}

// SMTPConfig defines outbound mail delivery.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"` // 465 implicit TLS, 587 STARTTLS
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	StartTLS bool   `yaml:"starttls"`
}

// IMAPConfig defines the inbound mailbox for inquiry intake.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLS      bool   `yaml:"tls"`
	Folder   string `yaml:"folder"` // default INBOX
}

// DigestConfig defines the saved-search digest mailer.
type DigestConfig struct {
	Enabled     bool              `yaml:"enabled"`
	IntervalHrs int               `yaml:"interval_hours"` // default 24
	Recipients  []DigestRecipient `yaml:"recipients"`
}

// DigestRecipient binds a preference-owning user to a mailbox.
type DigestRecipient struct {
	UserID string `yaml:"user_id"`
	Email  string `yaml:"email"`
}

// IntakeConfig defines the inquiry intake poller.
type IntakeConfig struct {
	Enabled     bool `yaml:"enabled"`
	IntervalSec int  `yaml:"interval_sec"` // default 300
}

// TitlerConfig defines the background session titler.
type TitlerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"` // defaults to models.default
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8090},
		Models: ModelsConfig{
			Default:   "qwen3:4b",
			OllamaURL: "http://localhost:11434",
		},
		MQTT: MQTTConfig{
			TopicPrefix: "gharkhoji",
			IntervalSec: 60,
		},
		Email: EmailConfig{
			IMAP:   IMAPConfig{Folder: "INBOX"},
			Digest: DigestConfig{IntervalHrs: 24},
			Intake: IntakeConfig{IntervalSec: 300},
		},
		DataDir:   "./data",
		LogFormat: "text",
	}
}

// Validate checks for values that would fail at runtime. It is called by
// Load; explicit callers only need it for hand-built configs.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format: unknown format %q (valid: text, json)", c.LogFormat)
	}
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port: %d out of range", c.Listen.Port)
	}
	if c.Models.Default == "" {
		return fmt.Errorf("models.default: required")
	}
	for model, provider := range c.Models.Providers {
		switch provider {
		case "ollama", "anthropic":
		default:
			return fmt.Errorf("models.providers[%s]: unknown provider %q", model, provider)
		}
	}
	if c.Email.Digest.Enabled || c.Email.Intake.Enabled {
		if !c.Email.Enabled {
			return fmt.Errorf("email: digest/intake require email.enabled")
		}
	}
	if c.Email.Enabled {
		if c.Email.SMTP.Host == "" {
			return fmt.Errorf("email.smtp.host: required when email is enabled")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email.from: required when email is enabled")
		}
	}
	if c.Email.Intake.Enabled && c.Email.IMAP.Host == "" {
		return fmt.Errorf("email.imap.host: required when intake is enabled")
	}
	if c.MQTT.Enabled && c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt.broker_url: required when mqtt is enabled")
	}
	return nil
}
