package config

import (
	"fmt"
	"net"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Bridge    BridgeConfig
	Results   ResultsConfig
	Webview   WebviewConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP gateway configuration.
type ServerConfig struct {
	Host string `envconfig:"BRIDGE_HOST" default:"127.0.0.1"`
	Port string `envconfig:"BRIDGE_PORT" default:"3001"`
}

// Addr returns the host:port the gateway binds to.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// BridgeConfig controls the correlation wait loop.
type BridgeConfig struct {
	MaxAttempts  int           `envconfig:"BRIDGE_MAX_ATTEMPTS" default:"50"`
	PollInterval time.Duration `envconfig:"BRIDGE_POLL_INTERVAL" default:"100ms"`
	// CallbackURL overrides the result endpoint injected scripts post to.
	// Derived from the server address when empty.
	CallbackURL string `envconfig:"BRIDGE_CALLBACK_URL"`
}

// ResultsConfig bounds the result store.
type ResultsConfig struct {
	TTL          time.Duration `envconfig:"RESULTS_TTL" default:"60s"`
	MaxEntries   int           `envconfig:"RESULTS_MAX_ENTRIES" default:"10000"`
	ReapInterval time.Duration `envconfig:"RESULTS_REAP_INTERVAL" default:"30s"`
}

// WebviewConfig holds settings for the embedded rendering surface.
type WebviewConfig struct {
	PagePath      string        `envconfig:"WEBVIEW_PAGE"`
	Watch         bool          `envconfig:"WEBVIEW_WATCH" default:"false"`
	ScriptTimeout time.Duration `envconfig:"WEBVIEW_SCRIPT_TIMEOUT" default:"5s"`
	ConsoleBuffer int           `envconfig:"WEBVIEW_CONSOLE_BUFFER" default:"1000"`
	FetchTimeout  time.Duration `envconfig:"WEBVIEW_FETCH_TIMEOUT" default:"10s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"false"`
	// Global shares one bucket across all clients instead of one per IP.
	Global bool `envconfig:"RATE_LIMIT_GLOBAL" default:"false"`
}

// CallbackURL returns the result endpoint injected scripts report to.
func (c *Config) CallbackURL() string {
	if c.Bridge.CallbackURL != "" {
		return c.Bridge.CallbackURL
	}
	return "http://" + c.Server.Addr() + "/api/results"
}

// WaitBudget is the longest an invocation waits for its result.
func (c *Config) WaitBudget() time.Duration {
	return time.Duration(c.Bridge.MaxAttempts) * c.Bridge.PollInterval
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the bridge cannot run with.
func (c *Config) Validate() error {
	if c.Bridge.MaxAttempts <= 0 {
		return fmt.Errorf("BRIDGE_MAX_ATTEMPTS must be positive, got %d", c.Bridge.MaxAttempts)
	}
	if c.Bridge.PollInterval <= 0 {
		return fmt.Errorf("BRIDGE_POLL_INTERVAL must be positive, got %s", c.Bridge.PollInterval)
	}
	if c.Results.TTL > 0 && c.Results.TTL < c.WaitBudget() {
		return fmt.Errorf("RESULTS_TTL (%s) must not be shorter than the wait budget (%s)", c.Results.TTL, c.WaitBudget())
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "3001",
		},
		Bridge: BridgeConfig{
			MaxAttempts:  50,
			PollInterval: 100 * time.Millisecond,
		},
		Results: ResultsConfig{
			TTL:          60 * time.Second,
			MaxEntries:   10000,
			ReapInterval: 30 * time.Second,
		},
		Webview: WebviewConfig{
			ScriptTimeout: 5 * time.Second,
			ConsoleBuffer: 1000,
			FetchTimeout:  10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           false,
		},
	}
}

// ClientConfig configures the MCP front end's gateway client.
type ClientConfig struct {
	GatewayURL string        `envconfig:"GATEWAY_URL" default:"http://127.0.0.1:3001/api"`
	Timeout    time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
	LogLevel   string        `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadClient loads the MCP front end configuration from the environment.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load client config: %w", err)
	}
	return &cfg, nil
}
