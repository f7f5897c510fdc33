// Package config provides YAML scenario configuration for the pollphase
// command.
//
// A scenario describes the poller cadence, the initial items, timed
// additions, and where each tick is sent:
//
//	poll_interval: 1s
//	grace_period: 5s
//	items: ["1", "2", "3"]
//	additions:
//	  - after: 3s
//	    items: ["4"]
//	  - after: 3s
//	    items: ["5"]
//	sink:
//	  type: redis
//	  redis:
//	    addr: ${REDIS_ADDR:-localhost:6379}
//	    channel: pollphase
//	listen: ":9090"
//
// Without a file, [Default] reproduces the demo scenario above with a
// console sink.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Sink types.
const (
	SinkConsole = "console"
	SinkLog     = "log"
	SinkRedis   = "redis"
	SinkWebhook = "webhook"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultGracePeriod  = 5 * time.Second
	defaultRedisAddr    = "localhost:6379"
	defaultRedisChannel = "pollphase"
)

// Config is the root configuration structure for a scenario.
//
// Use [Load], [Parse] or [Default] to create one.
type Config struct {
	// PollInterval is the cadence between ticks. Defaults to 1s.
	PollInterval Duration `yaml:"poll_interval"`

	// GracePeriod is how long the poller keeps ticking once no more items
	// are expected. Defaults to 5s.
	GracePeriod Duration `yaml:"grace_period"`

	// Items are polled from the first tick.
	Items []string `yaml:"items"`

	// Additions are applied in order, each after waiting its delay.
	Additions []Addition `yaml:"additions"`

	// Sink selects where each tick is sent.
	Sink SinkConfig `yaml:"sink"`

	// Listen is the HTTP address for the ticks API and metrics.
	// Empty disables the HTTP surface. Supports ${VAR} substitution.
	Listen string `yaml:"listen"`
}

// Addition adds items to a running poller.
type Addition struct {
	// After is the delay since the previous step (start, or the previous
	// addition).
	After Duration `yaml:"after"`

	// Items are appended to the poller's items.
	Items []string `yaml:"items"`
}

// SinkConfig selects the poll operation.
type SinkConfig struct {
	// Type is "console" (default), "log", "redis" or "webhook".
	Type string `yaml:"type"`

	// Redis configures the "redis" sink.
	Redis RedisConfig `yaml:"redis"`

	// Webhook configures the "webhook" sink.
	Webhook WebhookConfig `yaml:"webhook"`
}

// RedisConfig configures the Redis pub/sub sink. String values support
// ${VAR} and ${VAR:-default} substitution.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// WebhookConfig configures the HTTP webhook sink. The URL and header values
// support ${VAR} and ${VAR:-default} substitution.
type WebhookConfig struct {
	// URL receives a JSON POST per tick.
	URL string `yaml:"url"`

	// Headers are sent with each request.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds each request. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the demo scenario: poll 1, 2, 3, add 4 after 3s, add 5
// after another 3s, then stop accepting items.
func Default() *Config {
	cfg := &Config{
		Items: []string{"1", "2", "3"},
		Additions: []Addition{
			{After: Duration(3 * time.Second), Items: []string{"4"}},
			{After: Duration(3 * time.Second), Items: []string{"5"}},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
// Group 1: variable name
// Group 2: the ":-default" part, present if a default was given
// Group 3: the default value, possibly empty
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML scenario file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML scenario data, applies defaults, expands environment
// variables and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = Duration(defaultGracePeriod)
	}
	if c.Sink.Type == "" {
		c.Sink.Type = SinkConsole
	}
	if c.Sink.Type == SinkRedis {
		if c.Sink.Redis.Addr == "" {
			c.Sink.Redis.Addr = defaultRedisAddr
		}
		if c.Sink.Redis.Channel == "" {
			c.Sink.Redis.Channel = defaultRedisChannel
		}
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.PollInterval.Duration() < 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval.Duration())
	}
	if c.GracePeriod.Duration() < 0 {
		return fmt.Errorf("grace_period must be positive, got %s", c.GracePeriod.Duration())
	}

	for i, a := range c.Additions {
		if a.After.Duration() < 0 {
			return fmt.Errorf("additions[%d]: after cannot be negative, got %s", i, a.After.Duration())
		}
		if len(a.Items) == 0 {
			return fmt.Errorf("additions[%d]: at least one item is required", i)
		}
	}

	if c.Listen != "" {
		expanded, err := expandEnvVars(c.Listen)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		if _, _, err := net.SplitHostPort(expanded); err != nil {
			return fmt.Errorf("listen: invalid address %q: %w", expanded, err)
		}
		c.Listen = expanded
	}

	switch c.Sink.Type {
	case SinkConsole, SinkLog:
	case SinkRedis:
		r := &c.Sink.Redis
		for _, f := range []struct {
			name string
			val  *string
		}{
			{"addr", &r.Addr},
			{"password", &r.Password},
			{"channel", &r.Channel},
		} {
			expanded, err := expandEnvVars(*f.val)
			if err != nil {
				return fmt.Errorf("sink.redis.%s: %w", f.name, err)
			}
			*f.val = expanded
		}
		if r.Addr == "" {
			return fmt.Errorf("sink.redis.addr is required")
		}
		if r.Channel == "" {
			return fmt.Errorf("sink.redis.channel is required")
		}
		if r.DB < 0 {
			return fmt.Errorf("sink.redis.db cannot be negative, got %d", r.DB)
		}
	case SinkWebhook:
		if err := c.Sink.Webhook.expandAndValidate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("sink.type must be %q, %q, %q or %q, got %q",
			SinkConsole, SinkLog, SinkRedis, SinkWebhook, c.Sink.Type)
	}

	return nil
}

func (w *WebhookConfig) expandAndValidate() error {
	if w.URL == "" {
		return fmt.Errorf("sink.webhook.url is required")
	}
	expanded, err := expandEnvVars(w.URL)
	if err != nil {
		return fmt.Errorf("sink.webhook.url: %w", err)
	}
	w.URL = expanded

	parsedURL, err := url.Parse(w.URL)
	if err != nil {
		return fmt.Errorf("sink.webhook.url: invalid url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("sink.webhook.url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	for k, v := range w.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("sink.webhook.headers[%s]: %w", k, err)
		}
		w.Headers[k] = expanded
	}

	if w.Timeout.Duration() < 0 {
		return fmt.Errorf("sink.webhook.timeout cannot be negative, got %s", w.Timeout.Duration())
	}
	return nil
}
