// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/irclight/unfurl/internal/events"
	"github.com/irclight/unfurl/internal/preview"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Preview PreviewConfig `mapstructure:"preview"`
	Events  EventsConfig  `mapstructure:"events"`
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Port int    `mapstructure:"port"`
}

// ListenAddr renders the host:port the server binds.
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Addr, s.Port)
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// PreviewConfig groups the preview subsystem knobs.
type PreviewConfig struct {
	Request RequestConfig `mapstructure:"request"`
}

// RequestConfig governs per-request fetch behavior. Durations arrive as
// integer milliseconds and sizes as bytes; zero means unlimited for the
// timeout, the size caps, and concurrency.
type RequestConfig struct {
	UserAgent     string `mapstructure:"user_agent"`
	TimeoutMs     int    `mapstructure:"timeout_ms"`
	MaxImageSize  int64  `mapstructure:"max_image_size"`
	MaxScrapeSize int64  `mapstructure:"max_scrape_size"`
	Concurrency   int    `mapstructure:"concurrency"`
	DelayMs       int    `mapstructure:"delay_ms"`
}

// FetchConfig converts the loaded values into the typed snapshot the
// scheduler is constructed with. Tuning applies at startup only.
func (r RequestConfig) FetchConfig() preview.FetchConfig {
	return preview.FetchConfig{
		UserAgent:      r.UserAgent,
		Timeout:        time.Duration(r.TimeoutMs) * time.Millisecond,
		MaxImageBytes:  r.MaxImageSize,
		MaxScrapeBytes: r.MaxScrapeSize,
		Concurrency:    r.Concurrency,
		Delay:          time.Duration(r.DelayMs) * time.Millisecond,
	}
}

// EventsConfig tunes the lifecycle event hub.
type EventsConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int `mapstructure:"max_batch_wait_ms"`
	SinkTimeoutMs  int `mapstructure:"sink_timeout_ms"`
}

// HubConfig converts the loaded values into the hub's config. The
// composition root fills in the logger and base context.
func (e EventsConfig) HubConfig() events.Config {
	return events.Config{
		BufferSize:     e.BufferSize,
		MaxBatchEvents: e.MaxBatchEvents,
		MaxBatchWait:   time.Duration(e.MaxBatchWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(e.SinkTimeoutMs) * time.Millisecond,
	}
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("UNFURL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("preview.request.user_agent", "WhatsApp/2")
	v.SetDefault("preview.request.timeout_ms", 10000)
	v.SetDefault("preview.request.max_image_size", 10485760)
	v.SetDefault("preview.request.max_scrape_size", 512000)
	v.SetDefault("preview.request.concurrency", 4)
	v.SetDefault("preview.request.delay_ms", 500)
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("events.max_batch_events", 256)
	v.SetDefault("events.max_batch_wait_ms", 250)
	v.SetDefault("events.sink_timeout_ms", 5000)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Preview.Request.UserAgent == "" {
		return fmt.Errorf("preview.request.user_agent must be set")
	}
	if c.Preview.Request.TimeoutMs < 0 {
		return fmt.Errorf("preview.request.timeout_ms must be >= 0")
	}
	if c.Preview.Request.MaxImageSize < 0 {
		return fmt.Errorf("preview.request.max_image_size must be >= 0")
	}
	if c.Preview.Request.MaxScrapeSize < 0 {
		return fmt.Errorf("preview.request.max_scrape_size must be >= 0")
	}
	if c.Preview.Request.Concurrency < 0 {
		return fmt.Errorf("preview.request.concurrency must be >= 0")
	}
	if c.Preview.Request.DelayMs < 0 {
		return fmt.Errorf("preview.request.delay_ms must be >= 0")
	}
	if c.Events.BufferSize < 0 {
		return fmt.Errorf("events.buffer_size must be >= 0")
	}
	if c.Events.MaxBatchEvents < 0 {
		return fmt.Errorf("events.max_batch_events must be >= 0")
	}
	return nil
}
