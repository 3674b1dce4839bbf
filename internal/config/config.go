// Package config provides the configuration schema, loader, and LLM provider
// registry for StoryLens.
package config

import (
	"log/slog"
	"net"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Defaults applied by [LoadFromReader] to unset fields.
const (
	DefaultListenAddr        = ":8080"
	DefaultBackendListenAddr = ":5000"
	DefaultServiceName       = "storylens"
	DefaultIdleTimeout       = 2 * time.Hour
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Frontend  FrontendConfig  `yaml:"frontend"`
	Backend   BackendConfig   `yaml:"backend"`
	Providers ProvidersConfig `yaml:"providers"`
	Session   SessionConfig   `yaml:"session"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds the web front end's address and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the web front end (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`
}

// FrontendConfig controls how the front end reaches the analysis backend.
type FrontendConfig struct {
	// BackendURL is the base URL of the backend API. When empty and the
	// backend runs in-process, it is derived from backend.listen_addr.
	BackendURL string `yaml:"backend_url"`

	// RequestTimeout bounds each backend call. Zero means no timeout.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// BackendConfig configures the in-process analysis backend.
type BackendConfig struct {
	// Enabled starts the backend API in this process. Defaults to true.
	Enabled *bool `yaml:"enabled"`

	// ListenAddr is the TCP address of the backend API.
	ListenAddr string `yaml:"listen_addr"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// IsEnabled reports whether the backend should run in-process.
func (b BackendConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// RateLimitConfig throttles calls to the LLM provider. A zero
// RequestsPerSecond disables throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ProvidersConfig selects the LLM provider and its ordered fallbacks.
type ProvidersConfig struct {
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
}

// ProviderEntry is the configuration block of one LLM provider. Name is used
// to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini").
	Name string `yaml:"name"`

	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model (e.g., "gemini-2.5-flash").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// SessionConfig controls per-browser session lifetime.
type SessionConfig struct {
	// IdleTimeout evicts sessions untouched for this long.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// TelemetryConfig names the service in exported metrics and traces.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`

	// TraceSampleRatio is the fraction of root traces recorded, in [0, 1].
	// Zero records every trace.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

// applyDefaults fills unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Backend.ListenAddr == "" {
		cfg.Backend.ListenAddr = DefaultBackendListenAddr
	}
	if cfg.Frontend.BackendURL == "" && cfg.Backend.IsEnabled() {
		cfg.Frontend.BackendURL = localURL(cfg.Backend.ListenAddr)
	}
	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// localURL turns a listen address into a loopback URL, e.g. ":5000" into
// "http://127.0.0.1:5000".
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
