package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidLLMProviders lists the provider names registered by the binary.
// [Validate] warns about names outside this list.
var ValidLLMProviders = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek",
	"mistral", "groq", "llamacpp", "llamafile", "openai-compatible",
}

// envOverrides are read from the process environment after the YAML file and
// take precedence over it when set.
type envOverrides struct {
	LLMAPIKey   string `env:"STORYLENS_LLM_API_KEY"`
	LLMProvider string `env:"STORYLENS_LLM_PROVIDER"`
	LLMModel    string `env:"STORYLENS_LLM_MODEL"`
	ListenAddr  string `env:"STORYLENS_LISTEN_ADDR"`
	BackendURL  string `env:"STORYLENS_BACKEND_URL"`
	LogLevel    string `env:"STORYLENS_LOG_LEVEL"`
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config]. A .env file in the working
// directory is loaded into the environment first. A missing config file is
// not an error: defaults and the environment apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: ignoring unreadable .env file", "err", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Info("config file not found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides
// and defaults, and validates the result. Empty input yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Providers.LLM.APIKey, o.LLMAPIKey)
	set(&cfg.Providers.LLM.Name, o.LLMProvider)
	set(&cfg.Providers.LLM.Model, o.LLMModel)
	set(&cfg.Server.ListenAddr, o.ListenAddr)
	set(&cfg.Frontend.BackendURL, o.BackendURL)
	if o.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(o.LogLevel)
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Backend.IsEnabled() && cfg.Server.ListenAddr != "" && cfg.Server.ListenAddr == cfg.Backend.ListenAddr {
		errs = append(errs, fmt.Errorf("server.listen_addr and backend.listen_addr must differ (both %q)", cfg.Server.ListenAddr))
	}

	if cfg.Frontend.BackendURL == "" {
		errs = append(errs, errors.New("frontend.backend_url is required when the backend is disabled"))
	} else if u, err := url.Parse(cfg.Frontend.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("frontend.backend_url %q must be an http(s) URL", cfg.Frontend.BackendURL))
	}
	if cfg.Frontend.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("frontend.request_timeout %s must not be negative", cfg.Frontend.RequestTimeout))
	}

	if cfg.Backend.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("backend.rate_limit.requests_per_second %g must not be negative", cfg.Backend.RateLimit.RequestsPerSecond))
	}
	if cfg.Backend.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("backend.rate_limit.burst %d must not be negative", cfg.Backend.RateLimit.Burst))
	}
	if cfg.Session.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.idle_timeout %s must not be negative", cfg.Session.IdleTimeout))
	}
	if r := cfg.Telemetry.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.trace_sample_ratio %g must be between 0 and 1", r))
	}

	if cfg.Backend.IsEnabled() && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required when the backend is enabled"))
	}
	validateProviderName(cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName(fb.Name)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not a known
// provider.
func validateProviderName(name string) {
	if name == "" || slices.Contains(ValidLLMProviders, name) {
		return
	}
	slog.Warn("unknown llm provider name, may be a typo or third-party provider",
		"name", name,
		"known", ValidLLMProviders,
	)
}
