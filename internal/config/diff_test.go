package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/storylens/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Frontend:  config.FrontendConfig{BackendURL: "http://127.0.0.1:5000"},
		Backend:   config.BackendConfig{ListenAddr: ":5000"},
		Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "gemini", Model: "gemini-2.5-flash"}},
	}
}

func TestDiff_NoChange(t *testing.T) {
	t.Parallel()
	if d := config.Diff(baseConfig(), baseConfig()); !d.Empty() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	next := baseConfig()
	next.Server.LogLevel = config.LogDebug

	d := config.Diff(baseConfig(), next)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level should not require restart: %v", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	disabled := false
	next := baseConfig()
	next.Providers.LLM.Model = "gemini-2.5-pro"
	next.Providers.LLMFallbacks = []config.ProviderEntry{{Name: "openai"}}
	next.Backend.Enabled = &disabled
	next.Session.IdleTimeout = 1

	d := config.Diff(baseConfig(), next)
	for _, want := range []string{"providers.llm", "providers.llm_fallbacks", "backend", "session"} {
		if !slices.Contains(d.RestartRequired, want) {
			t.Errorf("RestartRequired %v missing %q", d.RestartRequired, want)
		}
	}
	if slices.Contains(d.RestartRequired, "telemetry") {
		t.Error("telemetry did not change")
	}
}

func TestDiff_OptionsIgnored(t *testing.T) {
	t.Parallel()
	next := baseConfig()
	next.Providers.LLM.Options = map[string]any{"temperature": 0.1}
	if d := config.Diff(baseConfig(), next); !d.Empty() {
		t.Errorf("options change should be ignored, got %+v", d)
	}
}
