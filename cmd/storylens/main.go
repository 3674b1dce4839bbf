// Command storylens serves the StoryLens web front end and its analysis
// backend, or, with -mcp, exposes the backend as MCP tools over stdio.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/storylens/internal/app"
	"github.com/MrWong99/storylens/internal/backend"
	"github.com/MrWong99/storylens/internal/config"
	"github.com/MrWong99/storylens/internal/mcp"
	"github.com/MrWong99/storylens/internal/observe"
	"github.com/MrWong99/storylens/pkg/provider/llm"
	"github.com/MrWong99/storylens/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/storylens/pkg/provider/llm/openai"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	mcpMode := flag.Bool("mcp", false, "serve the analysis tools over MCP on stdio instead of HTTP")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storylens: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("storylens starting",
		"version", version,
		"config", *configPath,
		"mcp", *mcpMode,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	mode := observe.ModeWeb
	if *mcpMode {
		mode = observe.ModeMCP
	}
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Mode:           mode,
		SampleRatio:    cfg.Telemetry.TraceSampleRatio,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	var provider llm.Provider
	if cfg.Backend.IsEnabled() || *mcpMode {
		fb, err := app.BuildLLM(cfg.Providers, reg, metrics)
		if err != nil {
			slog.Error("failed to build providers", "err", err)
			return 1
		}
		provider = fb
	}

	// ── MCP mode ──────────────────────────────────────────────────────────────
	if *mcpMode {
		svc, err := backend.New(backend.Config{
			LLM:               provider,
			ProviderName:      cfg.Providers.LLM.Name,
			RequestsPerSecond: cfg.Backend.RateLimit.RequestsPerSecond,
			Burst:             cfg.Backend.RateLimit.Burst,
			Metrics:           metrics,
		})
		if err != nil {
			slog.Error("failed to initialise backend", "err", err)
			return 1
		}
		if err := mcp.Run(ctx, svc, metrics, version); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("mcp server error", "err", err)
			return 1
		}
		return 0
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if _, err := os.Stat(*configPath); err == nil {
		w, err := config.NewWatcher(ctx, *configPath, func(r config.Reload) {
			d := r.Diff
			if d.LogLevelChanged {
				level.Set(d.NewLogLevel.Level())
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			if len(d.RestartRequired) > 0 {
				slog.Warn("config changes take effect after restart", "settings", d.RestartRequired)
			}
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg, provider, cfg.Providers.LLM.Name,
		app.WithMetrics(metrics),
		app.WithMetricsHandler(telemetry.Handler),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := application.Run(ctx); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the LLM provider factories into reg. The
// any-llm-go backends share the same pattern: optional APIKey + optional
// BaseURL. "openai-compatible" uses the OpenAI SDK against BaseURL.
func registerBuiltinProviders(reg *config.Registry) {
	for _, providerName := range anyllm.SupportedProviders {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	reg.RegisterLLM("openai-compatible", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		if d, err := time.ParseDuration(optString(entry.Options, "timeout")); err == nil {
			opts = append(opts, oaillm.WithTimeout(d))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, name := range reg.LLMNames() {
		slog.Debug("registered provider", "kind", "llm", "name", name)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       StoryLens startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("LLM", providerLabel(cfg.Providers.LLM))
	printRow("Fallbacks", fmt.Sprint(len(cfg.Providers.LLMFallbacks)))
	printRow("Web addr", cfg.Server.ListenAddr)
	if cfg.Backend.IsEnabled() {
		printRow("Backend addr", cfg.Backend.ListenAddr)
	} else {
		printRow("Backend", "(remote)")
	}
	printRow("Backend URL", cfg.Frontend.BackendURL)
	printRow("Session idle", cfg.Session.IdleTimeout.String())
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case e.Model != "":
		return e.Name + " / " + e.Model
	default:
		return e.Name
	}
}

// summaryValueWidth is the value column width of the startup summary box.
const summaryValueWidth = 19

func printRow(label, value string) {
	fmt.Printf("║  %-12s    : %-19s ║\n", label, fitColumn(value, summaryValueWidth))
}

// fitColumn shortens value to at most width runes, marking the cut with an
// ellipsis.
func fitColumn(value string, width int) string {
	r := []rune(value)
	if len(r) <= width {
		return value
	}
	return string(r[:width-1]) + "…"
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
