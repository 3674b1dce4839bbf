package config_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/storylens/internal/config"
)

const watchedYAML = `
server:
  log_level: info
backend:
  rate_limit:
    requests_per_second: 2
    burst: 4
providers:
  llm:
    name: gemini
    model: gemini-2.5-flash
`

// ─── Helpers ──────────────────────────────────────────────────────────────────

// writeConfig writes content to path and moves its modification time forward
// by step seconds so coarse filesystem clocks still register the edit.
func writeConfig(t *testing.T, path, content string, step int) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	mtime := time.Now().Add(time.Duration(step) * time.Second)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

// startWatcher writes watchedYAML and starts a fast-polling watcher that
// forwards reloads on the returned channel.
func startWatcher(t *testing.T) (*config.Watcher, string, <-chan config.Reload) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storylens.yaml")
	writeConfig(t, path, watchedYAML, 0)

	reloads := make(chan config.Reload, 4)
	w, err := config.NewWatcher(context.Background(), path, func(r config.Reload) { reloads <- r },
		config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, path, reloads
}

func waitReload(t *testing.T, reloads <-chan config.Reload) config.Reload {
	t.Helper()
	select {
	case r := <-reloads:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no reload within 2s")
		return config.Reload{}
	}
}

// ─── Tests ────────────────────────────────────────────────────────────────────

// TestWatcher_InitialLoad checks that the file is loaded with defaults applied.
func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	w, _, _ := startWatcher(t)

	cfg := w.Current()
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q", cfg.Server.LogLevel)
	}
	if cfg.Frontend.BackendURL != "http://127.0.0.1:5000" {
		t.Errorf("backend_url = %q", cfg.Frontend.BackendURL)
	}
}

// TestWatcher_LogLevelReload checks that a log level edit is reported as a live change.
func TestWatcher_LogLevelReload(t *testing.T) {
	t.Parallel()
	w, path, reloads := startWatcher(t)

	writeConfig(t, path, strings.Replace(watchedYAML, "log_level: info", "log_level: debug", 1), 2)
	r := waitReload(t, reloads)

	if !r.Diff.LogLevelChanged || r.Diff.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v", r.Diff)
	}
	if len(r.Diff.RestartRequired) != 0 {
		t.Errorf("restart required = %v, want none", r.Diff.RestartRequired)
	}
	if r.Old.Server.LogLevel != config.LogInfo || w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("old = %q, current = %q", r.Old.Server.LogLevel, w.Current().Server.LogLevel)
	}
}

// TestWatcher_RestartRequired checks that backend and model edits are flagged for restart.
func TestWatcher_RestartRequired(t *testing.T) {
	t.Parallel()
	_, path, reloads := startWatcher(t)

	edited := strings.Replace(watchedYAML, "burst: 4", "burst: 8", 1)
	edited = strings.Replace(edited, "gemini-2.5-flash", "gemini-2.5-pro", 1)
	writeConfig(t, path, edited, 2)
	r := waitReload(t, reloads)

	for _, want := range []string{"backend", "providers.llm"} {
		if !slices.Contains(r.Diff.RestartRequired, want) {
			t.Errorf("restart required = %v, missing %q", r.Diff.RestartRequired, want)
		}
	}
	if r.New.Backend.RateLimit.Burst != 8 {
		t.Errorf("burst = %d", r.New.Backend.RateLimit.Burst)
	}
}

// TestWatcher_InvalidEditKeepsConfig checks that a failing edit is counted and ignored.
func TestWatcher_InvalidEditKeepsConfig(t *testing.T) {
	t.Parallel()
	w, path, reloads := startWatcher(t)

	writeConfig(t, path, strings.Replace(watchedYAML, "log_level: info", "log_level: info\n  listen_addr: \":5000\"", 1), 2)
	deadline := time.Now().Add(2 * time.Second)
	for w.Rejected() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if w.Rejected() != 1 {
		t.Fatalf("rejected = %d, want 1", w.Rejected())
	}
	if got := w.Current().Server.ListenAddr; got != config.DefaultListenAddr {
		t.Errorf("listen_addr = %q, want previous %q", got, config.DefaultListenAddr)
	}
	select {
	case r := <-reloads:
		t.Errorf("unexpected reload %+v", r.Diff)
	default:
	}
}

// TestWatcher_CommentOnlyEdit checks that an edit which changes no setting is not reported.
func TestWatcher_CommentOnlyEdit(t *testing.T) {
	t.Parallel()
	w, path, reloads := startWatcher(t)

	writeConfig(t, path, "# tuned for the reading group\n"+watchedYAML, 2)
	writeConfig(t, path, strings.Replace(watchedYAML, "log_level: info", "log_level: warn", 1), 4)

	r := waitReload(t, reloads)
	if r.Diff.NewLogLevel != config.LogWarn {
		t.Errorf("first reported reload = %+v, want the log level edit", r.Diff)
	}
	if w.Rejected() != 0 {
		t.Errorf("rejected = %d", w.Rejected())
	}
}

// TestWatcher_MissingFile checks that a missing file fails at construction.
func TestWatcher_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.NewWatcher(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err == nil {
		t.Fatal("expected error for a missing file")
	}
}

// TestWatcher_StopsWithContext checks that cancelling the context ends polling and Stop stays safe.
func TestWatcher_StopsWithContext(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "storylens.yaml")
	writeConfig(t, path, watchedYAML, 0)

	ctx, cancel := context.WithCancel(context.Background())
	called := make(chan struct{}, 1)
	w, err := config.NewWatcher(ctx, path, func(config.Reload) { called <- struct{}{} },
		config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	cancel()
	w.Stop()
	w.Stop()

	writeConfig(t, path, strings.Replace(watchedYAML, "log_level: info", "log_level: error", 1), 2)
	select {
	case <-called:
		t.Error("reload reported after the watcher stopped")
	case <-time.After(100 * time.Millisecond):
	}
}
