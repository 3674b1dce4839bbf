// Package app wires the StoryLens subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the backend service, the
// API client, the session store and the web front end; Run serves both HTTP
// listeners and the session sweeper; Shutdown stops the listeners.
//
// For testing, inject listeners and metrics via functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/storylens/internal/apiclient"
	"github.com/MrWong99/storylens/internal/backend"
	"github.com/MrWong99/storylens/internal/config"
	"github.com/MrWong99/storylens/internal/health"
	"github.com/MrWong99/storylens/internal/observe"
	"github.com/MrWong99/storylens/internal/presenter"
	"github.com/MrWong99/storylens/internal/session"
	"github.com/MrWong99/storylens/internal/web"
	"github.com/MrWong99/storylens/pkg/provider/llm"
)

// shutdownTimeout bounds graceful HTTP shutdown once Run's context ends.
const shutdownTimeout = 15 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	service *backend.Service
	store   *session.Store

	webServer     *http.Server
	backendServer *http.Server

	webListener     net.Listener
	backendListener net.Listener
	metricsHandler  http.Handler

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics records into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on the front end's /metrics route.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithWebListener serves the front end on l instead of server.listen_addr.
func WithWebListener(l net.Listener) Option {
	return func(a *App) { a.webListener = l }
}

// WithBackendListener serves the backend API on l instead of
// backend.listen_addr.
func WithBackendListener(l net.Listener) Option {
	return func(a *App) { a.backendListener = l }
}

// New creates an App. provider may be nil only when the backend is disabled
// in cfg; the front end then talks to frontend.backend_url.
func New(cfg *config.Config, provider llm.Provider, providerName string, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Backend ───────────────────────────────────────────────────────
	if cfg.Backend.IsEnabled() {
		if provider == nil {
			return nil, errors.New("app: backend enabled but no LLM provider configured")
		}
		svc, err := backend.New(backend.Config{
			LLM:               provider,
			ProviderName:      providerName,
			RequestsPerSecond: cfg.Backend.RateLimit.RequestsPerSecond,
			Burst:             cfg.Backend.RateLimit.Burst,
			Metrics:           a.metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("app: init backend: %w", err)
		}
		a.service = svc
		checks := health.New(health.Checker{Name: "llm", Check: func(context.Context) error {
			if av, ok := provider.(interface{ Available() bool }); ok && !av.Available() {
				return errors.New("every llm provider has an open circuit breaker")
			}
			return nil
		}})
		a.backendServer = &http.Server{
			Addr:              cfg.Backend.ListenAddr,
			Handler:           backend.NewHandler(svc, checks, a.metrics),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	// ── 2. API client ────────────────────────────────────────────────────
	var clientOpts []apiclient.Option
	if cfg.Frontend.RequestTimeout > 0 {
		clientOpts = append(clientOpts, apiclient.WithTimeout(cfg.Frontend.RequestTimeout))
	}
	backendURL := cfg.Frontend.BackendURL
	if a.backendListener != nil {
		backendURL = "http://" + a.backendListener.Addr().String()
	}
	client, err := apiclient.New(backendURL, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: init api client: %w", err)
	}

	// ── 3. Sessions ──────────────────────────────────────────────────────
	a.store = session.NewStore(session.StoreConfig{
		IdleTimeout: cfg.Session.IdleTimeout,
		OnCountChange: func(delta int) {
			a.metrics.ActiveSessions.Add(context.Background(), int64(delta))
		},
	})

	// ── 4. Front end ─────────────────────────────────────────────────────
	site := web.NewServer(web.Config{
		Store:          a.store,
		Presenter:      presenter.New(client, a.metrics),
		Health:         health.New(health.HTTPProbe("backend", client.BaseURL()+"/healthz", nil)),
		Metrics:        a.metrics,
		MetricsHandler: a.metricsHandler,
	})
	a.webServer = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           site,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Service returns the in-process backend service, or nil when the backend is
// disabled.
func (a *App) Service() *backend.Service { return a.service }

// Run serves the front end, the backend API (when enabled) and the session
// sweeper until ctx is cancelled, then shuts the listeners down gracefully.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return serve(a.webServer, a.webListener, "web") })
	if a.backendServer != nil {
		g.Go(func() error { return serve(a.backendServer, a.backendListener, "backend") })
	}
	g.Go(func() error {
		a.store.Run(gctx, 0)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	slog.Info("app running",
		"web", addrOf(a.webServer, a.webListener),
		"backend_enabled", a.backendServer != nil)
	return g.Wait()
}

// Shutdown stops both HTTP servers. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		if err := a.webServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("web: %w", err))
		}
		if a.backendServer != nil {
			if err := a.backendServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("backend: %w", err))
			}
		}
		slog.Info("shutdown complete")
	})
	return errors.Join(errs...)
}

func serve(srv *http.Server, l net.Listener, name string) error {
	var err error
	if l != nil {
		err = srv.Serve(l)
	} else {
		slog.Info("listening", "server", name, "addr", srv.Addr)
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("app: %s server: %w", name, err)
}

func addrOf(srv *http.Server, l net.Listener) string {
	if l != nil {
		return l.Addr().String()
	}
	return srv.Addr
}
