// Package web serves the StoryLens browser front end. Pages are rendered on
// the server from a [presenter.Page]; every form POST runs one presenter
// action and redirects back to the page.
package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/storylens/internal/health"
	"github.com/MrWong99/storylens/internal/observe"
	"github.com/MrWong99/storylens/internal/presenter"
	"github.com/MrWong99/storylens/internal/session"
	"github.com/MrWong99/storylens/internal/view"
)

// maxFormBytes bounds a posted form. Stories are plain text; a novel is a
// few megabytes.
const maxFormBytes = 4 << 20

// Config holds the dependencies of a [Server].
type Config struct {
	Store     *session.Store
	Presenter *presenter.Presenter
	Health    *health.Handler
	Metrics   *observe.Metrics

	// MetricsHandler serves /metrics. Defaults to promhttp.Handler().
	MetricsHandler http.Handler

	// Now overrides the clock used for export file names; tests only.
	Now func() time.Time
}

// Server is the front-end HTTP handler.
type Server struct {
	store     *session.Store
	presenter *presenter.Presenter
	now       func() time.Time
	router    chi.Router
}

// NewServer builds the router.
func NewServer(cfg Config) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	s := &Server{store: cfg.Store, presenter: cfg.Presenter, now: cfg.Now}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(cfg.Metrics))

	r.Get("/", s.handleIndex)
	r.Post("/view/{name}", s.handleView)
	r.Post("/analyze", s.handleAnalyze)
	r.Post("/search", s.handleSearch)
	r.Post("/search/use", s.handleUseExcerpt)
	r.Post("/characters/select", s.handleSelectCharacter)
	r.Post("/chat", s.handleChat)
	r.Get("/export", s.handleExport)

	cfg.Health.Register(r)
	r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)

	s.router = r
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.store.FromRequest(w, r)
	page := presenter.Render(st.Snapshot(), st.View.Take())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := Layout(page).Render(r.Context(), w); err != nil {
		observe.Logger(r.Context()).Error("render page", "err", err)
	}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	st := s.store.FromRequest(w, r)
	if err := st.View.Switch(chi.URLParam(r, "name")); err != nil {
		st.SetStatus(session.Status{Kind: session.StatusError, Text: "That page does not exist."})
	}
	redirectHome(w, r)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	st := s.store.FromRequest(w, r)
	if story, ok := formValue(w, r, st, "story"); ok {
		_ = s.presenter.RunAnalysis(r.Context(), st, story)
	}
	redirectHome(w, r)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	st := s.store.FromRequest(w, r)
	if query, ok := formValue(w, r, st, "query"); ok {
		_ = s.presenter.SearchExcerpt(r.Context(), st, query)
	}
	redirectHome(w, r)
}

func (s *Server) handleUseExcerpt(w http.ResponseWriter, r *http.Request) {
	st := s.store.FromRequest(w, r)
	_ = presenter.UseExcerpt(st)
	redirectHome(w, r)
}

func (s *Server) handleSelectCharacter(w http.ResponseWriter, r *http.Request) {
	st := s.store.FromRequest(w, r)
	if name, ok := formValue(w, r, st, "name"); ok {
		if presenter.SelectCharacter(st, name) == nil {
			_ = st.View.Switch(string(view.Chat))
		}
	}
	redirectHome(w, r)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	st := s.store.FromRequest(w, r)
	if msg, ok := formValue(w, r, st, "message"); ok {
		_ = s.presenter.SendMessage(r.Context(), st, msg)
	}
	_ = st.View.Switch(string(view.Chat))
	redirectHome(w, r)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	st := s.store.FromRequest(w, r)
	name, data, err := presenter.Export(st, s.now())
	if err != nil {
		if !errors.Is(err, presenter.ErrNoAnalysis) {
			observe.Logger(r.Context()).Error("export analysis", "err", err)
			st.SetStatus(presenter.StatusFor(err))
		}
		redirectHome(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// formValue reads a single form field. An oversized or malformed form sets
// an error status and reports false.
func formValue(w http.ResponseWriter, r *http.Request, st *session.State, key string) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		st.SetStatus(session.Status{Kind: session.StatusError, Text: "The form could not be read. Is the text too large?"})
		return "", false
	}
	return r.PostForm.Get(key), true
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
