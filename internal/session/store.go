package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CookieName is the cookie carrying the session ID.
const CookieName = "storylens_session"

// DefaultIdleTimeout applies when a [Store] is created with a zero timeout.
const DefaultIdleTimeout = 2 * time.Hour

// StoreConfig configures a [Store].
type StoreConfig struct {
	// IdleTimeout is how long a session may go untouched before Sweep
	// discards it. Defaults to [DefaultIdleTimeout].
	IdleTimeout time.Duration

	// SecureCookie marks the session cookie Secure (HTTPS only).
	SecureCookie bool

	// OnCountChange, if set, receives the change in live sessions (+1 on
	// create, -n on sweep). Used to drive the active-sessions gauge.
	OnCountChange func(delta int)

	// Now overrides the clock; tests only.
	Now func() time.Time
}

// Store owns every live session in memory. Nothing is persisted; a restart
// forgets all sessions.
type Store struct {
	idleTimeout   time.Duration
	secure        bool
	onCountChange func(int)
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*State
}

// NewStore creates an empty Store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		idleTimeout:   cfg.IdleTimeout,
		secure:        cfg.SecureCookie,
		onCountChange: cfg.OnCountChange,
		now:           cfg.Now,
		sessions:      make(map[string]*State),
	}
}

// Get returns the session with the given ID, refreshing its idle timer.
func (s *Store) Get(id string) (*State, bool) {
	s.mu.Lock()
	st, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		st.touch(s.now())
	}
	return st, ok
}

// Create registers a fresh session under a random ID.
func (s *Store) Create() *State {
	st := NewState(uuid.NewString())
	st.touch(s.now())

	s.mu.Lock()
	s.sessions[st.id] = st
	s.mu.Unlock()

	if s.onCountChange != nil {
		s.onCountChange(1)
	}
	slog.Debug("session created", "session_id", st.id)
	return st
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep discards sessions idle longer than the idle timeout and returns how
// many were removed. Sessions with an operation in flight are kept.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.idleTimeout)

	s.mu.Lock()
	removed := 0
	for id, st := range s.sessions {
		if st.Analyzing.Held() || st.Searching.Held() || st.Chatting.Held() {
			continue
		}
		if st.idleSince().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		if s.onCountChange != nil {
			s.onCountChange(-removed)
		}
		slog.Info("expired idle sessions", "removed", removed)
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled. A non-positive interval
// defaults to a quarter of the idle timeout.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.idleTimeout / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// FromRequest returns the session named by r's cookie, creating one (and
// setting the cookie on w) when the cookie is missing or its session has
// expired.
func (s *Store) FromRequest(w http.ResponseWriter, r *http.Request) *State {
	if c, err := r.Cookie(CookieName); err == nil {
		if st, ok := s.Get(c.Value); ok {
			return st
		}
	}
	st := s.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    st.id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return st
}
