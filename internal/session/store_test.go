package session

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// TestStore_CreateGet checks that created sessions can be looked up.
func TestStore_CreateGet(t *testing.T) {
	s := NewStore(StoreConfig{})
	st := s.Create()
	if st.ID() == "" {
		t.Fatal("empty session ID")
	}
	got, ok := s.Get(st.ID())
	if !ok || got != st {
		t.Fatal("Get did not return the created session")
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get returned a session for an unknown ID")
	}
}

// TestStore_Sweep checks idle expiry and the count callback.
func TestStore_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var delta int
	s := NewStore(StoreConfig{
		IdleTimeout:   time.Minute,
		Now:           clock.Now,
		OnCountChange: func(d int) { delta += d },
	})

	old := s.Create()
	clock.Advance(45 * time.Second)
	fresh := s.Create()
	clock.Advance(30 * time.Second)

	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := s.Get(old.ID()); ok {
		t.Error("idle session survived sweep")
	}
	if _, ok := s.Get(fresh.ID()); !ok {
		t.Error("fresh session was swept")
	}
	if delta != 1 {
		t.Errorf("net count delta = %d, want 1", delta)
	}
}

// TestStore_SweepKeepsBusy checks that a session with work in flight is not expired.
func TestStore_SweepKeepsBusy(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewStore(StoreConfig{IdleTimeout: time.Minute, Now: clock.Now})
	st := s.Create()
	st.Analyzing.TryAcquire()
	clock.Advance(time.Hour)

	if removed := s.Sweep(); removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

// TestStore_FromRequest checks cookie issuance and reuse.
func TestStore_FromRequest(t *testing.T) {
	s := NewStore(StoreConfig{})

	rec := httptest.NewRecorder()
	first := s.FromRequest(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	second := s.FromRequest(rec, req)
	if second != first {
		t.Error("cookie did not resolve to the same session")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("cookie re-issued for a live session")
	}
}

// TestStore_FromRequestExpired checks that a stale cookie gets a new session.
func TestStore_FromRequestExpired(t *testing.T) {
	s := NewStore(StoreConfig{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "gone"})
	rec := httptest.NewRecorder()
	st := s.FromRequest(rec, req)
	if st.ID() == "gone" {
		t.Error("reused an unknown session ID")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}
