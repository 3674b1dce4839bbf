package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/storylens/internal/apiclient"
	"github.com/MrWong99/storylens/internal/health"
	"github.com/MrWong99/storylens/internal/narrative"
	"github.com/MrWong99/storylens/internal/observe"
	"github.com/MrWong99/storylens/internal/presenter"
	"github.com/MrWong99/storylens/internal/session"
)

type stubBackend struct {
	mu         sync.Mutex
	analyzeN   int
	characters []string
	reply      string
}

func (b *stubBackend) Analyze(context.Context, string) (string, error) {
	b.mu.Lock()
	b.analyzeN++
	b.mu.Unlock()
	points := make([]narrative.AnalysisPoint, narrative.BeatCount)
	for i := range points {
		points[i] = narrative.AnalysisPoint{
			KeyEvent:       "Beat event " + narrative.Beats[i],
			CharacterFocus: "Mina",
			Tension:        narrative.Metric{Score: 10 * (i + 1), Summary: "rising"},
			Pacing:         narrative.Metric{Score: 50, Summary: "steady"},
			Agency:         narrative.Metric{Score: 80, Summary: "strong"},
			Resonance:      narrative.Metric{Score: 30, Summary: "quiet"},
		}
	}
	data, _ := json.Marshal(points)
	return string(data), nil
}

func (b *stubBackend) ExtractCharacters(context.Context, string) ([]string, error) {
	return b.characters, nil
}

func (b *stubBackend) SearchExcerpt(context.Context, string) (apiclient.Excerpt, error) {
	return apiclient.Excerpt{Excerpt: "It was..."}, nil
}

func (b *stubBackend) Chat(context.Context, string, []narrative.ChatMessage, string) (string, error) {
	return b.reply, nil
}

func (b *stubBackend) analyzeCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.analyzeN
}

// newTestSite starts the front end over a stub backend and returns a client
// that keeps the session cookie and follows redirects.
func newTestSite(t *testing.T, b *stubBackend) (*httptest.Server, *http.Client) {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	srv := NewServer(Config{
		Store:          session.NewStore(session.StoreConfig{}),
		Presenter:      presenter.New(b, m),
		Health:         health.New(),
		Metrics:        m,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "# metrics") }),
		Now:            func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) },
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, _ := cookiejar.New(nil)
	return ts, &http.Client{Jar: jar}
}

func get(t *testing.T, c *http.Client, u string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func post(t *testing.T, c *http.Client, u string, form url.Values) string {
	t.Helper()
	resp, err := c.PostForm(u, form)
	if err != nil {
		t.Fatalf("POST %s: %v", u, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST %s: final status %d", u, resp.StatusCode)
	}
	return string(body)
}

var story = strings.Repeat("Jonathan travels east to the castle. ", 5)

// TestIndex_DefaultView checks the first page load.
func TestIndex_DefaultView(t *testing.T) {
	ts, c := newTestSite(t, &stubBackend{})
	resp, body := get(t, c, ts.URL+"/")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	u, _ := url.Parse(ts.URL)
	if len(c.Jar.Cookies(u)) != 1 {
		t.Error("session cookie not set")
	}
	for _, want := range []string{`<section id="analysis-view">`, `<section id="chat-view" hidden>`, `<section id="about-view" hidden>`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

// TestView_Switch checks navigation and rejection of unknown views.
func TestView_Switch(t *testing.T) {
	ts, c := newTestSite(t, &stubBackend{})

	body := post(t, c, ts.URL+"/view/about", nil)
	if !strings.Contains(body, `<section id="about-view">`) || !strings.Contains(body, `<section id="analysis-view" hidden>`) {
		t.Error("about view not shown")
	}

	body = post(t, c, ts.URL+"/view/settings", nil)
	if !strings.Contains(body, `<section id="about-view">`) {
		t.Error("unknown view changed the visible view")
	}
	if !strings.Contains(body, "That page does not exist.") {
		t.Error("no error status for unknown view")
	}
}

// TestAnalyze_ShortStory checks that the backend is not called for short input.
func TestAnalyze_ShortStory(t *testing.T) {
	b := &stubBackend{}
	ts, c := newTestSite(t, b)

	body := post(t, c, ts.URL+"/analyze", url.Values{"story": {"too short"}})
	if b.analyzeCalls() != 0 {
		t.Error("backend called for a short story")
	}
	if !strings.Contains(body, "at least 100 characters") {
		t.Error("validation message not shown")
	}
	if !strings.Contains(body, "too short</textarea>") {
		t.Error("story input not preserved")
	}
}

// TestAnalyze_ThenChat walks through analysis, export and one chat turn.
func TestAnalyze_ThenChat(t *testing.T) {
	b := &stubBackend{characters: []string{"Mina Harker", "Count Dracula"}, reply: "Hello *traveler*"}
	ts, c := newTestSite(t, b)

	body := post(t, c, ts.URL+"/analyze", url.Values{"story": {story}})
	for _, want := range []string{`<svg class="chart"`, `<article class="card"><h3>Start</h3>`, `Climax/End`, `<span class="score high">80</span>`, `href="/export"`} {
		if !strings.Contains(body, want) {
			t.Errorf("analysis page missing %q", want)
		}
	}

	resp, data := get(t, c, ts.URL+"/export")
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="narrative-analysis-2026-10-19.json"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	var exported []map[string]any
	if err := json.Unmarshal([]byte(data), &exported); err != nil || len(exported) != narrative.BeatCount {
		t.Errorf("export = %v (%v)", len(exported), err)
	}

	body = post(t, c, ts.URL+"/chat", url.Values{"message": {"Hello"}})
	if !strings.Contains(body, `<section id="chat-view">`) {
		t.Error("chat view not shown after sending")
	}
	if !strings.Contains(body, `<div class="bubble user">Hello</div>`) {
		t.Error("user bubble missing")
	}
	if !strings.Contains(body, "<em>traveler</em>") {
		t.Error("model reply not rendered as markdown")
	}
	if !strings.Contains(body, `👩 Mina Harker`) {
		t.Error("active character icon missing")
	}
	if !strings.Contains(body, "scrollTop") {
		t.Error("scroll hint missing")
	}

	body = post(t, c, ts.URL+"/characters/select", url.Values{"name": {"Count Dracula"}})
	if strings.Contains(body, `class="bubble user"`) {
		t.Error("transcript not cleared after switching character")
	}
	if !strings.Contains(body, `class="character active"><span class="icon">🧛</span> Count Dracula`) {
		t.Error("selected character not highlighted")
	}
}

// TestExport_NoAnalysis checks that export without an analysis redirects with an error.
func TestExport_NoAnalysis(t *testing.T) {
	ts, c := newTestSite(t, &stubBackend{})
	resp, body := get(t, c, ts.URL+"/export")
	if resp.Header.Get("Content-Disposition") != "" {
		t.Error("file served without analysis")
	}
	if !strings.Contains(body, "Run an analysis before exporting.") {
		t.Error("error status not shown")
	}
}

// TestSearch_ShowsExcerpt checks the excerpt review panel.
func TestSearch_ShowsExcerpt(t *testing.T) {
	ts, c := newTestSite(t, &stubBackend{})
	body := post(t, c, ts.URL+"/search", url.Values{"query": {"Chapter 5 of Dracula"}})
	if !strings.Contains(body, `<blockquote>It was...</blockquote>`) {
		t.Error("excerpt not shown")
	}
	body = post(t, c, ts.URL+"/search/use", nil)
	if !strings.Contains(body, `It was...</textarea>`) {
		t.Error("excerpt not copied into story")
	}
}

// TestOperationalRoutes checks health and metrics wiring.
func TestOperationalRoutes(t *testing.T) {
	ts, c := newTestSite(t, &stubBackend{})
	for path, want := range map[string]string{"/healthz": `"status":"ok"`, "/readyz": `"status":"ok"`, "/metrics": "# metrics"} {
		resp, body := get(t, c, ts.URL+path)
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, want) {
			t.Errorf("%s: status %d body %q", path, resp.StatusCode, body)
		}
	}
}
