package backend

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/storylens/pkg/provider/llm/mock"
)

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s: body is not JSON: %q", path, rec.Body.String())
	}
	return rec, out
}

// ─── Input errors ─────────────────────────────────────────────────────────────

// TestHandler_BadRequests checks the 400 messages for each endpoint.
func TestHandler_BadRequests(t *testing.T) {
	h := NewHandler(newService(t, reply("unused")), nil, nil)
	tests := []struct {
		path, body, want string
	}{
		{path: "/analyze", body: `{"text":"too short"}`, want: "Text too short for analysis (minimum 100 characters)"},
		{path: "/analyze", body: `{}`, want: "Text too short for analysis (minimum 100 characters)"},
		{path: "/extract_characters", body: `{"text":"short"}`, want: "Text too short for character extraction"},
		{path: "/search_excerpt", body: `{"query":"abc"}`, want: "Query too short (minimum 5 characters)"},
		{path: "/chat", body: `{"history":[],"activeCharacter":"Mina"}`, want: "Missing story context"},
		{path: "/chat", body: `{"story":"a story","history":[]}`, want: "Missing activeCharacter"},
		{path: "/chat", body: `not json`, want: "Invalid JSON body"},
		{path: "/analyze", body: ``, want: "Invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.path+" "+tt.body, func(t *testing.T) {
			rec, out := post(t, h, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if out["error"] != tt.want {
				t.Errorf("error = %v, want %q", out["error"], tt.want)
			}
		})
	}
}

// ─── Model failures ───────────────────────────────────────────────────────────

// TestHandler_ServerErrors checks the 500 message of every endpoint.
func TestHandler_ServerErrors(t *testing.T) {
	h := NewHandler(newService(t, &mock.Provider{CompleteErr: errors.New("boom")}), nil, nil)
	chat := `{"story":"a story","history":[{"role":"user","parts":[{"text":"Hi"}]}],"activeCharacter":"Mina"}`
	tests := []struct {
		path, body, want string
	}{
		{path: "/analyze", body: `{"text":"` + strings.Repeat("a", 120) + `"}`, want: "An error occurred during analysis: boom"},
		{path: "/extract_characters", body: `{"text":"` + strings.Repeat("a", 60) + `"}`, want: "An error occurred during character extraction."},
		{path: "/search_excerpt", body: `{"query":"Chapter 5 of Dracula"}`, want: "An error occurred during search/excerpt retrieval: boom"},
		{path: "/chat", body: chat, want: "An error occurred during character chat: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, out := post(t, h, tt.path, tt.body)
			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}
			if out["error"] != tt.want {
				t.Errorf("error = %v, want %q", out["error"], tt.want)
			}
		})
	}
}

// TestHandler_AnalyzeWrongCount checks that a malformed model reply is a 500.
func TestHandler_AnalyzeWrongCount(t *testing.T) {
	h := NewHandler(newService(t, reply(pointsJSON(6))), nil, nil)
	rec, out := post(t, h, "/analyze", `{"text":"`+strings.Repeat("a", 120)+`"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg, _ := out["error"].(string); !strings.Contains(msg, "expected 7 analysis points, got 6") {
		t.Errorf("error = %q", msg)
	}
}

// ─── Success ──────────────────────────────────────────────────────────────────

func TestHandler_Success(t *testing.T) {
	t.Run("analyze", func(t *testing.T) {
		h := NewHandler(newService(t, reply(pointsJSON(7))), nil, nil)
		rec, out := post(t, h, "/analyze", `{"text":"`+strings.Repeat("a", 120)+`"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		raw, _ := out["analysis"].(string)
		var points []map[string]any
		if err := json.Unmarshal([]byte(raw), &points); err != nil || len(points) != 7 {
			t.Errorf("analysis = %q (%v)", raw, err)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("content type = %q", ct)
		}
	})

	t.Run("extract_characters", func(t *testing.T) {
		h := NewHandler(newService(t, reply("Mina, Jonathan")), nil, nil)
		_, out := post(t, h, "/extract_characters", `{"text":"`+strings.Repeat("a", 60)+`"}`)
		chars, _ := out["characters"].([]any)
		if len(chars) != 2 || chars[0] != "Mina" {
			t.Errorf("characters = %v", out["characters"])
		}
	})

	t.Run("search_excerpt", func(t *testing.T) {
		h := NewHandler(newService(t, reply("It was night.\nSources:\n- [Dracula](https://www.gutenberg.org/ebooks/345)")), nil, nil)
		_, out := post(t, h, "/search_excerpt", `{"query":"Chapter 5 of Dracula"}`)
		if out["excerpt"] != "It was night." {
			t.Errorf("excerpt = %v", out["excerpt"])
		}
		sources, _ := out["sources"].([]any)
		if len(sources) != 1 {
			t.Fatalf("sources = %v", out["sources"])
		}
		if src := sources[0].(map[string]any); src["title"] != "Dracula" || src["uri"] != "https://www.gutenberg.org/ebooks/345" {
			t.Errorf("source = %v", src)
		}
	})

	t.Run("chat", func(t *testing.T) {
		h := NewHandler(newService(t, reply("Hello traveler")), nil, nil)
		_, out := post(t, h, "/chat",
			`{"story":"a story","history":[{"role":"user","parts":[{"text":"Hello"}]}],"activeCharacter":"Mina"}`)
		if out["response"] != "Hello traveler" {
			t.Errorf("response = %v", out["response"])
		}
	})
}

// TestHandler_Healthz checks that the health routes are mounted.
func TestHandler_Healthz(t *testing.T) {
	h := NewHandler(newService(t, reply("")), nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}
