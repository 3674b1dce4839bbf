package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrWong99/storylens/internal/health"
	"github.com/MrWong99/storylens/internal/observe"
)

// maxBodyBytes bounds a request body.
const maxBodyBytes = 4 << 20

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// NewHandler returns the backend's HTTP API:
//
//	POST /analyze             AnalyzeRequest  -> AnalyzeResponse
//	POST /extract_characters  ExtractRequest  -> ExtractResponse
//	POST /search_excerpt      SearchRequest   -> SearchResponse
//	POST /chat                ChatRequest     -> ChatResponse
//	GET  /healthz, /readyz
//
// Invalid input answers 400 with the validation message; model failures
// answer 500.
func NewHandler(svc *Service, hc *health.Handler, m *observe.Metrics) http.Handler {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	if hc == nil {
		hc = health.New()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(m))

	r.Post("/analyze", endpoint(svc.Analyze, func(err error) string {
		return "An error occurred during analysis: " + err.Error()
	}))
	r.Post("/extract_characters", endpoint(svc.ExtractCharacters, func(error) string {
		return "An error occurred during character extraction."
	}))
	r.Post("/search_excerpt", endpoint(svc.SearchExcerpt, func(err error) string {
		return "An error occurred during search/excerpt retrieval: " + err.Error()
	}))
	r.Post("/chat", endpoint(svc.Chat, func(err error) string {
		return "An error occurred during character chat: " + err.Error()
	}))
	hc.Register(r)
	return r
}

// endpoint adapts a service operation to an HTTP handler. failMsg formats
// the 500 message for errors other than *InputError.
func endpoint[Req, Resp any](op func(context.Context, Req) (Resp, error), failMsg func(error) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
			return
		}

		resp, err := op(r.Context(), req)
		if err != nil {
			var ie *InputError
			if errors.As(err, &ie) {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: ie.Message})
				return
			}
			observe.Logger(r.Context()).Error("backend request failed", "path", r.URL.Path, "err", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: failMsg(err)})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
