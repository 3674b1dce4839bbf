// Package backend is the analysis service: it turns stories into narrative
// analyses, extracts characters, finds excerpts and voices characters in
// chat, all by prompting an [llm.Provider].
//
// [Service] holds the operations; [Handler] exposes them as the JSON HTTP
// API the web front end calls. The MCP server reuses the same Service.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/storylens/internal/observe"
	"github.com/MrWong99/storylens/pkg/provider/llm"
)

// Config configures a [Service].
type Config struct {
	// LLM answers every prompt. Required.
	LLM llm.Provider

	// ProviderName labels provider metrics.
	ProviderName string

	// RequestsPerSecond and Burst bound outbound model calls across all
	// clients. A zero RequestsPerSecond disables limiting.
	RequestsPerSecond float64
	Burst             int

	Metrics *observe.Metrics
}

// Service implements the backend operations. It is stateless apart from the
// shared rate limiter and safe for concurrent use.
type Service struct {
	llm      llm.Provider
	provider string
	limiter  *rate.Limiter
	metrics  *observe.Metrics
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("backend: LLM provider is required")
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "llm"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	return &Service{
		llm:      cfg.LLM,
		provider: cfg.ProviderName,
		limiter:  limiter,
		metrics:  cfg.Metrics,
	}, nil
}

// complete sends one request to the model after waiting for the rate
// limiter, and returns the trimmed reply.
func (s *Service) complete(ctx context.Context, endpoint string, req llm.CompletionRequest) (string, error) {
	ctx, span := observe.StartSpan(ctx, "backend."+endpoint)
	defer span.End()

	waitStart := time.Now()
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(waitStart); waited > 100*time.Millisecond {
		observe.Logger(ctx).Debug("rate limited model call", "endpoint", endpoint, "waited", waited)
	}

	start := time.Now()
	resp, err := s.llm.Complete(ctx, req)
	if err == nil && resp == nil {
		err = errors.New("empty response from model")
	}
	observe.ObserveSince(ctx, s.metrics.LLMDuration, start, observe.Attr("endpoint", endpoint))
	s.metrics.RecordProviderRequest(ctx, s.provider, "llm", observe.Status(err))
	if err != nil {
		s.metrics.RecordProviderError(ctx, s.provider, "llm")
		span.RecordError(err)
		return "", err
	}

	observe.Logger(ctx).Debug("model call completed",
		"endpoint", endpoint,
		"duration", time.Since(start),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return strings.TrimSpace(resp.Content), nil
}
