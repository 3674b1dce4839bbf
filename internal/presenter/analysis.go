package presenter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/storylens/internal/narrative"
	"github.com/MrWong99/storylens/internal/observe"
	"github.com/MrWong99/storylens/internal/session"
)

// ErrNoAnalysis is returned by [Export] before any analysis succeeded.
var ErrNoAnalysis = errors.New("no analysis to export")

// RunAnalysis analyzes story and extracts its characters. On success the
// first character becomes active, the transcript is reset and chat is
// enabled. On any failure the previous analysis is cleared and chat is
// disabled.
func (p *Presenter) RunAnalysis(ctx context.Context, st *session.State, story string) (err error) {
	if !st.Analyzing.TryAcquire() {
		return ErrBusy
	}
	defer st.Analyzing.Release()
	ctx = observe.WithSession(ctx, st.ID())

	st.SetStory(story)
	trimmed := strings.TrimSpace(story)
	if n := utf8.RuneCountInString(trimmed); n < MinStoryLength {
		return fail(ctx, st, "analyze", invalid(
			"Please enter a longer story (at least %d characters, currently %d).", MinStoryLength, n))
	}

	ctx, span := observe.StartSpan(ctx, "presenter.RunAnalysis")
	defer span.End()
	start := time.Now()
	defer func() {
		observe.ObserveSince(ctx, p.metrics.AnalysisDuration, start, observe.Attr("status", observe.Status(err)))
	}()

	analysis, names, err := p.analyze(ctx, trimmed)
	if err != nil {
		st.SetAnalysis(nil, "")
		st.SetCharacters(nil)
		st.ResetTranscript()
		st.EnableChat(false)
		span.RecordError(err)
		return fail(ctx, st, "analyze", err)
	}

	chars := narrative.Characters(names)
	st.SetAnalysis(analysis, trimmed)
	st.SetCharacters(chars)
	st.ResetTranscript()
	st.EnableChat(true)
	st.SetStatus(session.Status{
		Kind: session.StatusSuccess,
		Text: fmt.Sprintf("Analysis complete. %d characters are ready to chat.", len(chars)),
	})
	observe.Logger(ctx).Info("story analyzed",
		"characters", len(chars),
		"duration", time.Since(start))
	return nil
}

func (p *Presenter) analyze(ctx context.Context, story string) (*narrative.Analysis, []string, error) {
	raw, err := p.backend.Analyze(ctx, story)
	if err != nil {
		return nil, nil, err
	}
	analysis, err := narrative.ParseAnalysis(raw)
	if err != nil {
		return nil, nil, err
	}
	names, err := p.backend.ExtractCharacters(ctx, story)
	if err != nil {
		return nil, nil, err
	}
	return analysis, names, nil
}

// ExportFileName returns the download name for an export made at now.
func ExportFileName(now time.Time) string {
	return "narrative-analysis-" + now.Format("2006-01-02") + ".json"
}

// Export serializes the last analysis as indented JSON.
func Export(st *session.State, now time.Time) (name string, data []byte, err error) {
	a := st.Analysis()
	if a == nil {
		st.SetStatus(session.Status{Kind: session.StatusError, Text: "Run an analysis before exporting."})
		return "", nil, ErrNoAnalysis
	}
	data, err = json.MarshalIndent(a.Points, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("presenter: encode export: %w", err)
	}
	return ExportFileName(now), data, nil
}
