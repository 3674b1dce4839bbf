package presenter

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/storylens/internal/observe"
	"github.com/MrWong99/storylens/internal/session"
)

// SearchExcerpt looks up a passage for query and holds it for review. An
// empty result clears the review panel and reports that nothing was found.
func (p *Presenter) SearchExcerpt(ctx context.Context, st *session.State, query string) (err error) {
	if !st.Searching.TryAcquire() {
		return ErrBusy
	}
	defer st.Searching.Release()
	ctx = observe.WithSession(ctx, st.ID())

	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return fail(ctx, st, "search", invalid(
			"Please enter a more specific search (at least %d characters).", MinQueryLength))
	}

	ctx, span := observe.StartSpan(ctx, "presenter.SearchExcerpt")
	defer span.End()
	start := time.Now()
	defer func() {
		observe.ObserveSince(ctx, p.metrics.SearchDuration, start, observe.Attr("status", observe.Status(err)))
	}()

	res, err := p.backend.SearchExcerpt(ctx, query)
	if err != nil {
		span.RecordError(err)
		return fail(ctx, st, "search", err)
	}

	text := strings.TrimSpace(res.Excerpt)
	if text == "" {
		st.SetExcerpt(nil)
		st.SetStatus(session.Status{Kind: session.StatusInfo, Text: "No matching excerpt was found. Try a different description."})
		return nil
	}

	ex := &session.Excerpt{Query: query, Text: text}
	for _, s := range res.Sources {
		ex.Sources = append(ex.Sources, session.Source{Title: s.Title, URI: s.URI})
	}
	st.SetExcerpt(ex)
	st.SetStatus(session.Status{Kind: session.StatusSuccess, Text: "Excerpt found. Review it below, then use it as your story."})
	return nil
}

// UseExcerpt copies the excerpt under review into the story input and
// closes the review panel.
func UseExcerpt(st *session.State) error {
	ex := st.Excerpt()
	if ex == nil {
		err := invalid("There is no excerpt to use. Search for one first.")
		st.SetStatus(StatusFor(err))
		return err
	}
	st.SetStory(ex.Text)
	st.SetExcerpt(nil)
	st.SetStatus(session.Status{Kind: session.StatusInfo, Text: "Excerpt copied into the story. Run the analysis when ready."})
	return nil
}
