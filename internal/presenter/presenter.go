// Package presenter implements the user actions of the web front end. Each
// action validates its input, calls the analysis backend through a
// [Backend], and records the outcome in the caller's [session.State].
//
// Errors never escape as failures of the page: every action converts them to
// the session's status line and also returns them so handlers can log.
package presenter

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/storylens/internal/apiclient"
	"github.com/MrWong99/storylens/internal/narrative"
	"github.com/MrWong99/storylens/internal/observe"
	"github.com/MrWong99/storylens/internal/session"
)

// Input minimums, counted in characters after trimming.
const (
	MinStoryLength = 100
	MinQueryLength = 5
)

// ErrBusy is returned when the same action is already running for the
// session. No status is set; the second request is simply ignored.
var ErrBusy = errors.New("presenter: operation already in progress")

// ValidationError reports input rejected before any backend call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Backend is the analysis service as seen by the presenters.
// [*apiclient.Client] satisfies it.
type Backend interface {
	Analyze(ctx context.Context, text string) (string, error)
	ExtractCharacters(ctx context.Context, text string) ([]string, error)
	SearchExcerpt(ctx context.Context, query string) (apiclient.Excerpt, error)
	Chat(ctx context.Context, story string, history []narrative.ChatMessage, activeCharacter string) (string, error)
}

var _ Backend = (*apiclient.Client)(nil)

// Presenter runs user actions against a Backend. It holds no per-user state
// and is safe for concurrent use.
type Presenter struct {
	backend Backend
	metrics *observe.Metrics
}

// New creates a Presenter. A nil metrics uses [observe.DefaultMetrics].
func New(backend Backend, metrics *observe.Metrics) *Presenter {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Presenter{backend: backend, metrics: metrics}
}

// StatusFor converts an action error into the user-visible status line.
func StatusFor(err error) session.Status {
	var (
		ve *ValidationError
		se *narrative.StructureError
		ne *apiclient.NetworkError
		sv *apiclient.ServerError
	)
	switch {
	case errors.As(err, &ve):
		return session.Status{Kind: session.StatusError, Text: ve.Message}
	case errors.As(err, &se):
		if se.Got < 0 {
			return session.Status{Kind: session.StatusError, Text: "The analysis service returned data that could not be read. Please try again."}
		}
		return session.Status{Kind: session.StatusError, Text: fmt.Sprintf(
			"The analysis service returned %d points instead of %d. Please try again.", se.Got, narrative.BeatCount)}
	case errors.As(err, &sv):
		return session.Status{Kind: session.StatusError, Text: sv.Message}
	case errors.As(err, &ne):
		return session.Status{Kind: session.StatusError, Text: "Could not reach the analysis service. Check your connection and try again."}
	default:
		return session.Status{Kind: session.StatusError, Text: err.Error()}
	}
}

func fail(ctx context.Context, st *session.State, action string, err error) error {
	st.SetStatus(StatusFor(err))
	var ve *ValidationError
	if errors.As(err, &ve) {
		observe.Logger(ctx).Debug("rejected input", "action", action, "reason", ve.Message)
	} else {
		observe.Logger(ctx).Warn("action failed", "action", action, "err", err)
	}
	return err
}
