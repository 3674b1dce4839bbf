package presenter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrWong99/storylens/internal/narrative"
	"github.com/MrWong99/storylens/internal/observe"
	"github.com/MrWong99/storylens/internal/session"
)

// SelectCharacter makes name the active character and starts a fresh
// conversation with them.
func SelectCharacter(st *session.State, name string) error {
	if err := st.SelectCharacter(name); err != nil {
		if errors.Is(err, session.ErrUnknownCharacter) {
			err = invalid("%q is not a character of this story.", name)
		}
		st.SetStatus(StatusFor(err))
		return err
	}
	st.SetStatus(session.Status{Kind: session.StatusInfo, Text: "You are now talking to " + name + "."})
	return nil
}

// SendMessage appends text to the transcript and asks the backend for the
// active character's reply. The user's message stays in the transcript even
// when the reply fails.
func (p *Presenter) SendMessage(ctx context.Context, st *session.State, text string) (err error) {
	if !st.Chatting.TryAcquire() {
		return ErrBusy
	}
	defer st.Chatting.Release()
	ctx = observe.WithSession(ctx, st.ID())

	text = strings.TrimSpace(text)
	story := st.AnalyzedStory()
	active := st.ActiveCharacter()
	switch {
	case text == "":
		return fail(ctx, st, "chat", invalid("Type a message first."))
	case story == "" || !st.ChatEnabled():
		return fail(ctx, st, "chat", invalid("Analyze a story before chatting with its characters."))
	case active == "":
		return fail(ctx, st, "chat", invalid("Select a character to talk to."))
	}

	ctx, span := observe.StartSpan(ctx, "presenter.SendMessage")
	defer span.End()
	start := time.Now()
	defer func() {
		observe.ObserveSince(ctx, p.metrics.ChatDuration, start, observe.Attr("status", observe.Status(err)))
	}()

	gen := st.AppendMessage(narrative.ChatMessage{Role: narrative.RoleUser, Text: text})
	st.View.RequestScroll()

	reply, err := p.backend.Chat(ctx, story, st.Transcript(), active)
	if err != nil {
		span.RecordError(err)
		return fail(ctx, st, "chat", err)
	}

	if st.AppendReply(gen, narrative.ChatMessage{Role: narrative.RoleModel, Text: reply}) {
		p.metrics.RecordChatMessage(ctx, active)
	} else {
		observe.Logger(ctx).Debug("dropped reply for a reset transcript", "character", active)
	}
	st.SetStatus(session.Status{})
	return nil
}
