package web

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/MrWong99/storylens/internal/narrative"
	"github.com/MrWong99/storylens/internal/presenter"
	"github.com/MrWong99/storylens/internal/view"
)

// htmlWriter accumulates the first write error so components can emit
// markup without checking every call.
type htmlWriter struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

func (h *htmlWriter) text(s string) { h.raw(templ.EscapeString(s)) }

func (h *htmlWriter) component(c templ.Component) {
	if h.err == nil {
		h.err = c.Render(h.ctx, h.w)
	}
}

func component(fn func(h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{ctx: ctx, w: w}
		fn(h)
		return h.err
	})
}

func attrIf(cond bool, attr string) string {
	if cond {
		return " " + attr
	}
	return ""
}

func hidden(visible bool) string { return attrIf(!visible, "hidden") }

// Layout renders the whole document.
func Layout(p presenter.Page) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>StoryLens</title><style>`, stylesheet, `</style></head><body>`)
		h.component(Nav(p.Nav))
		h.component(StatusLine(p))
		h.raw(`<main>`)
		h.component(AnalysisView(p))
		h.component(ChatView(p))
		h.component(AboutView(p.View.Visible(view.About)))
		h.raw(`</main>`)
		h.component(Scripts(p))
		h.raw(`</body></html>`)
	})
}

// Nav renders the view switcher.
func Nav(entries []presenter.NavEntry) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<nav><span class="brand">StoryLens</span>`)
		for _, e := range entries {
			h.raw(`<form method="post" action="/view/`, string(e.Name), `">`,
				`<button type="submit" class="nav-btn`, classIf(e.Active, " active"), `">`)
			h.text(e.Title)
			h.raw(`</button></form>`)
		}
		h.raw(`</nav>`)
	})
}

// StatusLine renders the current status message and in-flight work.
func StatusLine(p presenter.Page) templ.Component {
	return component(func(h *htmlWriter) {
		text := p.Status.Text
		kind := string(p.Status.Kind)
		switch {
		case p.Analyzing:
			text, kind = "Analyzing your story…", "info"
		case p.Searching:
			text, kind = "Searching for the excerpt…", "info"
		}
		h.raw(`<div id="status" role="status" class="status `, kind, `"`, hidden(text != ""), `>`)
		h.text(text)
		h.raw(`</div>`)
	})
}

// AnalysisView renders the story input, search panel and results.
func AnalysisView(p presenter.Page) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<section id="analysis-view"`, hidden(p.View.Visible(view.Analysis)), `>`)

		h.raw(`<div class="panel"><h2>Find an excerpt</h2>`,
			`<form method="post" action="/search" class="row">`,
			`<input type="text" name="query" minlength="5" placeholder="e.g. Chapter 5 of Dracula" required>`,
			`<button type="submit"`, attrIf(!p.CanSearch, "disabled"), `>Search</button></form>`)
		if ex := p.Excerpt; ex != nil {
			h.component(ExcerptPanel(ex))
		}
		h.raw(`</div>`)

		h.raw(`<div class="panel"><h2>Your story</h2>`,
			`<form method="post" action="/analyze" data-busy="Analyzing…">`,
			`<textarea name="story" rows="12" placeholder="Paste at least 100 characters of a story…">`)
		h.text(p.Story)
		h.raw(`</textarea><div class="row"><span class="muted">`, strconv.Itoa(p.StoryLength),
			` characters</span><button type="submit"`, attrIf(!p.CanAnalyze, "disabled"), `>Analyze</button>`)
		if p.HasAnalysis {
			h.raw(`<a class="btn secondary" href="/export">Export JSON</a>`)
		}
		h.raw(`</div></form></div>`)

		if p.HasAnalysis {
			h.component(Chart(p.Chart))
			h.component(Cards(p.Cards))
			h.component(SummaryPanel(p.Summary))
		}
		h.raw(`</section>`)
	})
}

// ExcerptPanel renders a search result awaiting review.
func ExcerptPanel(ex *presenter.ExcerptPanel) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<div id="excerpt" class="excerpt"><blockquote>`)
		h.text(ex.Text)
		h.raw(`</blockquote>`)
		if len(ex.Sources) > 0 {
			h.raw(`<ul class="sources">`)
			for _, s := range ex.Sources {
				title := s.Title
				if title == "" {
					title = s.URI
				}
				h.raw(`<li><a href="`)
				h.text(string(templ.URL(s.URI)))
				h.raw(`" target="_blank" rel="noopener noreferrer">`)
				h.text(title)
				h.raw(`</a></li>`)
			}
			h.raw(`</ul>`)
		}
		h.raw(`<form method="post" action="/search/use"><button type="submit">Use this excerpt</button></form></div>`)
	})
}

// Cards renders one card per beat.
func Cards(cards []presenter.Card) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<div class="cards">`)
		for _, c := range cards {
			h.raw(`<article class="card"><h3>`)
			h.text(c.Beat)
			h.raw(`</h3><p class="event">`)
			h.text(c.KeyEvent)
			h.raw(`</p><p class="muted">Focus: `)
			h.text(c.CharacterFocus)
			h.raw(`</p><dl>`)
			for _, m := range c.Metrics {
				h.raw(`<dt>`)
				h.text(string(m.Dimension))
				h.raw(` <span class="score `, string(m.Band), `">`, strconv.Itoa(m.Score), `</span></dt><dd>`)
				h.text(m.Summary)
				h.raw(`</dd>`)
			}
			h.raw(`</dl></article>`)
		}
		h.raw(`</div>`)
	})
}

// SummaryPanel renders the overview of the analysis.
func SummaryPanel(s presenter.Summary) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<div class="panel summary"><h2>Summary</h2><p><strong>Opens with:</strong> `)
		h.text(s.FirstEvent)
		h.raw(`</p><p><strong>Ends with:</strong> `)
		h.text(s.LastEvent)
		h.raw(`</p><p><strong>Characters in focus:</strong> `)
		for i, c := range s.Characters {
			if i > 0 {
				h.raw(`, `)
			}
			h.text(c)
		}
		h.raw(`</p><p><strong>Average tension:</strong> `)
		if s.HasMeanTension {
			h.raw(`<span class="score `, string(s.MeanBand), `">`, strconv.Itoa(s.MeanTension), `</span>`)
		} else {
			h.raw(`<span class="muted">unavailable</span>`)
		}
		h.raw(`</p></div>`)
	})
}

// ChatView renders the character selector and transcript.
func ChatView(p presenter.Page) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<section id="chat-view"`, hidden(p.View.Visible(view.Chat)), `>`)
		if len(p.Characters) == 0 {
			h.raw(`<p class="muted">Analyze a story to meet its characters.</p>`)
		}
		h.raw(`<div class="characters">`)
		for _, c := range p.Characters {
			h.raw(`<form method="post" action="/characters/select"><input type="hidden" name="name" value="`)
			h.text(c.Name)
			h.raw(`"><button type="submit" class="character`, classIf(c.Active, " active"), `">`,
				`<span class="icon">`, c.Icon, `</span> `)
			h.text(c.Name)
			h.raw(`</button></form>`)
		}
		h.raw(`</div><div id="transcript" class="transcript">`)
		for _, b := range p.Bubbles {
			h.raw(`<div class="bubble `, string(b.Role), `">`)
			if b.Role == narrative.RoleModel {
				h.raw(`<span class="speaker">`, p.ActiveIcon, ` `)
				h.text(p.Active)
				h.raw(`</span>`, b.HTML)
			} else {
				h.text(b.Text)
			}
			h.raw(`</div>`)
		}
		if p.Chatting {
			h.raw(`<div class="bubble model pending">…</div>`)
		}
		h.raw(`</div><form method="post" action="/chat" class="row chat-input">`,
			`<input type="text" name="message" autocomplete="off" placeholder="`)
		if p.Active != "" {
			h.text("Say something to " + p.Active + "…")
		} else {
			h.raw(`Select a character…`)
		}
		h.raw(`"`, attrIf(!p.ChatEnabled, "disabled"), attrIf(p.FocusChatInput, "autofocus"), `>`,
			`<button type="submit"`, attrIf(!p.ChatEnabled, "disabled"), `>Send</button></form></section>`)
	})
}

// AboutView renders the static about page.
func AboutView(visible bool) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<section id="about-view"`, hidden(visible), `><div class="panel"><h2>About StoryLens</h2>`,
			`<p>StoryLens reads a story and charts it across seven beats, from the opening to the climax. `,
			`Each beat is scored for tension, pacing, agency and resonance.</p>`,
			`<p>After an analysis you can talk to the story's characters. They answer in character, `,
			`drawing only on what the story tells them.</p></div></section>`)
	})
}

// Scripts emits the small client-side helpers: scroll-to-end after layout
// settles, and disabling submit buttons while a form is in flight.
func Scripts(p presenter.Page) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<script>`,
			`document.querySelectorAll("form").forEach(function(f){f.addEventListener("submit",function(){`,
			`f.querySelectorAll("button").forEach(function(b){b.disabled=true;});`,
			`if(f.dataset.busy){var s=document.getElementById("status");s.hidden=false;s.className="status info";s.textContent=f.dataset.busy;}`,
			`});});`)
		if p.View.ScrollToEnd {
			h.raw(fmt.Sprintf(`setTimeout(function(){var t=document.getElementById("transcript");if(t){t.scrollTop=t.scrollHeight;}},%d);`,
				p.ScrollDelay.Milliseconds()))
		}
		h.raw(`</script>`)
	})
}

func classIf(cond bool, class string) string {
	if cond {
		return class
	}
	return ""
}
