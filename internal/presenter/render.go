package presenter

import (
	"bytes"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/MrWong99/storylens/internal/narrative"
	"github.com/MrWong99/storylens/internal/session"
	"github.com/MrWong99/storylens/internal/view"
)

// Chart axis bounds.
const (
	ChartMin = 0
	ChartMax = 100
)

// NavEntry is one navigation button.
type NavEntry struct {
	Name   view.Name
	Title  string
	Active bool
}

// Series is one line of the chart.
type Series struct {
	Dimension narrative.Dimension
	Values    []int
}

// Chart plots every dimension across the beats.
type Chart struct {
	Labels []string
	Series []Series
	Min    int
	Max    int
}

// MetricView is one dimension on a card.
type MetricView struct {
	Dimension narrative.Dimension
	Score     int
	Summary   string
	Band      narrative.Band
}

// Card describes one beat.
type Card struct {
	Beat           string
	KeyEvent       string
	CharacterFocus string
	Metrics        []MetricView
}

// Summary is the overview below the cards.
type Summary struct {
	FirstEvent string
	LastEvent  string
	Characters []string

	// MeanTension is only meaningful when HasMeanTension is set.
	MeanTension    int
	MeanBand       narrative.Band
	HasMeanTension bool
}

// CharacterEntry is one button of the character selector.
type CharacterEntry struct {
	Name   string
	Icon   string
	Active bool
}

// Bubble is one chat message. HTML holds the rendered Markdown of model
// replies and is empty for user messages, which are shown as plain text.
type Bubble struct {
	Role narrative.Role
	Text string
	HTML string
}

// ExcerptPanel is the search result under review.
type ExcerptPanel struct {
	Query   string
	Text    string
	Sources []session.Source
}

// Page is everything the web layer needs to draw one response.
type Page struct {
	Nav    []NavEntry
	View   view.State
	Status session.Status

	Story          string
	StoryLength    int
	CanAnalyze     bool
	CanSearch      bool
	Excerpt        *ExcerptPanel
	HasAnalysis    bool
	Chart          Chart
	Cards          []Card
	Summary        Summary
	Characters     []CharacterEntry
	Active         string
	ActiveIcon     string
	Bubbles        []Bubble
	ChatEnabled    bool
	FocusChatInput bool
	ScrollDelay    time.Duration

	Analyzing bool
	Searching bool
	Chatting  bool
}

// Render maps a session snapshot and view state to a Page. It does no I/O.
func Render(snap session.Snapshot, v view.State) Page {
	p := Page{
		View:        v,
		Status:      snap.Status,
		Story:       snap.Story,
		StoryLength: len([]rune(strings.TrimSpace(snap.Story))),
		CanAnalyze:  !snap.Analyzing,
		CanSearch:   !snap.Searching,
		Active:      snap.Active,
		ChatEnabled: snap.ChatEnabled && snap.Active != "" && !snap.Chatting,
		ScrollDelay: view.ScrollDelay,
		Analyzing:   snap.Analyzing,
		Searching:   snap.Searching,
		Chatting:    snap.Chatting,
	}
	for _, n := range view.All {
		p.Nav = append(p.Nav, NavEntry{Name: n, Title: n.Title(), Active: v.Active == n})
	}
	p.FocusChatInput = v.Active == view.Chat && p.ChatEnabled

	if snap.Excerpt != nil {
		p.Excerpt = &ExcerptPanel{Query: snap.Excerpt.Query, Text: snap.Excerpt.Text, Sources: snap.Excerpt.Sources}
	}

	if snap.Analysis != nil && len(snap.Analysis.Points) > 0 {
		points := snap.Analysis.Points
		p.HasAnalysis = true
		p.Chart = renderChart(points)
		p.Cards = renderCards(points)
		p.Summary = renderSummary(points)
	}

	for _, c := range snap.Characters {
		active := c.Name == snap.Active
		p.Characters = append(p.Characters, CharacterEntry{Name: c.Name, Icon: c.Icon(), Active: active})
		if active {
			p.ActiveIcon = c.Icon()
		}
	}

	for _, m := range snap.Transcript {
		b := Bubble{Role: m.Role, Text: m.Text}
		if m.Role == narrative.RoleModel {
			b.HTML = Markdown(m.Text)
		}
		p.Bubbles = append(p.Bubbles, b)
	}
	return p
}

func renderChart(points []narrative.AnalysisPoint) Chart {
	c := Chart{Min: ChartMin, Max: ChartMax}
	for i := range points {
		c.Labels = append(c.Labels, beatLabel(i))
	}
	for _, d := range narrative.Dimensions {
		s := Series{Dimension: d, Values: make([]int, len(points))}
		for i, pt := range points {
			s.Values[i] = pt.Metric(d).Score
		}
		c.Series = append(c.Series, s)
	}
	return c
}

func renderCards(points []narrative.AnalysisPoint) []Card {
	cards := make([]Card, len(points))
	for i, pt := range points {
		card := Card{Beat: beatLabel(i), KeyEvent: pt.KeyEvent, CharacterFocus: pt.CharacterFocus}
		for _, d := range narrative.Dimensions {
			m := pt.Metric(d)
			card.Metrics = append(card.Metrics, MetricView{
				Dimension: d,
				Score:     m.Score,
				Summary:   m.Summary,
				Band:      narrative.BandFor(m.Score),
			})
		}
		cards[i] = card
	}
	return cards
}

func renderSummary(points []narrative.AnalysisPoint) Summary {
	s := Summary{
		FirstEvent: points[0].KeyEvent,
		LastEvent:  points[len(points)-1].KeyEvent,
		Characters: narrative.FocusCharacters(points),
	}
	if mean, ok := narrative.MeanTension(points); ok {
		s.MeanTension = mean
		s.MeanBand = narrative.BandFor(mean)
		s.HasMeanTension = true
	}
	return s
}

func beatLabel(i int) string {
	if i < len(narrative.Beats) {
		return narrative.Beats[i]
	}
	return ""
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// Markdown renders src to HTML. Raw HTML in src is not passed through; on a
// conversion error the escaped source is returned.
func Markdown(src string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "<p>" + html.EscapeString(src) + "</p>"
	}
	return buf.String()
}
