package web

import (
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/MrWong99/storylens/internal/narrative"
	"github.com/MrWong99/storylens/internal/presenter"
)

// Chart geometry in SVG user units.
const (
	chartWidth  = 720
	chartHeight = 280
	chartPadX   = 48
	chartPadY   = 24
)

var seriesColors = map[narrative.Dimension]string{
	narrative.Tension:   "#e4572e",
	narrative.Pacing:    "#29335c",
	narrative.Agency:    "#f3a712",
	narrative.Resonance: "#669bbc",
}

// chartX returns the x coordinate of point i of n.
func chartX(i, n int) int {
	if n < 2 {
		return chartWidth / 2
	}
	return chartPadX + i*(chartWidth-2*chartPadX)/(n-1)
}

// chartY maps a score in [lo, hi] to a y coordinate, top is hi.
func chartY(v, lo, hi int) int {
	if hi <= lo {
		return chartHeight - chartPadY
	}
	v = max(lo, min(hi, v))
	return chartPadY + (hi-v)*(chartHeight-2*chartPadY)/(hi-lo)
}

// Chart renders the four dimensions as an inline SVG line chart.
func Chart(c presenter.Chart) templ.Component {
	return component(func(h *htmlWriter) {
		n := len(c.Labels)
		h.raw(`<div class="panel"><h2>Narrative arc</h2>`,
			`<svg class="chart" viewBox="0 0 `, strconv.Itoa(chartWidth), ` `, strconv.Itoa(chartHeight),
			`" role="img" aria-label="Scores per beat">`)

		for _, tick := range []int{0, 25, 50, 75, 100} {
			if tick < c.Min || tick > c.Max {
				continue
			}
			y := strconv.Itoa(chartY(tick, c.Min, c.Max))
			h.raw(`<line class="grid" x1="`, strconv.Itoa(chartPadX), `" x2="`, strconv.Itoa(chartWidth-chartPadX),
				`" y1="`, y, `" y2="`, y, `"/>`,
				`<text class="axis" x="`, strconv.Itoa(chartPadX-8), `" y="`, y, `" text-anchor="end">`, strconv.Itoa(tick), `</text>`)
		}
		for i, label := range c.Labels {
			h.raw(`<text class="axis" x="`, strconv.Itoa(chartX(i, n)), `" y="`, strconv.Itoa(chartHeight-4), `" text-anchor="middle">`)
			h.text(label)
			h.raw(`</text>`)
		}

		for _, s := range c.Series {
			color := seriesColors[s.Dimension]
			pts := make([]string, len(s.Values))
			for i, v := range s.Values {
				pts[i] = strconv.Itoa(chartX(i, n)) + "," + strconv.Itoa(chartY(v, c.Min, c.Max))
			}
			h.raw(`<polyline fill="none" stroke-width="2.5" stroke="`, color, `" points="`, strings.Join(pts, " "), `">`,
				`<title>`)
			h.text(string(s.Dimension))
			h.raw(`</title></polyline>`)
		}
		h.raw(`</svg><ul class="legend">`)
		for _, s := range c.Series {
			h.raw(`<li><span class="swatch" style="background:`, seriesColors[s.Dimension], `"></span>`)
			h.text(string(s.Dimension))
			h.raw(`</li>`)
		}
		h.raw(`</ul></div>`)
	})
}
