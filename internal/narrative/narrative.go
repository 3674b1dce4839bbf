// Package narrative holds the StoryLens data model: the seven analysed beats
// of a story, the four scored dimensions per beat, the characters extracted
// from the text and the chat transcript exchanged with one of them.
//
// Everything here is plain data plus pure functions; nothing performs I/O.
package narrative

import "encoding/json"

// BeatCount is the fixed number of analysis points per story.
const BeatCount = 7

// Beats names the fixed narrative positions, in story order.
var Beats = [BeatCount]string{
	"Start", "Point 1", "Point 2", "Point 3", "Point 4", "Point 5", "Climax/End",
}

// Dimension is one of the four scored narrative dimensions.
type Dimension string

const (
	Tension   Dimension = "Tension"
	Pacing    Dimension = "Pacing"
	Agency    Dimension = "Agency"
	Resonance Dimension = "Resonance"
)

// Dimensions lists every dimension in display order.
var Dimensions = []Dimension{Tension, Pacing, Agency, Resonance}

// Metric is a 0–100 score with the model's short justification.
type Metric struct {
	Score   int
	Summary string
}

// AnalysisPoint is the analysis of a single beat.
type AnalysisPoint struct {
	KeyEvent       string
	CharacterFocus string
	Tension        Metric
	Pacing         Metric
	Agency         Metric
	Resonance      Metric
}

// Metric returns the metric stored for d. Unknown dimensions yield a zero Metric.
func (p AnalysisPoint) Metric(d Dimension) Metric {
	switch d {
	case Tension:
		return p.Tension
	case Pacing:
		return p.Pacing
	case Agency:
		return p.Agency
	case Resonance:
		return p.Resonance
	}
	return Metric{}
}

// pointJSON is the flat wire shape produced by the analysis backend.
type pointJSON struct {
	TensionScore     int    `json:"TensionScore"`
	TensionSummary   string `json:"TensionSummary"`
	PacingScore      int    `json:"PacingScore"`
	PacingSummary    string `json:"PacingSummary"`
	AgencyScore      int    `json:"AgencyScore"`
	AgencySummary    string `json:"AgencySummary"`
	ResonanceScore   int    `json:"ResonanceScore"`
	ResonanceSummary string `json:"ResonanceSummary"`
	KeyEvent         string `json:"keyEvent"`
	CharacterFocus   string `json:"characterFocus"`
}

// MarshalJSON encodes p in the backend's flat wire shape.
func (p AnalysisPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{
		TensionScore:     p.Tension.Score,
		TensionSummary:   p.Tension.Summary,
		PacingScore:      p.Pacing.Score,
		PacingSummary:    p.Pacing.Summary,
		AgencyScore:      p.Agency.Score,
		AgencySummary:    p.Agency.Summary,
		ResonanceScore:   p.Resonance.Score,
		ResonanceSummary: p.Resonance.Summary,
		KeyEvent:         p.KeyEvent,
		CharacterFocus:   p.CharacterFocus,
	})
}

// UnmarshalJSON decodes the backend's flat wire shape.
func (p *AnalysisPoint) UnmarshalJSON(data []byte) error {
	var w pointJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = AnalysisPoint{
		KeyEvent:       w.KeyEvent,
		CharacterFocus: w.CharacterFocus,
		Tension:        Metric{Score: w.TensionScore, Summary: w.TensionSummary},
		Pacing:         Metric{Score: w.PacingScore, Summary: w.PacingSummary},
		Agency:         Metric{Score: w.AgencyScore, Summary: w.AgencySummary},
		Resonance:      Metric{Score: w.ResonanceScore, Summary: w.ResonanceSummary},
	}
	return nil
}
