package narrative

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// StructureError reports an analysis payload that does not have the shape of
// exactly [BeatCount] analysis points.
type StructureError struct {
	// Got is the number of points found, or -1 when the payload is not a
	// JSON array at all.
	Got int

	// Err is the underlying decode error, if any.
	Err error
}

func (e *StructureError) Error() string {
	if e.Got < 0 {
		return fmt.Sprintf("malformed analysis payload: %v", e.Err)
	}
	return fmt.Sprintf("expected %d analysis points, got %d", BeatCount, e.Got)
}

func (e *StructureError) Unwrap() error { return e.Err }

// Analysis is a validated set of exactly [BeatCount] points in beat order.
type Analysis struct {
	Points []AnalysisPoint
}

// ParseAnalysis decodes raw, a JSON array of analysis points, optionally
// wrapped in a Markdown code fence. Anything other than exactly [BeatCount]
// points fails with a *StructureError.
func ParseAnalysis(raw string) (*Analysis, error) {
	var points []AnalysisPoint
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &points); err != nil {
		return nil, &StructureError{Got: -1, Err: err}
	}
	if len(points) != BeatCount {
		return nil, &StructureError{Got: len(points)}
	}
	for i := range points {
		points[i].Tension.Score = clampScore(points[i].Tension.Score)
		points[i].Pacing.Score = clampScore(points[i].Pacing.Score)
		points[i].Agency.Score = clampScore(points[i].Agency.Score)
		points[i].Resonance.Score = clampScore(points[i].Resonance.Score)
	}
	return &Analysis{Points: points}, nil
}

// StripCodeFence removes a surrounding ``` or ```json fence, which models
// frequently add around JSON output.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clampScore(v int) int {
	return max(0, min(100, v))
}

// MeanTension returns the rounded mean tension score. ok is false for an
// empty slice, which has no meaningful mean.
func MeanTension(points []AnalysisPoint) (mean int, ok bool) {
	if len(points) == 0 {
		return 0, false
	}
	sum := 0
	for _, p := range points {
		sum += p.Tension.Score
	}
	return int(math.Round(float64(sum) / float64(len(points)))), true
}

// Band classifies a score for colour coding.
type Band string

const (
	BandHigh   Band = "high"   // red
	BandMedium Band = "medium" // amber
	BandLow    Band = "low"    // green
)

// BandFor returns the band of a 0–100 score: above 70 is high, above 40 is
// medium, everything else is low.
func BandFor(score int) Band {
	switch {
	case score > 70:
		return BandHigh
	case score > 40:
		return BandMedium
	default:
		return BandLow
	}
}

// FocusCharacters returns the distinct non-empty character focus values in
// first-seen order.
func FocusCharacters(points []AnalysisPoint) []string {
	seen := make(map[string]bool, len(points))
	var out []string
	for _, p := range points {
		name := strings.TrimSpace(p.CharacterFocus)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
