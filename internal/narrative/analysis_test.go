package narrative

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// pointsJSON builds a JSON array of n points whose tension scores are taken
// from tensions (cycled).
func pointsJSON(n int, tensions ...int) string {
	parts := make([]string, n)
	for i := range parts {
		tension := 50
		if len(tensions) > 0 {
			tension = tensions[i%len(tensions)]
		}
		parts[i] = fmt.Sprintf(`{"TensionScore":%d,"TensionSummary":"t%d","PacingScore":40,"PacingSummary":"p","AgencyScore":30,"AgencySummary":"a","ResonanceScore":80,"ResonanceSummary":"r","keyEvent":"event %d","characterFocus":"Mina"}`, tension, i, i)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestParseAnalysis_SevenPoints(t *testing.T) {
	a, err := ParseAnalysis(pointsJSON(7, 10, 20, 30, 40, 50, 60, 70))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.Points) != BeatCount {
		t.Fatalf("points = %d, want %d", len(a.Points), BeatCount)
	}
	p := a.Points[3]
	if p.Tension.Score != 40 || p.Tension.Summary != "t3" {
		t.Errorf("tension = %+v", p.Tension)
	}
	if p.KeyEvent != "event 3" || p.CharacterFocus != "Mina" {
		t.Errorf("event/focus = %q/%q", p.KeyEvent, p.CharacterFocus)
	}
	if p.Resonance.Score != 80 || p.Metric(Pacing).Score != 40 || p.Metric(Agency).Score != 30 {
		t.Errorf("unexpected metrics: %+v", p)
	}
}

func TestParseAnalysis_WrongCount(t *testing.T) {
	for _, n := range []int{0, 6, 8} {
		_, err := ParseAnalysis(pointsJSON(n))
		var se *StructureError
		if !errors.As(err, &se) {
			t.Fatalf("n=%d: err = %v, want *StructureError", n, err)
		}
		if se.Got != n {
			t.Errorf("n=%d: Got = %d", n, se.Got)
		}
	}
}

func TestParseAnalysis_NotAnArray(t *testing.T) {
	_, err := ParseAnalysis(`{"analysis":"oops"}`)
	var se *StructureError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StructureError", err)
	}
	if se.Got != -1 {
		t.Errorf("Got = %d, want -1", se.Got)
	}
	if se.Unwrap() == nil {
		t.Error("expected wrapped decode error")
	}
}

func TestParseAnalysis_CodeFenceAndClamp(t *testing.T) {
	raw := "```json\n" + pointsJSON(7, 150, -5) + "\n```"
	a, err := ParseAnalysis(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Points[0].Tension.Score != 100 {
		t.Errorf("score = %d, want clamped 100", a.Points[0].Tension.Score)
	}
	if a.Points[1].Tension.Score != 0 {
		t.Errorf("score = %d, want clamped 0", a.Points[1].Tension.Score)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"[1]":                "[1]",
		"```\n[1]\n```":      "[1]",
		"```json\n[1]\n```":  "[1]",
		"  ```json\n[1]```  ": "[1]",
		"```":                "",
	}
	for in, want := range tests {
		if got := StripCodeFence(in); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMeanTension(t *testing.T) {
	a, err := ParseAnalysis(pointsJSON(7, 10, 20, 30, 40, 50, 60, 70))
	if err != nil {
		t.Fatal(err)
	}
	mean, ok := MeanTension(a.Points)
	if !ok || mean != 40 {
		t.Errorf("mean = %d (ok=%v), want 40", mean, ok)
	}
}

func TestMeanTension_Rounds(t *testing.T) {
	points := []AnalysisPoint{{Tension: Metric{Score: 10}}, {Tension: Metric{Score: 11}}}
	if mean, _ := MeanTension(points); mean != 11 {
		t.Errorf("mean = %d, want 11 (10.5 rounds half away from zero)", mean)
	}
}

func TestMeanTension_Empty(t *testing.T) {
	if _, ok := MeanTension(nil); ok {
		t.Error("empty analysis must not report a mean")
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		score int
		want  Band
	}{
		{100, BandHigh}, {71, BandHigh}, {70, BandMedium}, {41, BandMedium}, {40, BandLow}, {0, BandLow},
	}
	for _, tt := range tests {
		if got := BandFor(tt.score); got != tt.want {
			t.Errorf("BandFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestFocusCharacters(t *testing.T) {
	points := []AnalysisPoint{
		{CharacterFocus: "Jonathan"}, {CharacterFocus: "Mina"}, {CharacterFocus: "Jonathan"}, {CharacterFocus: " "},
	}
	got := FocusCharacters(points)
	if len(got) != 2 || got[0] != "Jonathan" || got[1] != "Mina" {
		t.Errorf("focus = %v", got)
	}
}

func TestAnalysisPoint_MarshalUsesWireNames(t *testing.T) {
	data, err := json.Marshal(AnalysisPoint{KeyEvent: "arrival", Tension: Metric{Score: 12}})
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, key := range []string{`"TensionScore":12`, `"keyEvent":"arrival"`, `"characterFocus":""`} {
		if !strings.Contains(s, key) {
			t.Errorf("encoded %s missing %s", s, key)
		}
	}
}
