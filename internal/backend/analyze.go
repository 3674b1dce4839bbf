package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/storylens/internal/narrative"
	"github.com/MrWong99/storylens/pkg/provider/llm"
)

const analystPrompt = `You are a world-class literary analyst specializing in narrative structure. ` +
	`Read the story you are given and, following its progression, score four dimensions at 7 equally ` +
	`spaced points through the text. Scores range from 1 (low) to 100 (high).

The four dimensions are:
- Tension: the dramatic stakes.
- Pacing: the speed of events and flow of information.
- Agency: how strongly the protagonist drives the plot.
- Resonance: how deeply a reader would connect emotionally.

Respond with ONLY a JSON array of exactly 7 objects, no prose and no code fence. Every object has these fields:
- "TensionScore" (integer 1-100) and "TensionSummary" (1-2 sentences explaining the score)
- "PacingScore" (integer 1-100) and "PacingSummary" (1-2 sentences)
- "AgencyScore" (integer 1-100) and "AgencySummary" (1-2 sentences)
- "ResonanceScore" (integer 1-100) and "ResonanceSummary" (1-2 sentences)
- "keyEvent" (string): the single most important plot event or conflict at this point
- "characterFocus" (string): the name of the character carrying the primary conflict at this point`

// Analyze scores the story at the seven beats. The returned analysis string
// always decodes to exactly seven points with scores in 0-100.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := check(req); err != nil {
		return AnalyzeResponse{}, err
	}

	reply, err := s.complete(ctx, "analyze", llm.CompletionRequest{
		SystemPrompt: analystPrompt,
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: "Analyze the following narrative and provide the required 7-point scores for " +
				"Tension, Pacing, Character Agency, and Emotional Resonance:\n\n" +
				"--- STORY START ---\n" + req.Text + "\n--- STORY END ---",
		}},
		Temperature: 0.2,
	})
	if err != nil {
		return AnalyzeResponse{}, err
	}

	analysis, err := narrative.ParseAnalysis(reply)
	if err != nil {
		return AnalyzeResponse{}, err
	}
	out, err := json.Marshal(analysis.Points)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("encode analysis: %w", err)
	}
	return AnalyzeResponse{Analysis: string(out)}, nil
}
