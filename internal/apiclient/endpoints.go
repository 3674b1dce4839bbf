package apiclient

import (
	"context"

	"github.com/MrWong99/storylens/internal/narrative"
)

// TextRequest is the body of /analyze and /extract_characters.
type TextRequest struct {
	Text string `json:"text"`
}

// AnalyzeResponse carries the analysis as a JSON-encoded string.
type AnalyzeResponse struct {
	Analysis string `json:"analysis"`
}

// CharactersResponse lists extracted character names.
type CharactersResponse struct {
	Characters []string `json:"characters"`
}

// SearchRequest is the body of /search_excerpt.
type SearchRequest struct {
	Query string `json:"query"`
}

// Source is a citation attached to a found excerpt.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Excerpt is the /search_excerpt response.
type Excerpt struct {
	Excerpt string   `json:"excerpt,omitempty"`
	Sources []Source `json:"sources,omitempty"`
}

// Part is one text fragment of a history entry.
type Part struct {
	Text string `json:"text"`
}

// HistoryEntry is one transcript message in the backend's wire format.
type HistoryEntry struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// ChatRequest is the body of /chat.
type ChatRequest struct {
	Story           string         `json:"story"`
	History         []HistoryEntry `json:"history"`
	ActiveCharacter string         `json:"activeCharacter"`
}

// ChatResponse carries the character's reply.
type ChatResponse struct {
	Response string `json:"response"`
}

// History converts a transcript into the wire format.
func History(msgs []narrative.ChatMessage) []HistoryEntry {
	out := make([]HistoryEntry, len(msgs))
	for i, m := range msgs {
		out[i] = HistoryEntry{Role: string(m.Role), Parts: []Part{{Text: m.Text}}}
	}
	return out
}

// Analyze requests the 7-point analysis of text and returns the raw
// JSON-encoded analysis string; decoding is left to [narrative.ParseAnalysis].
func (c *Client) Analyze(ctx context.Context, text string) (string, error) {
	var resp AnalyzeResponse
	if err := c.Call(ctx, EndpointAnalyze, TextRequest{Text: text}, &resp); err != nil {
		return "", err
	}
	return resp.Analysis, nil
}

// ExtractCharacters returns the named characters found in text.
func (c *Client) ExtractCharacters(ctx context.Context, text string) ([]string, error) {
	var resp CharactersResponse
	if err := c.Call(ctx, EndpointExtractCharacters, TextRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Characters, nil
}

// SearchExcerpt looks up a passage matching query.
func (c *Client) SearchExcerpt(ctx context.Context, query string) (Excerpt, error) {
	var resp Excerpt
	if err := c.Call(ctx, EndpointSearchExcerpt, SearchRequest{Query: query}, &resp); err != nil {
		return Excerpt{}, err
	}
	return resp, nil
}

// Chat sends the full transcript and returns activeCharacter's reply.
func (c *Client) Chat(ctx context.Context, story string, history []narrative.ChatMessage, activeCharacter string) (string, error) {
	var resp ChatResponse
	req := ChatRequest{Story: story, History: History(history), ActiveCharacter: activeCharacter}
	if err := c.Call(ctx, EndpointChat, req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}
