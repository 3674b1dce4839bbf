package backend

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Text string `json:"text" jsonschema:"the full story text, at least 100 characters" validate:"min=100"`
}

// AnalyzeResponse carries the 7-point analysis as a JSON-encoded string.
type AnalyzeResponse struct {
	Analysis string `json:"analysis"`
}

// ExtractRequest is the body of POST /extract_characters.
type ExtractRequest struct {
	Text string `json:"text" jsonschema:"the story text, at least 50 characters" validate:"min=50"`
}

// ExtractResponse lists the named characters of a story.
type ExtractResponse struct {
	Characters []string `json:"characters"`
}

// SearchRequest is the body of POST /search_excerpt.
type SearchRequest struct {
	Query string `json:"query" jsonschema:"a description of the passage, e.g. Chapter 5 of Dracula" validate:"min=5"`
}

// Source is a citation of a found excerpt.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// SearchResponse is the found passage and its citations.
type SearchResponse struct {
	Excerpt string   `json:"excerpt"`
	Sources []Source `json:"sources"`
}

// Part is one text fragment of a history entry.
type Part struct {
	Text string `json:"text"`
}

// HistoryEntry is one transcript message. Role is "user" or "model".
type HistoryEntry struct {
	Role  string `json:"role" jsonschema:"user or model"`
	Parts []Part `json:"parts"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Story           string         `json:"story" jsonschema:"the story the character lives in" validate:"required"`
	History         []HistoryEntry `json:"history" jsonschema:"the conversation so far, oldest first, ending with the user's message" validate:"dive"`
	ActiveCharacter string         `json:"activeCharacter" jsonschema:"the character to answer as" validate:"required"`
}

// ChatResponse is the character's reply.
type ChatResponse struct {
	Response string `json:"response"`
}

// InputError reports a request rejected before any model call. Its message
// is shown to the user verbatim.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

// fieldMessages maps "Struct.Field" to the user-facing message for any
// validation failure of that field.
var fieldMessages = map[string]string{
	"AnalyzeRequest.Text":         "Text too short for analysis (minimum 100 characters)",
	"ExtractRequest.Text":         "Text too short for character extraction",
	"SearchRequest.Query":         "Query too short (minimum 5 characters)",
	"ChatRequest.Story":           "Missing story context",
	"ChatRequest.ActiveCharacter": "Missing activeCharacter",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// check validates v and converts the first failure to an *InputError.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	ns := verrs[0].StructNamespace()
	if msg, ok := fieldMessages[ns]; ok {
		return &InputError{Message: msg}
	}
	_, field, _ := strings.Cut(ns, ".")
	return &InputError{Message: "Invalid field " + field}
}
