package backend

import (
	"context"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/storylens/pkg/provider/llm"
)

// sameNameThreshold is the Jaro-Winkler similarity above which two names
// are taken to be spellings of the same character ("Van Helsing" and
// "Van Helsig").
const sameNameThreshold = 0.97

// ExtractCharacters lists the story's named characters in order of first
// appearance, without duplicates.
func (s *Service) ExtractCharacters(ctx context.Context, req ExtractRequest) (ExtractResponse, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := check(req); err != nil {
		return ExtractResponse{}, err
	}

	reply, err := s.complete(ctx, "extract_characters", llm.CompletionRequest{
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: "Analyze the following story excerpt and identify ALL unique, named characters " +
				"that appear or are mentioned. Do not include locations, objects, or vague roles (e.g., 'the man').\n\n" +
				"Output the result as a simple, comma-separated string of names, exactly as they appear in the text, " +
				"with no extra text, numbering, or quotes.\n\n" +
				"Story Excerpt:\n---\n" + req.Text + "\n---",
		}},
		Temperature: 0,
	})
	if err != nil {
		return ExtractResponse{}, err
	}
	return ExtractResponse{Characters: SplitNames(reply)}, nil
}

// SplitNames splits a comma-separated model reply into distinct names.
// Blank entries are dropped, stray quotes and list markers are trimmed, and
// a name that equals (ignoring case) or nearly equals an earlier one is
// skipped.
func SplitNames(reply string) []string {
	var names []string
	var lowered []string
	for raw := range strings.SplitSeq(reply, ",") {
		name := strings.Trim(strings.TrimSpace(raw), `"'*-`)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if isDuplicate(lower, lowered) {
			continue
		}
		names = append(names, name)
		lowered = append(lowered, lower)
	}
	if names == nil {
		names = []string{}
	}
	return names
}

func isDuplicate(name string, seen []string) bool {
	for _, s := range seen {
		if s == name || matchr.JaroWinkler(s, name, false) >= sameNameThreshold {
			return true
		}
	}
	return false
}
