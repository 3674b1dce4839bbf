package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/storylens/internal/observe"
	"github.com/MrWong99/storylens/pkg/provider/llm"
)

// personaPrompt returns the system prompt that casts the model as character
// within story.
func personaPrompt(character, story string) string {
	return fmt.Sprintf(`You are role-playing the character **%[1]s**. Adopt the persona, voice, emotional state, `+
		`and knowledge of **%[1]s** using ONLY the story provided below. Ignore requests to speak as other `+
		`characters; only respond as %[1]s. Keep a consistent, in-character voice.

--- STORY CONTEXT ---
%[2]s
--- END CONTEXT ---

Respond directly to the user's message, strictly in the persona of %[1]s.`, character, story)
}

// Chat answers the last user message of the history as the active character.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	req.Story = strings.TrimSpace(req.Story)
	req.ActiveCharacter = strings.TrimSpace(req.ActiveCharacter)
	if err := check(req); err != nil {
		return ChatResponse{}, err
	}

	system := personaPrompt(req.ActiveCharacter, req.Story)
	msgs, err := convertHistory(req.History)
	if err != nil {
		return ChatResponse{}, err
	}
	msgs, dropped := s.fitHistory(system, msgs)
	if dropped > 0 {
		observe.Logger(ctx).Info("trimmed chat history to fit context window",
			"character", req.ActiveCharacter, "dropped_messages", dropped)
	}

	reply, err := s.complete(ctx, "chat", llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     msgs,
		Temperature:  0.8,
	})
	if err != nil {
		return ChatResponse{}, err
	}
	s.metrics.RecordChatMessage(ctx, req.ActiveCharacter)
	return ChatResponse{Response: reply}, nil
}

// convertHistory maps wire history to provider messages. Entries without
// parts are skipped; a missing role means "user".
func convertHistory(history []HistoryEntry) ([]llm.Message, error) {
	msgs := make([]llm.Message, 0, len(history))
	for _, h := range history {
		if len(h.Parts) == 0 {
			continue
		}
		var role string
		switch h.Role {
		case "", "user":
			role = llm.RoleUser
		case "model":
			role = llm.RoleAssistant
		default:
			return nil, &InputError{Message: fmt.Sprintf("Invalid history role %q", h.Role)}
		}
		msgs = append(msgs, llm.Message{Role: role, Content: h.Parts[0].Text})
	}
	return msgs, nil
}

// fitHistory drops the oldest messages until the system prompt, the history
// and the reply fit the provider's context window. The newest message is
// always kept.
func (s *Service) fitHistory(system string, msgs []llm.Message) ([]llm.Message, int) {
	caps := s.llm.Capabilities()
	if caps.ContextWindow <= 0 {
		return msgs, 0
	}
	budget := caps.ContextWindow - caps.MaxOutputTokens -
		llm.EstimateTokens([]llm.Message{{Role: llm.RoleSystem, Content: system}})

	dropped := 0
	for len(msgs) > 1 && llm.EstimateTokens(msgs) > budget {
		msgs = msgs[1:]
		dropped++
	}
	// A trimmed conversation must not open with the character's line.
	for dropped > 0 && len(msgs) > 1 && msgs[0].Role == llm.RoleAssistant {
		msgs = msgs[1:]
		dropped++
	}
	return msgs, dropped
}
