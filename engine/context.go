// ABOUTME: ContextBuilder composes the ordered (role, content) message list fed to the LLM client.
// ABOUTME: The list, not a string, is the contract with the LLM client (spec §4.3 and design note).
package engine

import (
	"fmt"

	"github.com/m3data/mase-engine/llm"
	"github.com/m3data/mase-engine/persona"
)

// HistoryEntry is one prior turn as the context builder sees it: a display
// name, content, and whether it was a researcher interjection rather than a
// spoken turn.
type HistoryEntry struct {
	SpeakerDisplayName string
	Content            string
	IsInterjection     bool
}

// BuildContext assembles the full message list for one agent's turn, per
// spec §4.3: a system message, the last W history entries as user messages,
// and a closing prompt.
func BuildContext(binding AgentBinding, roster []persona.Participant, provocation string, history []HistoryEntry, window int) []llm.Message {
	messages := make([]llm.Message, 0, window+2)

	system := persona.ComposeSystemPrompt(binding.Persona, binding.Template, roster)
	messages = append(messages, llm.SystemMessage(system))

	recent := history
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	for _, h := range recent {
		if h.IsInterjection {
			messages = append(messages, llm.UserMessage(fmt.Sprintf("[Interjection]: %s", h.Content)))
			continue
		}
		messages = append(messages, llm.UserMessage(fmt.Sprintf("[%s]: %s", h.SpeakerDisplayName, h.Content)))
	}

	messages = append(messages, llm.UserMessage(closingPrompt(provocation, len(history) == 0)))
	return messages
}

func closingPrompt(provocation string, isOpening bool) string {
	if isOpening {
		return fmt.Sprintf("Opening question: %s\nShare your perspective briefly (2-3 sentences).", provocation)
	}
	return "Respond briefly (2-3 sentences). Speak only as yourself."
}
