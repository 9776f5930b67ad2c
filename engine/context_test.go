// ABOUTME: Tests for the context builder: system message first, window trimming, interjection
// ABOUTME: prefixes, and the opening-vs-respond closing prompts.
package engine

import (
	"strings"
	"testing"

	"github.com/m3data/mase-engine/llm"
	"github.com/m3data/mase-engine/persona"
)

func contextBinding() AgentBinding {
	return AgentBinding{
		Persona:  persona.Persona{ID: "orin", Name: "Orin"},
		Template: persona.Template{EpistemicLens: "Doubt first."},
		ModelID:  "llama3",
	}
}

func contextRoster() []persona.Participant {
	return []persona.Participant{
		{ID: "orin", DisplayName: "Orin"},
		{ID: "zara", DisplayName: "Zara"},
	}
}

func TestBuildContextEmptyHistoryUsesOpeningPrompt(t *testing.T) {
	msgs := BuildContext(contextBinding(), contextRoster(), "What is care?", nil, 5)

	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2 (system + closing)", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem {
		t.Errorf("msgs[0].Role = %q, want system", msgs[0].Role)
	}
	closing := msgs[len(msgs)-1]
	if closing.Role != llm.RoleUser {
		t.Errorf("closing role = %q, want user", closing.Role)
	}
	if !strings.Contains(closing.Content, "Opening question: What is care?") {
		t.Errorf("closing = %q, want opening prompt with provocation", closing.Content)
	}
}

func TestBuildContextTrimsToWindow(t *testing.T) {
	history := []HistoryEntry{
		{SpeakerDisplayName: "Orin", Content: "one"},
		{SpeakerDisplayName: "Zara", Content: "two"},
		{SpeakerDisplayName: "Orin", Content: "three"},
		{SpeakerDisplayName: "Zara", Content: "four"},
	}
	msgs := BuildContext(contextBinding(), contextRoster(), "q", history, 2)

	// system + 2 windowed turns + closing
	if len(msgs) != 4 {
		t.Fatalf("len(msgs) = %d, want 4", len(msgs))
	}
	if !strings.Contains(msgs[1].Content, "[Orin]: three") {
		t.Errorf("msgs[1] = %q, want oldest windowed turn", msgs[1].Content)
	}
	if !strings.Contains(msgs[2].Content, "[Zara]: four") {
		t.Errorf("msgs[2] = %q, want newest turn", msgs[2].Content)
	}
	closing := msgs[3].Content
	if !strings.Contains(closing, "Respond briefly") || !strings.Contains(closing, "Speak only as yourself") {
		t.Errorf("closing = %q, want respond prompt", closing)
	}
	if strings.Contains(closing, "Opening question") {
		t.Error("non-empty history should not use the opening prompt")
	}
}

func TestBuildContextMarksInterjections(t *testing.T) {
	history := []HistoryEntry{
		{SpeakerDisplayName: "Researcher", Content: "steer toward grief", IsInterjection: true},
	}
	msgs := BuildContext(contextBinding(), contextRoster(), "q", history, 5)

	if !strings.Contains(msgs[1].Content, "[Interjection]: steer toward grief") {
		t.Errorf("msgs[1] = %q, want interjection prefix", msgs[1].Content)
	}
}
