// ABOUTME: Tests for system-prompt composition ordering and the OCEAN-derived sampling params.
package persona

import (
	"math"
	"strings"
	"testing"
)

func promptFixture() (Persona, Template, []Participant) {
	p := Persona{
		ID:               "orin",
		Name:             "Orin",
		TemplateID:       "skeptic",
		SignaturePhrases: []string{"and yet", "but consider"},
		PromptAdditions:  "You distrust easy consensus.",
	}
	tmpl := Template{
		ID:            "skeptic",
		EpistemicLens: "Doubt first.",
		VoiceGuidance: VoiceGuidance{
			Style:    "terse",
			Register: "formal",
			Patterns: []string{"rhetorical questions"},
			Avoid:    []string{"hedging"},
		},
		DefaultPersonality: Personality{Openness: 0.9, Agreeableness: 0.2},
	}
	roster := []Participant{
		{ID: "orin", DisplayName: "Orin"},
		{ID: "zara", DisplayName: "Zara"},
		{ID: "human", DisplayName: "Human"},
	}
	return p, tmpl, roster
}

func TestComposeSystemPromptOrderAndContent(t *testing.T) {
	p, tmpl, roster := promptFixture()
	got := ComposeSystemPrompt(p, tmpl, roster)

	sections := []string{
		"Doubt first.",
		"Voice: terse; formal",
		"You distrust easy consensus.",
		"Your disposition:",
		"Phrases you return to: and yet; but consider",
		"You are Orin, one voice in a circle with Zara, Human",
		"Dialectical norms:",
	}
	lastIdx := -1
	for _, section := range sections {
		idx := strings.Index(got, section)
		if idx < 0 {
			t.Fatalf("prompt missing section %q:\n%s", section, got)
		}
		if idx < lastIdx {
			t.Errorf("section %q appears out of order", section)
		}
		lastIdx = idx
	}

	for _, rule := range []string{"@Name", "Never @yourself", "Never prefix your reply with your own name", "2-3 sentences"} {
		if !strings.Contains(got, rule) {
			t.Errorf("prompt missing mention rule %q", rule)
		}
	}
}

func TestComposeSystemPromptExcludesSelfFromRoster(t *testing.T) {
	p, tmpl, roster := promptFixture()
	got := ComposeSystemPrompt(p, tmpl, roster)
	if strings.Contains(got, "with Orin") {
		t.Error("circle block should not list the speaker itself")
	}
}

func TestDeriveSamplingParams(t *testing.T) {
	sp := DeriveSamplingParams(Personality{
		Openness:          0.5,
		Conscientiousness: 0.8,
		Neuroticism:       1.0,
	})

	if math.Abs(sp.Temperature-0.7) > 1e-9 {
		t.Errorf("Temperature = %v, want 0.4 + 0.6*0.5 = 0.7", sp.Temperature)
	}
	if math.Abs(sp.TopP-0.75) > 1e-9 {
		t.Errorf("TopP = %v, want 0.95 - 0.25*0.8 = 0.75", sp.TopP)
	}
	if math.Abs(sp.RepeatPenalty-1.3) > 1e-9 {
		t.Errorf("RepeatPenalty = %v, want 1.0 + 0.3*1.0 = 1.3", sp.RepeatPenalty)
	}
}
