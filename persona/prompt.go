// ABOUTME: System prompt composition from a persona's template, OCEAN personality, and circle roster.
// ABOUTME: Produces the ordered system-message text consumed by the generation loop's context builder.
package persona

import (
	"fmt"
	"strings"
)

// Participant names one member of the circle (human or agent) for the
// "circle" block's roster listing and mention-rule explanation.
type Participant struct {
	ID          string
	DisplayName string
	IsSelf      bool
}

// oceanDescription renders a one-sentence, plain-language gloss of the five
// OCEAN traits so the model can internalize its disposition without having
// to reason about raw floats.
func oceanDescription(p Personality) string {
	trait := func(value float64, low, high string) string {
		if value >= 0.5 {
			return high
		}
		return low
	}
	return fmt.Sprintf(
		"Your disposition: %s, %s, %s, %s, %s.",
		trait(p.Openness, "grounded in the familiar", "drawn to novel ideas"),
		trait(p.Conscientiousness, "loose and associative", "careful and precise"),
		trait(p.Extraversion, "inward and reflective", "expressive and assertive"),
		trait(p.Agreeableness, "willing to push back", "inclined to find common ground"),
		trait(p.Neuroticism, "even-keeled", "attuned to unease"),
	)
}

// ComposeSystemPrompt builds the full system message for a persona speaking
// in a circle of the given participants, per spec §4.3 step 1: epistemic
// lens, voice guidance, persona prompt additions, OCEAN description,
// signature phrases, the circle block, and the dialectical-norms block, in
// that fixed order.
func ComposeSystemPrompt(p Persona, t Template, roster []Participant) string {
	var b strings.Builder

	if t.EpistemicLens != "" {
		b.WriteString(t.EpistemicLens)
		b.WriteString("\n\n")
	}

	vg := t.VoiceGuidance
	if vg.Style != "" || vg.Register != "" || len(vg.Patterns) > 0 || len(vg.Avoid) > 0 {
		b.WriteString("Voice: ")
		var parts []string
		if vg.Style != "" {
			parts = append(parts, vg.Style)
		}
		if vg.Register != "" {
			parts = append(parts, vg.Register)
		}
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(".\n")
		if len(vg.Patterns) > 0 {
			b.WriteString("Patterns you favor: " + strings.Join(vg.Patterns, ", ") + ".\n")
		}
		if len(vg.Avoid) > 0 {
			b.WriteString("Avoid: " + strings.Join(vg.Avoid, ", ") + ".\n")
		}
		b.WriteString("\n")
	}

	if p.PromptAdditions != "" {
		b.WriteString(p.PromptAdditions)
		b.WriteString("\n\n")
	}

	personality := EffectivePersonality(p, t)
	b.WriteString(oceanDescription(personality))
	b.WriteString("\n\n")

	if len(p.SignaturePhrases) > 0 {
		b.WriteString("Phrases you return to: " + strings.Join(p.SignaturePhrases, "; ") + ".\n\n")
	}

	b.WriteString(circleBlock(p, roster))
	b.WriteString("\n")
	b.WriteString(dialecticalNormsBlock)

	return b.String()
}

// circleBlock names the other participants and spells out mentioning rules.
func circleBlock(self Persona, roster []Participant) string {
	var others []string
	for _, part := range roster {
		if part.ID == self.ID {
			continue
		}
		others = append(others, part.DisplayName)
	}

	var b strings.Builder
	b.WriteString("You are " + self.Name + ", one voice in a circle")
	if len(others) > 0 {
		b.WriteString(" with " + strings.Join(others, ", "))
	}
	b.WriteString(".\n")
	b.WriteString("Use @Name to address another participant directly. Never @yourself. " +
		"Never prefix your reply with your own name. Respond in 2-3 sentences. " +
		"Build on what has been said; do not summarize it.\n")
	return b.String()
}

const dialecticalNormsBlock = "Dialectical norms: declare disagreement plainly when you feel it, " +
	"ask refuting questions rather than only affirming ones, name tensions between " +
	"perspectives instead of smoothing them over, and acknowledge the limits of your " +
	"own certainty.\n"

// SamplingParams are the per-turn sampling overrides derived from a
// persona's OCEAN personality, per spec §4.2 step 4.c.
type SamplingParams struct {
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
}

// DeriveSamplingParams computes the OCEAN-derived overlay on top of the
// binding's base temperature:
//
//	temperature     = 0.4 + 0.6*openness
//	top_p           = 0.95 - 0.25*conscientiousness
//	repeat_penalty  = 1.0 + 0.3*neuroticism
func DeriveSamplingParams(p Personality) SamplingParams {
	return SamplingParams{
		Temperature:   0.4 + 0.6*p.Openness,
		TopP:          0.95 - 0.25*p.Conscientiousness,
		RepeatPenalty: 1.0 + 0.3*p.Neuroticism,
	}
}
