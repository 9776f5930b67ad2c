// ABOUTME: Persona, Template, and OCEAN personality value types for the circle's voice catalog.
// ABOUTME: Read-only domain values loaded from YAML documents; no behavior beyond composition lives here.
package persona

// Personality is the five-trait OCEAN vector, each component in [0,1].
type Personality struct {
	Openness          float64 `yaml:"openness" json:"openness"`
	Conscientiousness float64 `yaml:"conscientiousness" json:"conscientiousness"`
	Extraversion      float64 `yaml:"extraversion" json:"extraversion"`
	Agreeableness     float64 `yaml:"agreeableness" json:"agreeableness"`
	Neuroticism       float64 `yaml:"neuroticism" json:"neuroticism"`
}

// VoiceGuidance captures a template's register and patterns for the composed
// system prompt: tone, grammatical register, recurring phrasing patterns,
// and phrasing to avoid.
type VoiceGuidance struct {
	Style    string   `yaml:"style" json:"style"`
	Register string   `yaml:"register" json:"register"`
	Patterns []string `yaml:"patterns" json:"patterns"`
	Avoid    []string `yaml:"avoid" json:"avoid"`
}

// Template is a reusable epistemic lens + voice guidance + default
// personality that one or more personas reference.
type Template struct {
	ID                 string        `yaml:"id" json:"id"`
	Name               string        `yaml:"name" json:"name"`
	Description        string        `yaml:"description" json:"description"`
	EpistemicLens      string        `yaml:"epistemic_lens" json:"epistemic_lens"`
	VoiceGuidance      VoiceGuidance `yaml:"voice_guidance" json:"voice_guidance"`
	DefaultPersonality Personality   `yaml:"default_personality" json:"default_personality"`
}

// Persona is a named voice with a fixed prompt, color, and OCEAN personality,
// referencing a Template for its epistemic lens and default voice guidance.
type Persona struct {
	ID               string       `yaml:"id" json:"id"`
	Name             string       `yaml:"name" json:"name"`
	Color            string       `yaml:"color" json:"color"`
	TemplateID       string       `yaml:"template" json:"template_id"`
	Description      string       `yaml:"description" json:"description"`
	Character        string       `yaml:"character" json:"character"`
	Personality      *Personality `yaml:"personality,omitempty" json:"personality,omitempty"`
	SignaturePhrases []string     `yaml:"signature_phrases" json:"signature_phrases"`
	PromptAdditions  string       `yaml:"prompt_additions" json:"prompt_additions"`
}

// EffectivePersonality returns the persona's own OCEAN override when set,
// otherwise the template's default.
func EffectivePersonality(p Persona, t Template) Personality {
	if p.Personality != nil {
		return *p.Personality
	}
	return t.DefaultPersonality
}
