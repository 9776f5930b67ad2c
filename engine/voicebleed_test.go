// ABOUTME: Tests for voice-bleed stripping rules and their idempotence.
package engine

import "testing"

func TestStripVoiceBleed(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"name prefix colon", "Orin: I think the river matters.", "I think the river matters."},
		{"as name comma", "As Orin, I believe we should wait.", "I believe we should wait."},
		{"as name I", "As Orin I believe we should wait.", "I believe we should wait."},
		{"name here", "Orin here. Let's continue.", "Let's continue."},
		{"would respond", "I would respond: the tide is rising.", "the tide is rising."},
		{"clean text untouched", "The tide is rising steadily.", "The tide is rising steadily."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripVoiceBleed(tt.text, "Orin")
			if got != tt.want {
				t.Errorf("StripVoiceBleed(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestStripVoiceBleedIdempotent(t *testing.T) {
	inputs := []string{
		"Orin: I think the river matters.",
		"As Orin, I believe we should wait.",
		"Plain text with no bleed at all.",
	}
	for _, in := range inputs {
		once := StripVoiceBleed(in, "Orin")
		twice := StripVoiceBleed(once, "Orin")
		if once != twice {
			t.Errorf("not idempotent: strip(%q)=%q, strip(strip)=%q", in, once, twice)
		}
	}
}
