// ABOUTME: Strips a model's tendency to prefix its reply with its own name or "As X, ..." (voice-bleed).
// ABOUTME: Idempotent by construction: stripping an already-clean string is a no-op (spec §8 property 9).
package engine

import (
	"regexp"
	"strings"
)

// StripVoiceBleed removes leading voice-bleed prefixes naming agentName from
// text, per spec §4.2 step e, then trims surrounding whitespace.
func StripVoiceBleed(text, agentName string) string {
	name := regexp.QuoteMeta(agentName)
	patterns := []struct {
		re   *regexp.Regexp
		with string
	}{
		{regexp.MustCompile(`(?i)^\s*` + name + `\s*[:,.]\s*`), ""},
		{regexp.MustCompile(`(?i)^\s*As\s+` + name + `[,:]?\s*`), ""},
		{regexp.MustCompile(`(?i)^\s*As\s+` + name + `\s+I\s+`), "I "},
		{regexp.MustCompile(`(?i)^\s*` + name + `\s+here[.,]?\s*`), ""},
		{regexp.MustCompile(`(?i)^\s*I\s+would\s+respond:\s*`), ""},
	}

	// Repeat the passes until nothing changes, so stacked prefixes such as
	// "As Orin, Orin: ..." are all removed and a second call is a no-op.
	out := text
	for {
		prev := out
		for _, p := range patterns {
			out = p.re.ReplaceAllString(out, p.with)
		}
		if out == prev {
			break
		}
	}
	return strings.TrimSpace(out)
}
