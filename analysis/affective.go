// ABOUTME: Lexicon-based affective substrate: hedging/vulnerability/confidence markers and a small
// ABOUTME: sentiment scorer, combined into ψ_affective over the dialogue's accumulated turns (spec §4.10).
//
// No third-party sentiment-analysis library appears anywhere in the retrieved corpus (no VADER
// port, no go-nlp package); a hand-rolled lexicon scorer is used here and logged as a
// standard-library-only component in DESIGN.md, matching the original's own lexicon approach
// rather than inventing an unrelated dependency.
package analysis

import (
	"math"
	"regexp"
	"strings"
)

var hedgingPatterns = compileAll([]string{
	`\bi think\b`, `\bi guess\b`, `\bi suppose\b`, `\bmaybe\b`, `\bperhaps\b`,
	`\bpossibly\b`, `\bprobably\b`, `\bmight\b`, `\bcould be\b`, `\bseems like\b`,
	`\bsort of\b`, `\bkind of\b`, `\bi'm not sure\b`, `\bi wonder\b`,
	`\bi feel like\b`, `\bit appears\b`, `\bit seems\b`, `\barguably\b`,
	`\bpresumably\b`, `\bapparently\b`, `\bseemingly\b`,
})

var vulnerabilityPatterns = compileAll([]string{
	`\bi feel\b`, `\bi'm feeling\b`, `\bi felt\b`,
	`\bi'm (scared|worried|afraid|anxious|nervous|uncertain|confused|overwhelmed)\b`,
	`\b(my|i) (fear|worry|concern|anxiety|doubt)\b`,
	`\bhonestly\b`, `\bto be honest\b`, `\btruthfully\b`, `\bfrankly\b`,
	`\bi don't know\b`, `\bi'm struggling\b`, `\bi'm not sure\b`, `\bi'm uncertain\b`,
	`\bafraid\b`, `\bangry\b`, `\bsad\b`, `\banxious\b`, `\bashamed\b`, `\bguilty\b`,
	`\bvulnerable\b`, `\bhelpless\b`, `\bhopeless\b`, `\blonely\b`, `\bworried\b`,
	`\bdisappointed\b`, `\bembarrassed\b`, `\binsecure\b`, `\bgrief\b`, `\bdespair\b`,
})

var confidencePatterns = compileAll([]string{
	`\bdefinitely\b`, `\bcertainly\b`, `\babsolutely\b`, `\bclearly\b`, `\bobviously\b`,
	`\bundoubtedly\b`, `\bi'm certain\b`, `\bi'm sure\b`, `\bi know\b`,
	`\bwithout doubt\b`, `\bno question\b`, `\balways\b`, `\bnever\b`, `\bmust\b`, `\bwill\b`,
})

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

func countMatches(text string, patterns []*regexp.Regexp) int {
	n := 0
	for _, re := range patterns {
		n += len(re.FindAllStringIndex(text, -1))
	}
	return n
}

// positiveWords/negativeWords are a small fixed lexicon used by the
// sentiment scorer, mirroring the original's EMOTION_WORDS set.
var positiveWords = map[string]struct{}{
	"good": {}, "great": {}, "hope": {}, "glad": {}, "interesting": {},
	"agree": {}, "curious": {}, "excited": {}, "appreciate": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "wrong": {}, "afraid": {}, "worried": {}, "doubt": {},
	"frustrated": {}, "confused": {}, "disagree": {}, "unsettled": {},
}

var wordRe = regexp.MustCompile(`[a-zA-Z']+`)

// SentimentScore returns a lexicon-based polarity score in [-1, 1]: the
// fraction of matched words that are positive minus the fraction negative.
func SentimentScore(text string) float64 {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return 0
	}
	var pos, neg int
	for _, w := range words {
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}

func wordCount(text string) int {
	return len(wordRe.FindAllString(text, -1))
}

func turnConfidenceDensity(text string) float64 {
	n := wordCount(text)
	if n == 0 {
		return 0
	}
	return float64(countMatches(text, confidencePatterns)) / float64(n)
}

// HedgingDensity returns the dialogue-wide hedging density: total hedging
// regex matches over total words across every text given (spec §4.9 step 4).
func HedgingDensity(texts ...string) float64 {
	var matches, words int
	for _, t := range texts {
		matches += countMatches(t, hedgingPatterns)
		words += wordCount(t)
	}
	if words == 0 {
		return 0
	}
	return float64(matches) / float64(words)
}

// VulnerabilityScore returns the dialogue-wide vulnerability density: total
// vulnerability regex matches over total words.
func VulnerabilityScore(texts []string) float64 {
	var matches, words int
	for _, t := range texts {
		matches += countMatches(t, vulnerabilityPatterns)
		words += wordCount(t)
	}
	if words == 0 {
		return 0
	}
	return float64(matches) / float64(words)
}

const (
	affectiveSentCeiling  = 0.5
	affectiveHedgeCeiling = 0.1
	affectiveVulnCeiling  = 0.05
	affectiveConfCeiling  = 0.01
)

// AffectiveSubstrate computes ψ_affective over the dialogue's accumulated
// texts so far, per spec §4.10:
//
//	S = per-turn sentiment trajectory; sent = var(S) / 0.5
//	hedge = hedging_density / 0.1
//	vuln  = vulnerability_score / 0.05
//	conf  = var(per-turn confidence density) / 0.01
//	psi_raw = 0.3*sent + 0.3*hedge + 0.3*vuln + 0.1*conf   (each term clipped to [0,1])
//	psi_affective = tanh(2*(psi_raw - 0.5))
//
// Returns psi_affective plus the three raw (un-normalized) components for
// callers that want to surface them directly (hedging density, vulnerability
// score, confidence variance).
func AffectiveSubstrate(texts []string) (psiAffective, hedgingDensity, vulnerabilityScore, confidenceVariance float64) {
	if len(texts) == 0 {
		return 0, 0, 0, 0
	}

	sentiment := make([]float64, len(texts))
	confDensities := make([]float64, len(texts))
	for i, t := range texts {
		sentiment[i] = SentimentScore(t)
		confDensities[i] = turnConfidenceDensity(t)
	}

	sentVar := Variance(sentiment)
	hedgingDensity = HedgingDensity(texts...)
	vulnerabilityScore = VulnerabilityScore(texts)
	confidenceVariance = Variance(confDensities)

	sentNorm := clamp01(sentVar / affectiveSentCeiling)
	hedgeNorm := clamp01(hedgingDensity / affectiveHedgeCeiling)
	vulnNorm := clamp01(vulnerabilityScore / affectiveVulnCeiling)
	confNorm := clamp01(confidenceVariance / affectiveConfCeiling)

	psiRaw := 0.3*sentNorm + 0.3*hedgeNorm + 0.3*vulnNorm + 0.1*confNorm
	psiAffective = math.Tanh(2 * (psiRaw - 0.5))
	return psiAffective, hedgingDensity, vulnerabilityScore, confidenceVariance
}
