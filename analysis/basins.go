// ABOUTME: Basin classification cascade over the Ψ-vector, raw metrics, and dialogue context,
// ABOUTME: with hysteresis so the label doesn't flicker turn to turn (spec §4.11).
package analysis

// Canonical basin labels, in the order spec §4.11 introduces them.
const (
	BasinDeepResonance           = "Deep Resonance"
	BasinCollaborativeInquiry    = "Collaborative Inquiry"
	BasinCognitiveMimicry        = "Cognitive Mimicry"
	BasinReflexivePerformance    = "Reflexive Performance"
	BasinSycophanticConvergence  = "Sycophantic Convergence"
	BasinCreativeDilation        = "Creative Dilation"
	BasinGenerativeConflict      = "Generative Conflict"
	BasinDissociation            = "Dissociation"
	BasinTransitional            = "Transitional"
)

// DialogueContext carries the turn-level metrics a basin rule reads besides
// the Ψ-vector and raw (Δκ, ΔH, α) metrics (spec §4.9 step 4).
type DialogueContext struct {
	DeltaKappa           float64 // current Δκ (mean curvature over all embeddings so far)
	VoiceDistinctiveness float64 // mean pairwise cosine distance between per-agent mean embeddings
	HedgingDensity       float64 // hedging matches / total words, over all turns so far
	TurnLengthVariance   float64 // variance of per-agent mean word counts
	DeltaKappaVariance   float64 // variance of the window_metrics Δκ-trail
	CoherencePattern     string  // "breathing" | "locked" | "fragmented" | "transitional"
}

// classify runs the §4.11 cascade once (no hysteresis) and returns the raw
// label and its raw confidence.
func classify(psi PsiVector, ctx DialogueContext) (string, float64) {
	absS, absA := absf(psi.Semantic), absf(psi.Affective)

	// Rule 1: Deep Resonance.
	if psi.Semantic > 0.4 && psi.Affective > 0.4 && ctx.VoiceDistinctiveness > 0.3 {
		return BasinDeepResonance, minOf3(psi.Semantic, psi.Affective, ctx.VoiceDistinctiveness)
	}

	// Rule 2: Dissociation.
	if absS < 0.2 && absA < 0.2 {
		return BasinDissociation, 1 - maxOf2(absS, absA)
	}

	// Rule 3: Generative Conflict.
	if absS > 0.3 && ctx.DeltaKappa > 0.35 && psi.Affective > 0.3 {
		return BasinGenerativeConflict, minOf3(absS, ctx.DeltaKappa, psi.Affective)
	}

	// Rule 4: Creative Dilation.
	if ctx.DeltaKappa > 0.35 && psi.Affective > 0.3 {
		return BasinCreativeDilation, minOf2(ctx.DeltaKappa, psi.Affective)
	}

	// Rule 5: Sycophantic Convergence.
	if psi.Semantic > 0.3 && ctx.DeltaKappa < 0.35 && psi.Affective < 0.2 && ctx.VoiceDistinctiveness < 0.3 {
		return BasinSycophanticConvergence, minOf2(psi.Semantic, 1-ctx.VoiceDistinctiveness)
	}

	// Rule 6: weighted sub-cascade among Collaborative Inquiry, Cognitive
	// Mimicry, and Reflexive Performance.
	if absS > 0.3 && psi.Affective < 0.2 {
		return classifySubCascade(absS, ctx)
	}

	// Rule 7: dominant-axis fallback.
	return classifyDominantAxis(absS, absA, psi.Temporal, ctx.DeltaKappa)
}

// classifySubCascade implements §4.11 rule 6: score three candidates by
// adding fixed bonuses and pick the argmax.
func classifySubCascade(absS float64, ctx DialogueContext) (string, float64) {
	var inquiry, mimicry, reflexive float64

	if ctx.HedgingDensity > 0.02 {
		inquiry += 0.3
	}
	if ctx.VoiceDistinctiveness > 0.3 {
		inquiry += 0.3
	}
	if ctx.DeltaKappaVariance > 0.01 {
		inquiry += 0.2
	}
	if ctx.CoherencePattern == "breathing" {
		inquiry += 0.2
	}

	if ctx.HedgingDensity < 0.01 {
		mimicry += 0.3
	}
	if ctx.VoiceDistinctiveness < 0.2 {
		mimicry += 0.3
	}
	if ctx.DeltaKappaVariance < 0.005 {
		mimicry += 0.2
	}
	if ctx.CoherencePattern == "locked" || ctx.CoherencePattern == "transitional" {
		mimicry += 0.2
	}

	if ctx.HedgingDensity >= 0.01 && ctx.HedgingDensity <= 0.03 {
		reflexive += 0.3
	}
	if ctx.DeltaKappaVariance >= 0.005 && ctx.DeltaKappaVariance <= 0.015 {
		reflexive += 0.3
	}
	if ctx.CoherencePattern == "transitional" {
		reflexive += 0.2
	}
	if ctx.VoiceDistinctiveness >= 0.2 && ctx.VoiceDistinctiveness <= 0.4 {
		reflexive += 0.2
	}

	label, top, second := argmaxThree(
		BasinCollaborativeInquiry, inquiry,
		BasinCognitiveMimicry, mimicry,
		BasinReflexivePerformance, reflexive,
	)

	if top-second < 0.1 {
		return label, absS * 0.5
	}
	return label, absS * (0.5 + top*0.5)
}

// classifyDominantAxis implements §4.11 rule 7: the dominant-axis fallback.
// The spec's prose here ("return Creative Dilation or Generative
// Conflict/Cognitive Mimicry depending on Δκ; default Transitional with
// confidence 0.3") is underspecified; this is a judgment call recorded in
// DESIGN.md, not a guess at hidden intent.
func classifyDominantAxis(absS, absA, psiTemporal, deltaKappa float64) (string, float64) {
	tempDeviation := absf(psiTemporal - 0.5)
	dominant := "semantic"
	dominantVal := absS
	if absA > dominantVal {
		dominant = "affective"
		dominantVal = absA
	}
	if tempDeviation > dominantVal {
		dominant = "temporal"
		dominantVal = tempDeviation
	}

	if dominant == "temporal" {
		return BasinTransitional, 0.3
	}

	switch {
	case deltaKappa > 0.35:
		return BasinGenerativeConflict, dominantVal * 0.5
	case deltaKappa >= 0.2:
		return BasinCreativeDilation, dominantVal * 0.5
	case dominant == "semantic":
		return BasinCognitiveMimicry, dominantVal * 0.5
	default:
		return BasinTransitional, 0.3
	}
}

// argmaxThree returns the highest-scoring (label, score) and the runner-up
// score, preserving l1/l2/l3 order as the tie-break (first listed wins).
func argmaxThree(l1 string, v1 float64, l2 string, v2 float64, l3 string, v3 float64) (label string, top, second float64) {
	labels := [3]string{l1, l2, l3}
	vals := [3]float64{v1, v2, v3}

	bestIdx := 0
	for i := 1; i < 3; i++ {
		if vals[i] > vals[bestIdx] {
			bestIdx = i
		}
	}
	top = vals[bestIdx]
	label = labels[bestIdx]

	second = -1
	for i := 0; i < 3; i++ {
		if i == bestIdx {
			continue
		}
		if vals[i] > second {
			second = vals[i]
		}
	}
	return label, top, second
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func minOf2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxOf2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minOf3(a, b, c float64) float64 {
	return minOf2(minOf2(a, b), c)
}

const (
	hysteresisEntryPenalty    = 0.7
	hysteresisReinforceFactor = 1.1
	hysteresisReinforceCap    = 1.0
	hysteresisStreak          = 5
)

// BasinHistory tracks the classified basin sequence for one session and
// applies hysteresis modulation (spec §4.11): a candidate that disagrees
// with the current basin is discounted by the entry penalty; once the
// current basin has held for >= hysteresisStreak consecutive turns its
// confidence is reinforced (capped at 1.0).
type BasinHistory struct {
	current     string
	confidence  float64
	streak      int
	transitions int
	sequence    []string
	confidences []float64
}

// NewBasinHistory returns an empty basin history. The zero-value current
// basin is Transitional until the first classification.
func NewBasinHistory() *BasinHistory {
	return &BasinHistory{current: BasinTransitional}
}

// Classify runs the cascade, applies hysteresis against the current basin,
// and records the result. Returns the (possibly hysteresis-adjusted) label
// and confidence in [0, 1].
func (h *BasinHistory) Classify(psi PsiVector, ctx DialogueContext) (string, float64) {
	label, confidence := classify(psi, ctx)

	if len(h.sequence) > 0 {
		if label != h.current {
			confidence *= hysteresisEntryPenalty
		} else if h.streak >= hysteresisStreak {
			confidence = minOf2(hysteresisReinforceCap, confidence*hysteresisReinforceFactor)
		}
	}
	confidence = clamp01(confidence)

	if label != h.current {
		if len(h.sequence) > 0 {
			h.transitions++
		}
		h.streak = 1
	} else {
		h.streak++
	}
	h.current = label
	h.confidence = confidence
	h.sequence = append(h.sequence, label)
	h.confidences = append(h.confidences, confidence)
	return label, confidence
}

// Current returns the most recently classified basin and its confidence.
func (h *BasinHistory) Current() (string, float64) { return h.current, h.confidence }

// Transitions returns the number of basin changes observed so far: the
// count of adjacent differing labels in Sequence() (spec §3 invariant).
func (h *BasinHistory) Transitions() int { return h.transitions }

// Sequence returns the full basin label sequence, one per classified turn.
func (h *BasinHistory) Sequence() []string {
	return append([]string(nil), h.sequence...)
}

// Distribution returns the count of turns classified into each basin
// label, for the offline summarizer's basin_distribution.
func (h *BasinHistory) Distribution() map[string]int {
	out := map[string]int{}
	for _, l := range h.sequence {
		out[l]++
	}
	return out
}
