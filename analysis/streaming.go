// ABOUTME: Incremental per-turn semantic-analysis pipeline: rolling window metrics, Ψ-vector,
// ABOUTME: basin classification, and trajectory dynamics, recomputed turn by turn (spec §4.9).
package analysis

import (
	"math"
	"sort"
)

// PsiVector is the three-component state descriptor computed for every
// turn: semantic, temporal, and affective axes, each roughly in [-1, 1]
// (spec §4.9 step 3, GLOSSARY).
type PsiVector struct {
	Semantic  float64
	Temporal  float64
	Affective float64
}

func (p PsiVector) toFloat64() []float64 {
	return []float64{p.Semantic, p.Temporal, p.Affective}
}

// TurnState is the full per-turn analysis result, the basis of the
// streamed MetricsEvent (spec §4.9, §6.2).
type TurnState struct {
	Psi                  PsiVector
	Basin                string
	BasinConfidence      float64
	VoiceDistinctiveness float64
	HedgingDensity       float64
	DeltaKappa           float64
	Speed                float64
	Acceleration         float64
	CoherencePattern     string
	IntegrityScore       float64
	IntegrityLabel       string
}

// windowMetrics is one entry of the rolling-window (Δκ, ΔH, α) computed
// over the last W embeddings, appended once |embeddings| >= W (spec §4.9
// step 1).
type windowMetrics struct {
	DeltaKappa float64
	EntropyH   float64
	Alpha      float64
}

// StreamingAnalyzer recomputes the full analysis pipeline incrementally as
// each turn arrives. One instance lives per active session, fed by the
// generation loop after every logged turn (spec §4.9).
type StreamingAnalyzer struct {
	window int

	texts      []string
	agents     []string
	embeddings [][]float32

	voiceSums   map[string][]float64
	voiceCounts map[string]int

	windowMetricsHistory []windowMetrics
	psiHistory           []PsiVector

	basins *BasinHistory
}

// NewStreamingAnalyzer builds an analyzer with the given rolling window
// (spec default W=5).
func NewStreamingAnalyzer(window int) *StreamingAnalyzer {
	if window <= 0 {
		window = 5
	}
	return &StreamingAnalyzer{
		window:      window,
		voiceSums:   map[string][]float64{},
		voiceCounts: map[string]int{},
		basins:      NewBasinHistory(),
	}
}

// Update folds one new turn into the analyzer's state and returns its
// TurnState. agentID and embedding may be zero-valued for a human turn
// without an embedding; the analyzer degrades gracefully.
func (a *StreamingAnalyzer) Update(agentID, text string, embedding []float32) TurnState {
	a.texts = append(a.texts, text)
	a.agents = append(a.agents, agentID)
	a.embeddings = append(a.embeddings, embedding)
	a.accumulateVoice(agentID, embedding)

	validEmbeddings := a.nonEmptyEmbeddings()

	// Step 1: rolling window metrics, appended once the window is full.
	if len(validEmbeddings) >= a.window {
		tail := validEmbeddings[len(validEmbeddings)-a.window:]
		a.windowMetricsHistory = append(a.windowMetricsHistory, computeMetrics(tail))
	}

	// Step 2: current (whole-session-so-far) metrics.
	deltaKappa, entropyH, alpha := currentMetrics(validEmbeddings)

	// Step 3: Ψ-vector.
	psi := PsiVector{
		Semantic:  psiSemantic(deltaKappa, entropyH, alpha),
		Temporal:  a.psiTemporal(),
		Affective: psiAffectiveOnly(a.texts),
	}
	a.psiHistory = append(a.psiHistory, psi)

	// Step 4: dialogue context.
	hedging := HedgingDensity(a.texts...)
	turnLenVar := a.turnLengthVarianceAcrossAgents()
	dkVar := a.deltaKappaVariance()
	voiceDist := a.voiceDistinctiveness()
	velocities := SemanticVelocities(validEmbeddings)
	coherence := coherencePattern(velocities)

	ctx := DialogueContext{
		DeltaKappa:           deltaKappa,
		VoiceDistinctiveness: voiceDist,
		HedgingDensity:       hedging,
		TurnLengthVariance:   turnLenVar,
		DeltaKappaVariance:   dkVar,
		CoherencePattern:     coherence,
	}

	// Step 5: basin classification.
	basin, confidence := a.basins.Classify(psi, ctx)

	// Step 6: trajectory update (speed and acceleration; no local curvature
	// is computed).
	speed, accel := trajectorySpeedAccel(a.psiHistory)

	integrity, integrityLabel := integrityScore(psi, ctx, confidence)

	return TurnState{
		Psi:                  psi,
		Basin:                basin,
		BasinConfidence:      confidence,
		VoiceDistinctiveness: voiceDist,
		HedgingDensity:       hedging,
		DeltaKappa:           deltaKappa,
		Speed:                speed,
		Acceleration:         accel,
		CoherencePattern:     coherence,
		IntegrityScore:       integrity,
		IntegrityLabel:       integrityLabel,
	}
}

func (a *StreamingAnalyzer) nonEmptyEmbeddings() [][]float32 {
	var out [][]float32
	for _, e := range a.embeddings {
		if len(e) > 0 {
			out = append(out, e)
		}
	}
	return out
}

// computeMetrics computes (Δκ, ΔH, α) over one window of embeddings (spec
// §4.9 step 1): Δκ via Curvature, α via DFA on the window's semantic
// velocities, ΔH via EntropyShift on the window split into first/second
// halves.
func computeMetrics(window [][]float32) windowMetrics {
	mid := len(window) / 2
	alpha, _ := DFA(SemanticVelocities(window))
	return windowMetrics{
		DeltaKappa: Curvature(window),
		EntropyH:   EntropyShift(window[:mid], window[mid:]),
		Alpha:      alpha,
	}
}

// currentMetrics computes (Δκ, ΔH, α) over all embeddings seen so far, or
// the spec-mandated defaults (0, 0, 0.5) if fewer than 4 are available
// (spec §4.9 step 2).
func currentMetrics(all [][]float32) (deltaKappa, entropyH, alpha float64) {
	if len(all) < 4 {
		return 0, 0, 0.5
	}
	mid := len(all) / 2
	a, _ := DFA(SemanticVelocities(all))
	return Curvature(all), EntropyShift(all[:mid], all[mid:]), a
}

// Reference centers and scales for the standardized Ψ-semantic dot product
// (spec §4.9 step 3).
const (
	refCenterDeltaKappa = 0.15
	refCenterEntropyH   = 0.15
	refCenterAlpha      = 0.8
	refScaleDeltaKappa  = 0.15
	refScaleEntropyH    = 0.15
	refScaleAlpha       = 0.3
)

var equalWeight = 1 / math.Sqrt(3)

// psiSemantic standardizes (Δκ, ΔH, α) against fixed reference centers and
// scales, combines them with equal weights, and squashes through tanh
// (spec §4.9 step 3).
func psiSemantic(deltaKappa, entropyH, alpha float64) float64 {
	zKappa := (deltaKappa - refCenterDeltaKappa) / refScaleDeltaKappa
	zEntropy := (entropyH - refCenterEntropyH) / refScaleEntropyH
	zAlpha := (alpha - refCenterAlpha) / refScaleAlpha
	dot := equalWeight*zKappa + equalWeight*zEntropy + equalWeight*zAlpha
	return math.Tanh(dot)
}

// psiTemporal is 1/(1+CV) of the Δκ-trail across window_metrics, once at
// least 3 window-metric entries exist; else the spec's 0.5 default (spec
// §4.9 step 3).
func (a *StreamingAnalyzer) psiTemporal() float64 {
	if len(a.windowMetricsHistory) < 3 {
		return 0.5
	}
	trail := make([]float64, len(a.windowMetricsHistory))
	for i, m := range a.windowMetricsHistory {
		trail[i] = m.DeltaKappa
	}
	return 1 / (1 + CoefficientOfVariation(trail))
}

// psiAffectiveOnly adapts AffectiveSubstrate's three-value return to just
// the Ψ-component the streaming pipeline needs per turn.
func psiAffectiveOnly(texts []string) float64 {
	psi, _, _, _ := AffectiveSubstrate(texts)
	return psi
}

// deltaKappaVariance is the variance across the window_metrics Δκ-trail
// (spec §4.9 step 4).
func (a *StreamingAnalyzer) deltaKappaVariance() float64 {
	if len(a.windowMetricsHistory) == 0 {
		return 0
	}
	trail := make([]float64, len(a.windowMetricsHistory))
	for i, m := range a.windowMetricsHistory {
		trail[i] = m.DeltaKappa
	}
	return Variance(trail)
}

// turnLengthVarianceAcrossAgents computes the variance of each agent's
// mean turn-word-count, across agents (spec §4.9 step 4's
// turn_length_variance — a variance OF per-agent means, not a per-turn
// rolling variance).
func (a *StreamingAnalyzer) turnLengthVarianceAcrossAgents() float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for i, agentID := range a.agents {
		if agentID == "" {
			continue
		}
		sums[agentID] += float64(len(wordRe.FindAllString(a.texts[i], -1)))
		counts[agentID]++
	}
	if len(sums) == 0 {
		return 0
	}
	ids := make([]string, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	means := make([]float64, len(ids))
	for i, id := range ids {
		means[i] = sums[id] / float64(counts[id])
	}
	return Variance(means)
}

func (a *StreamingAnalyzer) accumulateVoice(agentID string, embedding []float32) {
	if agentID == "" || len(embedding) == 0 {
		return
	}
	sum, ok := a.voiceSums[agentID]
	if !ok {
		sum = make([]float64, len(embedding))
	}
	for i, v := range embedding {
		sum[i] += float64(v)
	}
	a.voiceSums[agentID] = sum
	a.voiceCounts[agentID]++
}

// voiceDistinctiveness is the mean pairwise cosine distance (1-cosine)
// between per-agent mean embeddings, across every pair of agents with at
// least one embedded turn so far (spec §4.9 step 4).
func (a *StreamingAnalyzer) voiceDistinctiveness() float64 {
	ids := make([]string, 0, len(a.voiceSums))
	for id := range a.voiceSums {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) < 2 {
		return 0
	}

	means := make([][]float32, len(ids))
	for i, id := range ids {
		sum := a.voiceSums[id]
		count := a.voiceCounts[id]
		mean := make([]float32, len(sum))
		for j, v := range sum {
			mean[j] = float32(v / float64(count))
		}
		means[i] = mean
	}

	var total float64
	var pairs int
	for i := 0; i < len(means); i++ {
		for j := i + 1; j < len(means); j++ {
			total += 1 - cosine(means[i], means[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

// coherencePattern classifies the dialogue's recent rhythm from the lag-1
// autocorrelation of the per-turn semantic velocity series (spec §4.9
// step 4): <= -0.2 breathing, >= 0.3 locked, else fragmented if
// variance(velocity) > 0.1, else transitional.
func coherencePattern(velocities []float64) string {
	if len(velocities) < 2 {
		return "transitional"
	}
	ac := Autocorrelation(velocities)
	switch {
	case ac <= -0.2:
		return "breathing"
	case ac >= 0.3:
		return "locked"
	case Variance(velocities) > 0.1:
		return "fragmented"
	default:
		return "transitional"
	}
}

// trajectorySpeedAccel computes the Euclidean-norm speed (first
// difference of the Ψ-vector sequence) and acceleration magnitude (norm
// of the second difference), per spec §4.9 step 6.
func trajectorySpeedAccel(psiHistory []PsiVector) (speed, accel float64) {
	n := len(psiHistory)
	if n < 2 {
		return 0, 0
	}
	v1 := diff3(psiHistory[n-2].toFloat64(), psiHistory[n-1].toFloat64())
	speed = norm3(v1)
	if n < 3 {
		return speed, 0
	}
	v0 := diff3(psiHistory[n-3].toFloat64(), psiHistory[n-2].toFloat64())
	a := diff3(v0, v1)
	accel = norm3(a)
	return speed, accel
}

func diff3(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = b[i] - a[i]
	}
	return out
}

func norm3(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

// integrityScore is a single scalar summary of how well-formed the current
// dialogue state is, surfaced as integrity_score/integrity_label on the
// streamed MetricsEvent. Not separately specified by §4.9-§4.11; derived
// from the same Ψ/context inputs the basin classifier already computed,
// to avoid inventing an unrelated formula.
func integrityScore(psi PsiVector, ctx DialogueContext, basinConfidence float64) (float64, string) {
	score := 0.4*clamp01((psi.Semantic+1)/2) +
		0.2*clamp01((psi.Affective+1)/2) +
		0.2*clamp01(ctx.VoiceDistinctiveness) +
		0.2*basinConfidence
	score -= 0.1 * clamp01(ctx.HedgingDensity*5)
	score = clamp01(score)

	label := "stable"
	switch {
	case score >= 0.7:
		label = "thriving"
	case score < 0.35:
		label = "fragile"
	}
	return score, label
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
