// ABOUTME: Offline whole-session summarizer: batch recomputation of the streaming metrics plus
// ABOUTME: bootstrap confidence intervals and threshold flags, run once a session completes (spec §4.12).
package analysis

import (
	"math/rand"
	"sort"

	"github.com/m3data/mase-engine/session"
)

// ConfidenceInterval is a symmetric percentile interval from bootstrap
// resampling.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// SummarizeOptions configures the offline pass. Bootstrap CIs are optional
// since they cost O(Resamples) recomputation passes over the session.
type SummarizeOptions struct {
	Bootstrap bool
	Resamples int // default 300
	Seed      int64
}

// SummaryFlags are the threshold crossings the summarizer highlights for a
// human reviewing a completed session (spec §4.12).
type SummaryFlags struct {
	HighCurvature    bool `json:"high_curvature"`     // mean curvature >= 0.35
	PersistentAlpha  bool `json:"persistent_alpha"`   // DFA alpha in [0.70, 0.90]
	HighEntropyShift bool `json:"high_entropy_shift"` // entropy shift >= 0.12
}

// SessionSummary is the full offline analysis result for one completed
// session.
type SessionSummary struct {
	SessionID      string              `json:"session_id"`
	TurnCount      int                 `json:"turn_count"`
	MeanDeltaKappa float64             `json:"mean_delta_kappa"`
	DeltaKappaCI   *ConfidenceInterval `json:"delta_kappa_ci,omitempty"`

	DeltaKappaNullP float64 `json:"delta_kappa_null_p,omitempty"`

	DFAAlpha   float64             `json:"dfa_alpha"`
	DFAR2      float64             `json:"dfa_r2"`
	DFAAlphaCI *ConfidenceInterval `json:"dfa_alpha_ci,omitempty"`

	EntropyShift          float64             `json:"entropy_shift"`
	EntropyShiftCI        *ConfidenceInterval `json:"entropy_shift_ci,omitempty"`
	EntropyShiftStability float64             `json:"entropy_shift_stability,omitempty"`

	VelocityMean float64 `json:"velocity_mean"`
	VelocityStd  float64 `json:"velocity_std"`
	VelocityMax  float64 `json:"velocity_max"`

	PathLength   float64 `json:"path_length"`
	Displacement float64 `json:"displacement"`
	Tortuosity   float64 `json:"tortuosity"`

	BasinSequence           []string       `json:"basin_sequence"`
	BasinDistribution       map[string]int `json:"basin_distribution"`
	BasinTransitions        int            `json:"basin_transitions"`
	DominantBasin           string         `json:"dominant_basin"`
	DominantBasinPercentage float64        `json:"dominant_basin_percentage"`

	VoiceDistinctiveness         float64        `json:"voice_distinctiveness"`
	CoherencePatternDistribution map[string]int `json:"coherence_pattern_distribution"`
	MeanIntegrityScore           float64        `json:"mean_integrity_score"`
	FinalIntegrityLabel          string         `json:"final_integrity_label"`

	InquiryMimicryRatio float64 `json:"inquiry_mimicry_ratio"`

	Flags SummaryFlags `json:"flags"`
}

const (
	curvatureFlagThreshold = 0.35
	alphaFlagLow           = 0.70
	alphaFlagHigh          = 0.90
	entropyFlagThreshold   = 0.12
	defaultResamples        = 300
	defaultNullPermutations = 200
)

// Summarize runs the full offline analysis over a completed session's
// turns. Turns without an embedding (e.g. a human turn, or one stored to a
// sidecar file the caller chose not to load) are skipped for the
// embedding-dependent statistics but still counted in TurnCount.
func Summarize(sessionID string, turns []session.TurnRecord, opts SummarizeOptions) *SessionSummary {
	embeddings, _ := extractEmbeddings(turns)

	velocities := SemanticVelocities(embeddings)
	curvatures := curvatureSeries(embeddings)
	meanKappa := Mean(curvatures)

	alpha, r2 := DFA(velocities)

	pre, post := splitHalves(embeddings)
	entropyShift := EntropyShift(pre, post)

	// Replay every turn through a fresh StreamingAnalyzer so the offline
	// basin_sequence is bit-for-bit what a live session's streaming
	// TurnState.basin would have emitted for the same inputs.
	analyzer := NewStreamingAnalyzer(5)
	states := make([]TurnState, 0, len(turns))
	for _, t := range turns {
		states = append(states, analyzer.Update(t.AgentID, t.Content, t.Embedding))
	}

	distribution := analyzer.basins.Distribution()
	dominant, dominantPct := dominantBasin(distribution, len(states))
	pathLength, displacement, tortuosity := trajectoryShape(analyzer.psiHistory)

	summary := &SessionSummary{
		SessionID:      sessionID,
		TurnCount:      len(turns),
		MeanDeltaKappa: meanKappa,
		DFAAlpha:       alpha,
		DFAR2:          r2,
		EntropyShift:   entropyShift,

		VelocityMean: Mean(velocities),
		VelocityStd:  StdDev(velocities),
		VelocityMax:  maxOf(velocities),

		PathLength:   pathLength,
		Displacement: displacement,
		Tortuosity:   tortuosity,

		BasinSequence:           analyzer.basins.Sequence(),
		BasinDistribution:       distribution,
		BasinTransitions:        analyzer.basins.Transitions(),
		DominantBasin:           dominant,
		DominantBasinPercentage: dominantPct,

		VoiceDistinctiveness:         lastVoiceDistinctiveness(states),
		CoherencePatternDistribution: coherenceDistribution(states),
		MeanIntegrityScore:           meanIntegrity(states),
		FinalIntegrityLabel:          finalIntegrityLabel(states),

		InquiryMimicryRatio: inquiryMimicryRatio(distribution),
	}

	if opts.Bootstrap {
		resamples := opts.Resamples
		if resamples <= 0 {
			resamples = defaultResamples
		}
		summary.DeltaKappaCI = bootstrapCI(curvatures, resamples, opts.Seed, Mean)
		summary.DeltaKappaNullP = shuffledCurvatureNullP(embeddings, meanKappa, defaultNullPermutations, opts.Seed)

		summary.DFAAlphaCI = bootstrapAlphaCI(velocities, resamples, opts.Seed)

		summary.EntropyShiftCI = bootstrapEntropyShiftCI(pre, post, resamples, opts.Seed)
		summary.EntropyShiftStability = entropyShiftStability(summary.EntropyShiftCI, pre, post, resamples, opts.Seed)
	}

	summary.Flags = SummaryFlags{
		HighCurvature:    meanKappa >= curvatureFlagThreshold,
		PersistentAlpha:  alpha >= alphaFlagLow && alpha <= alphaFlagHigh,
		HighEntropyShift: entropyShift >= entropyFlagThreshold,
	}
	return summary
}

func extractEmbeddings(turns []session.TurnRecord) ([][]float32, []string) {
	var embeddings [][]float32
	var texts []string
	for _, t := range turns {
		if len(t.Embedding) == 0 {
			continue
		}
		embeddings = append(embeddings, t.Embedding)
		texts = append(texts, t.Content)
	}
	return embeddings, texts
}

func curvatureSeries(embeddings [][]float32) []float64 {
	if len(embeddings) < 4 {
		return nil
	}
	out := make([]float64, 0, len(embeddings)-3)
	for i := 0; i+4 <= len(embeddings); i++ {
		out = append(out, Curvature(embeddings[i:i+4]))
	}
	return out
}

func splitHalves(embeddings [][]float32) (pre, post [][]float32) {
	n := len(embeddings)
	mid := n / 2
	return embeddings[:mid], embeddings[mid:]
}

// inquiryMimicryRatio is inquiry / (inquiry + mimicry) over the basin
// distribution's Collaborative Inquiry and Cognitive Mimicry counts, 0.5
// when neither basin appeared.
func inquiryMimicryRatio(distribution map[string]int) float64 {
	inquiry := distribution[BasinCollaborativeInquiry]
	mimicry := distribution[BasinCognitiveMimicry]
	if inquiry+mimicry == 0 {
		return 0.5
	}
	return float64(inquiry) / float64(inquiry+mimicry)
}

func dominantBasin(distribution map[string]int, turnCount int) (string, float64) {
	best, bestCount := "", 0
	for label, count := range distribution {
		if count > bestCount || (count == bestCount && label < best) {
			best, bestCount = label, count
		}
	}
	if turnCount == 0 || best == "" {
		return "", 0
	}
	return best, float64(bestCount) / float64(turnCount)
}

// trajectoryShape reports the Ψ-trajectory's total path length, net
// displacement, and tortuosity (path / displacement, 1 for a degenerate
// trajectory).
func trajectoryShape(psiHistory []PsiVector) (pathLength, displacement, tortuosity float64) {
	if len(psiHistory) < 2 {
		return 0, 0, 1
	}
	for i := 1; i < len(psiHistory); i++ {
		pathLength += norm3(diff3(psiHistory[i].toFloat64(), psiHistory[i-1].toFloat64()))
	}
	displacement = norm3(diff3(psiHistory[len(psiHistory)-1].toFloat64(), psiHistory[0].toFloat64()))
	if displacement == 0 {
		return pathLength, 0, 1
	}
	return pathLength, displacement, pathLength / displacement
}

func lastVoiceDistinctiveness(states []TurnState) float64 {
	if len(states) == 0 {
		return 0
	}
	return states[len(states)-1].VoiceDistinctiveness
}

func coherenceDistribution(states []TurnState) map[string]int {
	out := map[string]int{}
	for _, s := range states {
		out[s.CoherencePattern]++
	}
	return out
}

func meanIntegrity(states []TurnState) float64 {
	if len(states) == 0 {
		return 0
	}
	var sum float64
	for _, s := range states {
		sum += s.IntegrityScore
	}
	return sum / float64(len(states))
}

func finalIntegrityLabel(states []TurnState) string {
	if len(states) == 0 {
		return ""
	}
	return states[len(states)-1].IntegrityLabel
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// bootstrapCI resamples xs with replacement resamples times, applies stat
// to each resample, and returns the 2.5/97.5 percentile interval.
func bootstrapCI(xs []float64, resamples int, seed int64, stat func([]float64) float64) *ConfidenceInterval {
	if len(xs) == 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	estimates := make([]float64, resamples)
	sample := make([]float64, len(xs))
	for r := 0; r < resamples; r++ {
		for i := range sample {
			sample[i] = xs[rng.Intn(len(xs))]
		}
		estimates[r] = stat(sample)
	}
	return percentileInterval(estimates)
}

// bootstrapEntropyShiftCI resamples within each half independently (ΔH is
// not a per-turn statistic, so it can't reuse bootstrapCI's per-element
// resampling).
func bootstrapEntropyShiftCI(pre, post [][]float32, resamples int, seed int64) *ConfidenceInterval {
	if len(pre) < 2 || len(post) < 2 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	estimates := make([]float64, resamples)
	for r := 0; r < resamples; r++ {
		preSample := resampleVectors(pre, rng)
		postSample := resampleVectors(post, rng)
		estimates[r] = EntropyShift(preSample, postSample)
	}
	return percentileInterval(estimates)
}

// shuffledCurvatureNullP runs a shuffled-trajectory permutation null for
// mean Δκ: shuffle the embedding order, recompute the curvature series, and
// report the one-sided fraction of null means at or above the observed
// value (spec §4.12).
func shuffledCurvatureNullP(embeddings [][]float32, observed float64, permutations int, seed int64) float64 {
	if len(embeddings) < 4 {
		return 1
	}
	rng := rand.New(rand.NewSource(seed))
	shuffled := make([][]float32, len(embeddings))
	atOrAbove := 0
	for p := 0; p < permutations; p++ {
		copy(shuffled, embeddings)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		nullMean := Mean(curvatureSeries(shuffled))
		if nullMean >= observed {
			atOrAbove++
		}
	}
	return float64(atOrAbove) / float64(permutations)
}

// bootstrapAlphaCI resamples the velocity series with replacement and
// refits the DFA scaling exponent on each resample.
func bootstrapAlphaCI(velocities []float64, resamples int, seed int64) *ConfidenceInterval {
	if len(velocities) == 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	estimates := make([]float64, resamples)
	sample := make([]float64, len(velocities))
	for r := 0; r < resamples; r++ {
		for i := range sample {
			sample[i] = velocities[rng.Intn(len(velocities))]
		}
		alpha, _ := DFA(sample)
		estimates[r] = alpha
	}
	return percentileInterval(estimates)
}

// entropyShiftStability reports 1 − std/mean of the ΔH bootstrap
// distribution (spec §4.12); a value near 1 indicates a stable estimate.
func entropyShiftStability(ci *ConfidenceInterval, pre, post [][]float32, resamples int, seed int64) float64 {
	if ci == nil {
		return 0
	}
	rng := rand.New(rand.NewSource(seed))
	estimates := make([]float64, resamples)
	for r := 0; r < resamples; r++ {
		estimates[r] = EntropyShift(resampleVectors(pre, rng), resampleVectors(post, rng))
	}
	mean := Mean(estimates)
	if mean == 0 {
		return 0
	}
	return 1 - StdDev(estimates)/mean
}

func resampleVectors(xs [][]float32, rng *rand.Rand) [][]float32 {
	out := make([][]float32, len(xs))
	for i := range out {
		out[i] = xs[rng.Intn(len(xs))]
	}
	return out
}

func percentileInterval(xs []float64) *ConfidenceInterval {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	lo := percentile(sorted, 2.5)
	hi := percentile(sorted, 97.5)
	return &ConfidenceInterval{Lower: lo, Upper: hi}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
