package analysis

import "testing"

func TestPsiTemporalDefaultBeforeThreeWindows(t *testing.T) {
	a := NewStreamingAnalyzer(5)
	// Fewer than 5 embeddings means the rolling window never fills, so
	// psi_temporal must stay at the spec's 0.5 default the whole time.
	for i := 0; i < 4; i++ {
		state := a.Update("agent-a", "hello there friend", unitEmbedding(i))
		if state.Psi.Temporal != 0.5 {
			t.Errorf("turn %d: psi_temporal = %v, want 0.5 default", i, state.Psi.Temporal)
		}
	}
}

func TestCoherencePatternTransitionalWhenTooShort(t *testing.T) {
	if p := coherencePattern(nil); p != "transitional" {
		t.Errorf("coherencePattern(nil) = %q, want transitional", p)
	}
	if p := coherencePattern([]float64{0.2}); p != "transitional" {
		t.Errorf("coherencePattern(1 elem) = %q, want transitional", p)
	}
}

func TestVoiceDistinctivenessRequiresTwoAgents(t *testing.T) {
	a := NewStreamingAnalyzer(5)
	state := a.Update("agent-a", "a solitary voice", unitEmbedding(0))
	if state.VoiceDistinctiveness != 0 {
		t.Errorf("single-agent VoiceDistinctiveness = %v, want 0", state.VoiceDistinctiveness)
	}
}

func TestTrajectorySpeedZeroOnFirstTurn(t *testing.T) {
	a := NewStreamingAnalyzer(5)
	state := a.Update("agent-a", "first turn", unitEmbedding(0))
	if state.Speed != 0 || state.Acceleration != 0 {
		t.Errorf("first-turn Speed/Acceleration = %v/%v, want 0/0", state.Speed, state.Acceleration)
	}
}

func TestCurrentMetricsDefaultUnderFourEmbeddings(t *testing.T) {
	deltaKappa, entropyH, alpha := currentMetrics([][]float32{{1, 0}, {0, 1}})
	if deltaKappa != 0 || entropyH != 0 || alpha != 0.5 {
		t.Errorf("currentMetrics(<4) = (%v,%v,%v), want (0,0,0.5)", deltaKappa, entropyH, alpha)
	}
}

// unitEmbedding returns a small deterministic unit-ish vector that varies
// by index, enough to exercise the velocity/curvature math without a real
// embedding backend.
func unitEmbedding(i int) []float32 {
	switch i % 4 {
	case 0:
		return []float32{1, 0, 0}
	case 1:
		return []float32{0.9, 0.1, 0}
	case 2:
		return []float32{0.8, 0.2, 0.1}
	default:
		return []float32{0.7, 0.3, 0.2}
	}
}
