package analysis

import (
	"testing"

	"github.com/m3data/mase-engine/session"
)

func turnsWithEmbeddings(embeds [][]float32) []session.TurnRecord {
	turns := make([]session.TurnRecord, len(embeds))
	agents := []string{"socrates", "glaucon"}
	for i, e := range embeds {
		turns[i] = session.TurnRecord{
			AgentID:   agents[i%len(agents)],
			Content:   "a turn of dialogue about the nature of the good",
			Embedding: e,
		}
	}
	return turns
}

func TestSummarizeSkipsTurnsWithoutEmbedding(t *testing.T) {
	turns := []session.TurnRecord{
		{AgentID: "human", Content: "no embedding here"},
	}
	s := Summarize("sess-1", turns, SummarizeOptions{})
	if s.TurnCount != 1 {
		t.Errorf("TurnCount = %d, want 1", s.TurnCount)
	}
	if s.MeanDeltaKappa != 0 {
		t.Errorf("MeanDeltaKappa = %v, want 0 with no embeddings", s.MeanDeltaKappa)
	}
}

func TestSummarizeBasinSequenceMatchesStreamingReplay(t *testing.T) {
	embeds := [][]float32{
		{1, 0, 0}, {0.9, 0.1, 0}, {0.8, 0.2, 0.1}, {0.7, 0.3, 0.2},
		{0.6, 0.4, 0.3}, {0.5, 0.5, 0.4},
	}
	turns := turnsWithEmbeddings(embeds)
	s := Summarize("sess-2", turns, SummarizeOptions{})

	analyzer := NewStreamingAnalyzer(5)
	var want []string
	for _, t := range turns {
		state := analyzer.Update(t.AgentID, t.Content, t.Embedding)
		want = append(want, state.Basin)
	}
	if len(s.BasinSequence) != len(want) {
		t.Fatalf("BasinSequence len = %d, want %d", len(s.BasinSequence), len(want))
	}
	for i := range want {
		if s.BasinSequence[i] != want[i] {
			t.Errorf("BasinSequence[%d] = %q, want %q (streaming/offline symmetry broken)", i, s.BasinSequence[i], want[i])
		}
	}
}

func TestSummarizeBootstrapProducesPercentileIntervals(t *testing.T) {
	embeds := [][]float32{
		{1, 0, 0}, {0.9, 0.1, 0}, {0.8, 0.2, 0.1}, {0.7, 0.3, 0.2},
		{0.6, 0.4, 0.3}, {0.5, 0.5, 0.4}, {0.4, 0.6, 0.5}, {0.3, 0.7, 0.6},
	}
	turns := turnsWithEmbeddings(embeds)
	s := Summarize("sess-3", turns, SummarizeOptions{Bootstrap: true, Resamples: 50, Seed: 1})

	if s.DeltaKappaCI == nil {
		t.Fatal("DeltaKappaCI is nil, want a populated interval with Bootstrap: true")
	}
	if s.DeltaKappaCI.Lower > s.DeltaKappaCI.Upper {
		t.Errorf("DeltaKappaCI = [%v, %v], want lower <= upper", s.DeltaKappaCI.Lower, s.DeltaKappaCI.Upper)
	}
	if s.DFAAlphaCI == nil {
		t.Fatal("DFAAlphaCI is nil, want a populated interval with Bootstrap: true")
	}
	if s.DeltaKappaNullP < 0 || s.DeltaKappaNullP > 1 {
		t.Errorf("DeltaKappaNullP = %v, want a value in [0,1]", s.DeltaKappaNullP)
	}
}

func TestSummaryFlagsThresholds(t *testing.T) {
	embeds := [][]float32{
		{1, 0, 0}, {0.9, 0.1, 0}, {0.8, 0.2, 0.1}, {0.7, 0.3, 0.2},
	}
	turns := turnsWithEmbeddings(embeds)
	s := Summarize("sess-4", turns, SummarizeOptions{})

	if s.Flags.HighCurvature != (s.MeanDeltaKappa >= curvatureFlagThreshold) {
		t.Errorf("HighCurvature flag disagrees with MeanDeltaKappa against threshold %v", curvatureFlagThreshold)
	}
	if s.Flags.HighEntropyShift != (s.EntropyShift >= entropyFlagThreshold) {
		t.Errorf("HighEntropyShift flag disagrees with EntropyShift against threshold %v", entropyFlagThreshold)
	}
}

func TestSummarizeDominantBasinPercentage(t *testing.T) {
	embeds := [][]float32{
		{1, 0, 0}, {0.9, 0.1, 0}, {0.8, 0.2, 0.1}, {0.7, 0.3, 0.2},
		{0.6, 0.4, 0.3}, {0.5, 0.5, 0.4},
	}
	turns := turnsWithEmbeddings(embeds)
	s := Summarize("sess-5", turns, SummarizeOptions{})

	if s.DominantBasin == "" {
		t.Fatal("DominantBasin is empty")
	}
	maxCount := 0
	total := 0
	for _, c := range s.BasinDistribution {
		if c > maxCount {
			maxCount = c
		}
		total += c
	}
	if total != s.TurnCount {
		t.Errorf("basin distribution total = %d, want %d", total, s.TurnCount)
	}
	want := float64(maxCount) / float64(s.TurnCount)
	if s.DominantBasinPercentage != want {
		t.Errorf("DominantBasinPercentage = %v, want max(distribution)/n = %v", s.DominantBasinPercentage, want)
	}
}

func TestInquiryMimicryRatioDefaultsToHalf(t *testing.T) {
	if got := inquiryMimicryRatio(map[string]int{}); got != 0.5 {
		t.Errorf("inquiryMimicryRatio(empty) = %v, want 0.5", got)
	}
	if got := inquiryMimicryRatio(map[string]int{BasinCollaborativeInquiry: 3, BasinCognitiveMimicry: 1}); got != 0.75 {
		t.Errorf("inquiryMimicryRatio(3,1) = %v, want 0.75", got)
	}
}

func TestTrajectoryShapeDegenerate(t *testing.T) {
	path, disp, tort := trajectoryShape(nil)
	if path != 0 || disp != 0 || tort != 1 {
		t.Errorf("trajectoryShape(nil) = (%v, %v, %v), want (0, 0, 1)", path, disp, tort)
	}
}
