package analysis

import "testing"

func TestBasinDeepResonance(t *testing.T) {
	psi := PsiVector{Semantic: 0.5, Temporal: 0.5, Affective: 0.5}
	ctx := DialogueContext{VoiceDistinctiveness: 0.5}
	label, conf := classify(psi, ctx)
	if label != BasinDeepResonance {
		t.Fatalf("classify() = %q, want %q", label, BasinDeepResonance)
	}
	if conf != 0.5 {
		t.Errorf("confidence = %v, want min(0.5,0.5,0.5)=0.5", conf)
	}
}

func TestBasinDissociation(t *testing.T) {
	psi := PsiVector{Semantic: 0.1, Temporal: 0.5, Affective: -0.05}
	label, _ := classify(psi, DialogueContext{})
	if label != BasinDissociation {
		t.Fatalf("classify() = %q, want %q", label, BasinDissociation)
	}
}

func TestBasinHistoryTransitionCount(t *testing.T) {
	h := NewBasinHistory()
	h.current = "A"
	h.sequence = []string{"A"}

	// Force three distinct labels by hand to check the transition counter
	// matches the number of adjacent differing entries.
	for _, label := range []string{"A", "B", "B", "C", "A"} {
		if label != h.current {
			h.transitions++
		}
		h.current = label
		h.sequence = append(h.sequence, label)
	}
	if h.transitions != 3 {
		t.Errorf("transitions = %d, want 3 (A->B, B->C, C->A)", h.transitions)
	}
}

func TestBasinHistoryHysteresisEntryPenalty(t *testing.T) {
	h := NewBasinHistory()
	h.Classify(PsiVector{Semantic: 0.1, Temporal: 0.5, Affective: 0}, DialogueContext{})
	_, confDisagree := h.Classify(PsiVector{Semantic: 0.5, Temporal: 0.5, Affective: 0.5}, DialogueContext{VoiceDistinctiveness: 0.5})
	raw, _ := classify(PsiVector{Semantic: 0.5, Temporal: 0.5, Affective: 0.5}, DialogueContext{VoiceDistinctiveness: 0.5})
	if raw != BasinDeepResonance {
		t.Fatalf("expected the second call to classify as %q raw", BasinDeepResonance)
	}
	if confDisagree >= 0.5 {
		t.Errorf("confidence after basin disagreement = %v, want discounted below raw 0.5", confDisagree)
	}
}

func TestArgmaxThreeRunnerUp(t *testing.T) {
	label, top, second := argmaxThree("a", 0.3, "b", 0.9, "c", 0.5)
	if label != "b" || top != 0.9 || second != 0.5 {
		t.Errorf("argmaxThree() = (%q, %v, %v), want (b, 0.9, 0.5)", label, top, second)
	}
}

func TestFirstClassificationIsNotATransition(t *testing.T) {
	h := NewBasinHistory()
	h.Classify(PsiVector{Semantic: 0.5, Temporal: 0.5, Affective: 0.5}, DialogueContext{VoiceDistinctiveness: 0.5})
	if h.Transitions() != 0 {
		t.Errorf("Transitions() after first classification = %d, want 0", h.Transitions())
	}
}
