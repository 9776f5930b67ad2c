package analysis

import (
	"math"
	"testing"
)

func TestSemanticVelocityZeroNorm(t *testing.T) {
	v := SemanticVelocity([]float32{0, 0, 0}, []float32{1, 0, 0})
	if v != 1.0 {
		t.Errorf("SemanticVelocity() with zero-norm = %v, want 1.0", v)
	}
}

func TestSemanticVelocityIdentical(t *testing.T) {
	e := []float32{0.6, 0.8, 0}
	v := SemanticVelocity(e, e)
	if math.Abs(v) > 1e-9 {
		t.Errorf("SemanticVelocity(e, e) = %v, want ~0", v)
	}
}

func TestCurvatureRequiresFourPoints(t *testing.T) {
	if c := Curvature([][]float32{{1, 0}, {0, 1}, {1, 1}}); c != 0 {
		t.Errorf("Curvature() with n<4 = %v, want 0", c)
	}
}

func TestDFADefaultsToHalfForShortSignal(t *testing.T) {
	alpha, _ := DFA([]float64{0.1, 0.2, 0.3})
	if alpha != 0.5 {
		t.Errorf("DFA() alpha for short signal = %v, want 0.5", alpha)
	}
}

func TestJSDivergenceSymmetric(t *testing.T) {
	p := []float64{0.7, 0.2, 0.1}
	q := []float64{0.1, 0.3, 0.6}
	pq := JSDivergence(p, q)
	qp := JSDivergence(q, p)
	if math.Abs(pq-qp) > 1e-9 {
		t.Errorf("JSDivergence not symmetric: JSD(p,q)=%v JSD(q,p)=%v", pq, qp)
	}
}

func TestJSDivergenceIdenticalIsZero(t *testing.T) {
	p := []float64{0.5, 0.5}
	if d := JSDivergence(p, p); d > 1e-6 {
		t.Errorf("JSDivergence(p,p) = %v, want ~0", d)
	}
}

func TestEntropyShiftRequiresTwoPerSide(t *testing.T) {
	pre := [][]float32{{1, 0}}
	post := [][]float32{{0, 1}, {1, 1}}
	if h := EntropyShift(pre, post); h != 0 {
		t.Errorf("EntropyShift() with n_pre<2 = %v, want 0", h)
	}
}

func TestKMeansSeededDeterministic(t *testing.T) {
	points := [][]float32{{0, 0}, {0, 1}, {10, 10}, {10, 11}}
	a := KMeansSeeded(points, 2, 7, 5)
	b := KMeansSeeded(points, 2, 7, 5)
	for i := range a.Labels {
		if a.Labels[i] != b.Labels[i] {
			t.Fatalf("KMeansSeeded not deterministic at index %d: %v vs %v", i, a.Labels, b.Labels)
		}
	}
}
