// ABOUTME: Numeric contracts for the semantic-analysis pipeline: velocity, Frenet-Serret curvature,
// ABOUTME: detrended fluctuation analysis, seeded k-means, and Jensen-Shannon divergence (spec §4.13).
//
// Implemented directly against math/math/rand rather than a general stats or clustering
// library: none appears anywhere in the retrieved corpus, and the scale-selection,
// segmentation, and seeding semantics below are specified down to the integer, which a
// generic library would not contract to preserve bit-for-bit (see DESIGN.md).
package analysis

import (
	"math"
	"math/rand"
	"sort"
)

// dot, norm, cosine operate on float32 embeddings but accumulate in float64
// for numerical stability.
func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(a []float32) float64 {
	return math.Sqrt(dot(a, a))
}

func cosine(a, b []float32) float64 {
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

// SemanticVelocity returns v_i = 1 - cos(e_{i-1}, e_i). Zero-norm pairs
// yield velocity 1.0 (spec §4.13).
func SemanticVelocity(prev, cur []float32) float64 {
	if norm(prev) == 0 || norm(cur) == 0 {
		return 1.0
	}
	return 1.0 - cosine(prev, cur)
}

// SemanticVelocities maps SemanticVelocity across consecutive pairs.
func SemanticVelocities(embeddings [][]float32) []float64 {
	if len(embeddings) < 2 {
		return nil
	}
	out := make([]float64, len(embeddings)-1)
	for i := 1; i < len(embeddings); i++ {
		out[i-1] = SemanticVelocity(embeddings[i-1], embeddings[i])
	}
	return out
}

func sub(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func vecNorm64(a []float32) float64 { return norm(a) }

// Curvature computes the local Frenet-Serret curvature on an embedding
// sequence per spec §4.13: requires n >= 4; v_i = e_{i+1}-e_i,
// a_i = v_{i+1}-v_i; a_i is projected perpendicular to unit v_i;
// kappa_i = ||a_i_perp|| / ||v_i||^2; zero-velocity steps contribute 0.
// Returns the mean over i.
func Curvature(embeddings [][]float32) float64 {
	n := len(embeddings)
	if n < 4 {
		return 0
	}

	velocities := make([][]float32, n-1)
	for i := 0; i < n-1; i++ {
		velocities[i] = sub(embeddings[i+1], embeddings[i])
	}

	var sum float64
	count := 0
	for i := 0; i < len(velocities)-1; i++ {
		v := velocities[i]
		a := sub(velocities[i+1], v)
		vn := vecNorm64(v)
		if vn == 0 {
			count++
			continue
		}
		unitV := make([]float32, len(v))
		for j := range v {
			unitV[j] = float32(float64(v[j]) / vn)
		}
		aDotUnitV := dot(a, unitV)
		aParallel := make([]float32, len(a))
		for j := range a {
			aParallel[j] = float32(aDotUnitV) * unitV[j]
		}
		aPerp := sub(a, aParallel)
		kappa := vecNorm64(aPerp) / (vn * vn)
		sum += kappa
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// DFA computes the detrended-fluctuation-analysis scaling exponent alpha of
// signal, per spec §4.13. For |signal| < 8, alpha is 0.5 exactly (spec §8
// property 10). r2 is the regression R^2 of log10(F) vs log10(s), used as a
// quality indicator by the summarizer (§4.12).
func DFA(signal []float64) (alpha float64, r2 float64) {
	n := len(signal)
	if n < 8 {
		return 0.5, 0
	}

	mean := 0.0
	for _, x := range signal {
		mean += x
	}
	mean /= float64(n)

	y := make([]float64, n)
	cum := 0.0
	for i, x := range signal {
		cum += x - mean
		y[i] = cum
	}

	minScale := 4
	maxScale := maxInt(minScale+1, minInt(int(float64(n)*0.25), n/2))
	scales := logSpacedScales(minScale, maxScale, 16)

	var logS, logF []float64
	for _, s := range scales {
		if s < 2 || s > n {
			continue
		}
		nSeg := n / s
		if nSeg < 1 {
			continue
		}
		var totalRMS float64
		for seg := 0; seg < nSeg; seg++ {
			start := seg * s
			segment := y[start : start+s]
			rms := detrendRMS(segment)
			totalRMS += rms
		}
		f := totalRMS / float64(nSeg)
		if f <= 0 {
			continue
		}
		logS = append(logS, math.Log10(float64(s)))
		logF = append(logF, math.Log10(f))
	}

	if len(logS) < 2 {
		return 0.5, 0
	}

	slope, r2 := linearRegression(logS, logF)
	return slope, r2
}

// detrendRMS linearly detrends a segment and returns the RMS of the
// residual.
func detrendRMS(segment []float64) float64 {
	n := len(segment)
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	slope, intercept := fitLine(x, segment)

	var sumSq float64
	for i, v := range segment {
		resid := v - (slope*float64(i) + intercept)
		sumSq += resid * resid
	}
	return math.Sqrt(sumSq / float64(n))
}

// fitLine returns the ordinary-least-squares slope and intercept of y ~ x.
func fitLine(x, y []float64) (slope, intercept float64) {
	n := float64(len(x))
	var sx, sy, sxy, sxx float64
	for i := range x {
		sx += x[i]
		sy += y[i]
		sxy += x[i] * y[i]
		sxx += x[i] * x[i]
	}
	denom := n*sxx - sx*sx
	if denom == 0 {
		return 0, sy / n
	}
	slope = (n*sxy - sx*sy) / denom
	intercept = (sy - slope*sx) / n
	return slope, intercept
}

// linearRegression returns the OLS slope of y ~ x and the R^2 of the fit.
func linearRegression(x, y []float64) (slope, r2 float64) {
	slope, intercept := fitLine(x, y)

	var meanY float64
	for _, v := range y {
		meanY += v
	}
	meanY /= float64(len(y))

	var ssTot, ssRes float64
	for i := range y {
		pred := slope*x[i] + intercept
		ssRes += (y[i] - pred) * (y[i] - pred)
		ssTot += (y[i] - meanY) * (y[i] - meanY)
	}
	if ssTot == 0 {
		return slope, 0
	}
	return slope, 1 - ssRes/ssTot
}

// logSpacedScales returns up to count unique integer scales log-spaced on
// [min, max].
func logSpacedScales(minS, maxS, count int) []int {
	if maxS <= minS {
		return []int{minS}
	}
	logMin := math.Log(float64(minS))
	logMax := math.Log(float64(maxS))

	seen := map[int]struct{}{}
	var out []int
	for i := 0; i < count; i++ {
		frac := float64(i) / float64(count-1)
		v := int(math.Round(math.Exp(logMin + frac*(logMax-logMin))))
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// KMeansResult holds cluster assignments from a seeded k-means run.
type KMeansResult struct {
	Labels []int
	K      int
}

// KMeansSeeded clusters points into k clusters with nInit random
// restarts, each seeded deterministically from seed so results are
// reproducible. Uses squared-Euclidean Lloyd's algorithm.
func KMeansSeeded(points [][]float32, k int, seed int64, nInit int) KMeansResult {
	n := len(points)
	if k <= 0 || n == 0 {
		return KMeansResult{Labels: make([]int, n), K: k}
	}
	if k > n {
		k = n
	}

	rng := rand.New(rand.NewSource(seed))
	var bestLabels []int
	bestInertia := math.Inf(1)

	for init := 0; init < nInit; init++ {
		centroids := initCentroids(points, k, rng)
		labels := make([]int, n)
		for iter := 0; iter < 50; iter++ {
			changed := false
			for i, p := range points {
				best, bestDist := 0, math.Inf(1)
				for c, centroid := range centroids {
					d := sqDist(p, centroid)
					if d < bestDist {
						bestDist = d
						best = c
					}
				}
				if labels[i] != best {
					changed = true
				}
				labels[i] = best
			}
			centroids = recomputeCentroids(points, labels, k, len(points[0]))
			if !changed {
				break
			}
		}

		inertia := 0.0
		for i, p := range points {
			inertia += sqDist(p, centroids[labels[i]])
		}
		if inertia < bestInertia {
			bestInertia = inertia
			bestLabels = labels
		}
	}

	return KMeansResult{Labels: bestLabels, K: k}
}

func initCentroids(points [][]float32, k int, rng *rand.Rand) [][]float64 {
	dim := len(points[0])
	centroids := make([][]float64, k)
	perm := rng.Perm(len(points))
	for i := 0; i < k; i++ {
		p := points[perm[i%len(perm)]]
		c := make([]float64, dim)
		for j, v := range p {
			c[j] = float64(v)
		}
		centroids[i] = c
	}
	return centroids
}

func recomputeCentroids(points [][]float32, labels []int, k, dim int) [][]float64 {
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, p := range points {
		c := labels[i]
		counts[c]++
		for j, v := range p {
			sums[c][j] += float64(v)
		}
	}
	centroids := make([][]float64, k)
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			centroids[c] = sums[c]
			continue
		}
		centroid := make([]float64, dim)
		for j := range sums[c] {
			centroid[j] = sums[c][j] / float64(counts[c])
		}
		centroids[c] = centroid
	}
	return centroids
}

func sqDist(p []float32, c []float64) float64 {
	var s float64
	for i := range p {
		d := float64(p[i]) - c[i]
		s += d * d
	}
	return s
}

const jsEpsilon = 1e-12

// JSDivergence returns the Jensen-Shannon divergence between discrete
// distributions p and q, in bits, with an epsilon floor to avoid log(0)
// (spec §4.13). Symmetric by construction: JSD(p,q) == JSD(q,p).
func JSDivergence(p, q []float64) float64 {
	m := make([]float64, len(p))
	for i := range p {
		m[i] = (p[i] + q[i]) / 2
	}
	return (klDivergence(p, m) + klDivergence(q, m)) / 2
}

func klDivergence(p, q []float64) float64 {
	var sum float64
	for i := range p {
		pi := p[i] + jsEpsilon
		qi := q[i] + jsEpsilon
		sum += pi * math.Log2(pi/qi)
	}
	return sum
}

// EntropyShift computes ΔH: cluster the concatenation of pre/post
// embeddings with seeded k-means (n_clusters = min(n_pre+n_post, 8)),
// compute the empirical cluster-frequency distributions for each half, and
// return their Jensen-Shannon divergence in bits. n_pre < 2 or n_post < 2
// yields 0 (spec §4.13).
func EntropyShift(pre, post [][]float32) float64 {
	if len(pre) < 2 || len(post) < 2 {
		return 0
	}

	all := make([][]float32, 0, len(pre)+len(post))
	all = append(all, pre...)
	all = append(all, post...)

	k := minInt(len(pre)+len(post), 8)
	result := KMeansSeeded(all, k, 42, 10)

	pFreq := make([]float64, k)
	qFreq := make([]float64, k)
	for i, label := range result.Labels {
		if i < len(pre) {
			pFreq[label]++
		} else {
			qFreq[label]++
		}
	}
	normalize(pFreq)
	normalize(qFreq)

	h := JSDivergence(pFreq, qFreq)
	if h < 0 {
		return 0
	}
	if h > 1 {
		return 1
	}
	return h
}

func normalize(freq []float64) {
	var total float64
	for _, f := range freq {
		total += f
	}
	if total == 0 {
		return
	}
	for i := range freq {
		freq[i] /= total
	}
}

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// Variance returns the population variance of xs.
func Variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	var s float64
	for _, x := range xs {
		s += (x - m) * (x - m)
	}
	return s / float64(len(xs))
}

// StdDev returns the population standard deviation of xs.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// CoefficientOfVariation returns StdDev(xs)/Mean(xs), or 0 if the mean is 0.
func CoefficientOfVariation(xs []float64) float64 {
	m := Mean(xs)
	if m == 0 {
		return 0
	}
	return StdDev(xs) / m
}

// Autocorrelation returns the lag-1 autocorrelation of xs, or 0 if xs is
// too short or has zero variance.
func Autocorrelation(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := Mean(xs)
	var num, den float64
	for i := 0; i < n-1; i++ {
		num += (xs[i] - m) * (xs[i+1] - m)
	}
	for i := 0; i < n; i++ {
		den += (xs[i] - m) * (xs[i] - m)
	}
	if den == 0 {
		return 0
	}
	return num / den
}
