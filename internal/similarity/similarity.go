package similarity

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// #region cosine
// Cosine returns the cosine of the angle between a and b.
// Empty input, mismatched lengths and zero-magnitude vectors all yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	magA := floats.Norm(a, 2)
	magB := floats.Norm(b, 2)
	if magA == 0 || magB == 0 {
		return 0.0
	}

	sim := floats.Dot(a, b) / (magA * magB)
	// rounding can push |sim| a hair past 1
	switch {
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	}
	return sim
}

// #endregion cosine

// #region mean-against
// MeanAgainst averages Cosine(v, ref) over vs. An empty set reports 1.0.
func MeanAgainst(vs [][]float64, ref []float64) float64 {
	if len(vs) == 0 {
		return 1.0
	}
	scores := make([]float64, len(vs))
	for i, v := range vs {
		scores[i] = Cosine(v, ref)
	}
	return stat.Mean(scores, nil)
}

// #endregion mean-against
