package embedding

import "math"

// NormalizeVector returns a copy of v scaled to unit length, so dot products
// between exported vectors equal their cosine similarity. The sum of squares
// is accumulated in float64. An all-zero vector has no direction and comes
// back as zeros.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}

	unit := make([]float32, len(v))
	if sumSquares == 0 {
		return unit
	}
	scale := 1 / math.Sqrt(sumSquares)
	for i, x := range v {
		unit[i] = float32(float64(x) * scale)
	}
	return unit
}
