package gallery

import "math"

// EuclideanDistance computes the L2 distance between two face embeddings.
// Returns +Inf for vectors of different or zero length so they never match.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// distanceBelow computes the L2 distance like EuclideanDistance but stops as
// soon as the partial sum reaches limit. It reports false when it stopped.
func distanceBelow(a, b []float32, limit float64) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1), false
	}

	bound := limit * limit
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
		if sum >= bound {
			return math.Inf(1), false
		}
	}
	return math.Sqrt(sum), true
}
