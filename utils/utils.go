package utils

import "math"

func FormatFloat(f float64, round int32) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	scale := math.Pow(10, float64(round))
	return math.Round(f*scale) / scale
}

// CopyFloats returns a copy so callers can not mutate the caller's history.
func CopyFloats(x []float64) []float64 {
	res := make([]float64, len(x))
	copy(res, x)
	return res
}
