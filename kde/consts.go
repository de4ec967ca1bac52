package kde

const (
	// kernel support past the extreme samples, in bandwidths
	DefaultCut = 3.0

	MinGridSize = 100

	// smallest bandwidth used when every sample is identical
	MinBandWidth = 1e-3

	ClipUpperZScore = 3.0
	ClipLowerZScore = 3.0

	MinFitPointCnt = 2
)

var (
	SummaryQuantiles = []float64{0.05, 0.1, 0.25, 0.5, 0.75, 0.9, 0.95}
)
