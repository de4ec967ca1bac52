package kde

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

type BandWidth interface {
	BandWidth([]float64) float64
}

// NormalReferenceBandWidth is Silverman's rule scaled by adjust, floored at MinBandWidth.
type NormalReferenceBandWidth struct {
	kernel Kernel
	adjust float64
}

func NewNormalReferenceBandWidth(kernel Kernel, adjust float64) *NormalReferenceBandWidth {
	if kernel == nil {
		kernel = NewGaussianKernel()
	}
	if adjust <= 0 {
		adjust = 1
	}
	return &NormalReferenceBandWidth{
		kernel: kernel,
		adjust: adjust,
	}
}

func (bw *NormalReferenceBandWidth) BandWidth(x []float64) float64 {
	C := bw.kernel.NormalReferenceConstant()
	A := selectSigma(x)
	n := len(x)
	h := C * A * math.Pow(float64(n), -0.2) * bw.adjust
	if !(h > MinBandWidth) {
		return MinBandWidth
	}
	return h
}

// x must be sorted.
func selectSigma(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	normalize := 1.349

	q75 := stat.Quantile(0.75, stat.Empirical, x, nil)
	q25 := stat.Quantile(0.25, stat.Empirical, x, nil)
	iqr := (q75 - q25) / normalize

	stdDev := stat.StdDev(x, nil)

	if iqr > 0 {
		return math.Min(stdDev, iqr)
	}
	return stdDev
}
