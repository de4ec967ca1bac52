package kde

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate/quad"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/density"
	"github.com/uyouii/optimal-stopping/model"
)

// KDEUnivariate is a weighted Gaussian kernel density estimate over one price sample.
type KDEUnivariate struct {
	Weights []float64

	gridSize int

	// An adjustment factor for the bw. Bandwidth becomes bw * adjust.
	bwAdjust float64

	// Defines the length of the grid past the lowest and highest values
	// of x so that the kernel goes to zero. The end points are
	// ``min(x) - cut * bw`` and ``max(x) + cut * bw``.
	cut float64

	// sorted copy of the sample
	Endog []float64

	cdf    []model.Cdf
	grid   []float64
	bw     float64
	fited  bool
	kernel *GaussianKernel
}

// NewKDEUnivariate copies endog, so the caller's slice keeps its order.
func NewKDEUnivariate(endog []float64, weights []float64,
	bwAdjust float64, cut float64, clip *model.Clip) (*KDEUnivariate, error) {
	if len(endog) == 0 {
		return nil, common.ErrorInsufficientData
	}

	if len(weights) == 0 {
		weights = InitOnes(len(endog))
	} else if len(weights) != len(endog) {
		return nil, common.ErrorInvalidValue
	}

	if cut == 0 {
		cut = DefaultCut
	}

	x, w := sortWithWeights(endog, weights)
	if clip != nil {
		x, w = Clip(x, w, clip)
	}
	if len(x) < MinFitPointCnt {
		return nil, common.ErrorInsufficientData
	}

	return &KDEUnivariate{
		Weights:  w,
		gridSize: max(len(x), MinGridSize),
		bwAdjust: bwAdjust,
		cut:      cut,
		Endog:    x,
	}, nil
}

func sortWithWeights(x, weights []float64) ([]float64, []float64) {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	resX, resW := make([]float64, len(x)), make([]float64, len(x))
	for i, j := range idx {
		resX[i], resW[i] = x[j], weights[j]
	}
	return resX, resW
}

// Fit selects the bandwidth. It is called lazily by every query.
func (kde *KDEUnivariate) Fit() float64 {
	if kde.fited {
		return kde.bw
	}

	kernel := NewGaussianKernel()
	bw := NewNormalReferenceBandWidth(kernel, kde.bwAdjust).BandWidth(kde.Endog)
	kernel.SetH(bw)
	kernel.SetWeights(kde.Weights)

	a := floats.Min(kde.Endog) - kde.cut*bw
	b := floats.Max(kde.Endog) + kde.cut*bw

	kde.grid = linspace(a, b, kde.gridSize)
	kde.bw = bw
	kde.kernel = kernel
	kde.fited = true
	return bw
}

func (kde *KDEUnivariate) BandWidth() float64 {
	return kde.Fit()
}

// Cdf is the analytic kernel cdf: the weighted mean of Phi((price - x_i) / bw).
func (kde *KDEUnivariate) Cdf(price float64) float64 {
	kde.Fit()
	return math.Min(math.Max(kde.kernel.Cdf(kde.Endog, price), 0), 1)
}

func (kde *KDEUnivariate) Density(price float64) float64 {
	kde.Fit()
	return kde.kernel.Density(kde.Endog, price)
}

// Kdensity evaluates the density on the estimation grid.
func (kde *KDEUnivariate) Kdensity() []model.Cdf {
	kde.Fit()
	res := make([]model.Cdf, len(kde.grid))
	for i, x := range kde.grid {
		res[i] = model.Cdf{X: x, Value: kde.Density(x)}
	}
	return res
}

// CdfGrid integrates the density numerically between grid points.
func (kde *KDEUnivariate) CdfGrid() []model.Cdf {
	kde.Fit()
	if len(kde.cdf) > 0 {
		return kde.cdf
	}

	f := func(x float64) float64 {
		return kde.kernel.Density(kde.Endog, x)
	}

	res := make([]model.Cdf, 0, len(kde.grid))
	cumSum := kde.Cdf(kde.grid[0])
	res = append(res, model.Cdf{X: kde.grid[0], Value: cumSum})

	for i := 1; i < len(kde.grid); i++ {
		cumSum += quad.Fixed(f, kde.grid[i-1], kde.grid[i], 50, nil, 0)
		res = append(res, model.Cdf{
			X:     kde.grid[i],
			Value: math.Min(cumSum, 1),
		})
	}

	kde.cdf = res
	return res
}

// GridQuantile interpolates linearly inside the gridded cdf.
func (kde *KDEUnivariate) GridQuantile(p float64) (*model.QuantileValue, error) {
	cdf := kde.CdfGrid()
	if len(cdf) == 0 {
		return nil, common.ErrorInvalidValue
	}

	if p <= cdf[0].Value {
		return &model.QuantileValue{Quantile: p, Value: cdf[0].X}, nil
	}
	if p >= cdf[len(cdf)-1].Value {
		return &model.QuantileValue{Quantile: p, Value: cdf[len(cdf)-1].X}, nil
	}

	for i := 1; i < len(cdf); i++ {
		if cdf[i].Value > p {
			lowerX, lowerP := cdf[i-1].X, cdf[i-1].Value
			upperX, upperP := cdf[i].X, cdf[i].Value
			value := lowerX + (upperX-lowerX)*(p-lowerP)/(upperP-lowerP)
			return &model.QuantileValue{Quantile: p, Value: value}, nil
		}
	}
	return &model.QuantileValue{Quantile: p, Value: cdf[len(cdf)-1].X}, nil
}

// Quantile inverts the analytic cdf.
func (kde *KDEUnivariate) Quantile(p float64) (*model.QuantileValue, error) {
	kde.Fit()
	return density.Quantile(kde, p, kde.grid[0], kde.grid[len(kde.grid)-1])
}
