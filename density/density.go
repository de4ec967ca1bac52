// Package density defines the capability every price density estimator provides: fit on a
// sample, then answer cumulative probability queries.
package density

import (
	"context"
	"math"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/model"
)

// Model is a fitted price distribution.
type Model interface {
	// Cdf returns P(X <= price). It is non-decreasing in price.
	Cdf(price float64) float64
}

// Estimator fits a Model on a read-only sample of prices.
type Estimator interface {
	Name() string
	Fit(ctx context.Context, samples []float64) (Model, error)
}

const (
	quantileTolerance = 1e-9
	quantileMaxIter   = 200
)

// Quantile inverts m.Cdf by bisection. lower and upper are a starting bracket and are widened
// until they contain p.
func Quantile(m Model, p, lower, upper float64) (*model.QuantileValue, error) {
	if m == nil || !(p > 0 && p < 1) || !(upper > lower) {
		return nil, common.ErrorInvalidValue
	}

	width := upper - lower
	for i := 0; m.Cdf(lower) > p; i++ {
		if i >= quantileMaxIter {
			return nil, common.ErrorInvalidValue
		}
		lower -= width
		width *= 2
	}
	width = upper - lower
	for i := 0; m.Cdf(upper) < p; i++ {
		if i >= quantileMaxIter {
			return nil, common.ErrorInvalidValue
		}
		upper += width
		width *= 2
	}

	for i := 0; i < quantileMaxIter && upper-lower > quantileTolerance*math.Max(1, math.Abs(lower)); i++ {
		mid := lower + (upper-lower)/2
		if m.Cdf(mid) < p {
			lower = mid
		} else {
			upper = mid
		}
	}

	return &model.QuantileValue{
		Quantile: p,
		Value:    lower + (upper-lower)/2,
	}, nil
}
