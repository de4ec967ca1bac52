package kde

import (
	"context"
	"fmt"

	"github.com/uyouii/optimal-stopping/config"
	"github.com/uyouii/optimal-stopping/density"
)

// Estimator plugs the kernel density into the same fit/cdf contract as the mixture.
type Estimator struct {
	opts config.Kde
}

func NewEstimator(opts config.Kde) *Estimator {
	return &Estimator{opts: opts}
}

func (e *Estimator) Name() string {
	return config.EstimatorKDE
}

func (e *Estimator) Fit(ctx context.Context, samples []float64) (density.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := NewKDEUnivariate(samples, nil, e.opts.BwAdjust, DefaultCut, nil)
	if err != nil {
		return nil, fmt.Errorf("kde fit on %d samples: %w", len(samples), err)
	}
	k.Fit()
	return k, nil
}
