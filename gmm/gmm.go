package gmm

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/config"
	"github.com/uyouii/optimal-stopping/density"
	"github.com/uyouii/optimal-stopping/model"
	"github.com/uyouii/optimal-stopping/utils"
)

// responsibility mass below which a component keeps its previous mean and variance
const minComponentMass = 10 * 2.220446049250313e-16

// Estimator fits a K-component univariate Gaussian mixture by expectation maximization.
type Estimator struct {
	components int
	opts       config.Mixture
	seed       *uint64
}

func NewEstimator(components int, opts config.Mixture, seed *uint64) *Estimator {
	return &Estimator{
		components: components,
		opts:       opts,
		seed:       seed,
	}
}

func (e *Estimator) Name() string {
	return config.EstimatorGMM
}

func (e *Estimator) Fit(ctx context.Context, samples []float64) (density.Model, error) {
	m, err := Fit(ctx, samples, e.components, e.opts, e.seed)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Fit runs EM on samples, starting from a k-means partition. With a non-nil seed the
// k-means++ draw, and so the whole fit, is reproducible. samples is not modified.
func Fit(ctx context.Context, samples []float64, k int, opts config.Mixture,
	seed *uint64) (*Model, error) {
	logger := utils.GetLogger(ctx)

	if k < 1 {
		return nil, fmt.Errorf("component count %d: %w", k, common.ErrorInvalidValue)
	}
	n := len(samples)
	if n < k {
		return nil, fmt.Errorf("fit %d components on %d samples: %w", k, n, common.ErrorInsufficientData)
	}
	for _, x := range samples {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("sample %v: %w", x, common.ErrorInvalidValue)
		}
	}

	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 100
	}
	tol := opts.Tolerance
	if tol <= 0 {
		tol = 1e-3
	}
	reg := opts.RegCovar
	if reg <= 0 {
		reg = 1e-6
	}

	weights, means, variances := initParams(samples, k, newRand(seed), reg)

	// resp[j][i] is the responsibility of component j for sample i
	resp := make([][]float64, k)
	for j := range resp {
		resp[j] = make([]float64, n)
	}
	logProbs := make([]float64, k)
	normals := make([]distuv.Normal, k)

	prevLL := math.Inf(-1)
	ll := prevLL
	converged := false
	iter := 0
	for iter = 1; iter <= maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for j := 0; j < k; j++ {
			normals[j] = distuv.Normal{Mu: means[j], Sigma: math.Sqrt(variances[j])}
		}

		// E step
		ll = 0
		for i, x := range samples {
			for j := 0; j < k; j++ {
				logProbs[j] = math.Log(weights[j]) + normals[j].LogProb(x)
			}
			lse := floats.LogSumExp(logProbs)
			for j := 0; j < k; j++ {
				resp[j][i] = math.Exp(logProbs[j] - lse)
			}
			ll += lse
		}
		ll /= float64(n)

		// M step
		for j := 0; j < k; j++ {
			mass := floats.Sum(resp[j])
			weights[j] = mass + minComponentMass
			if mass < minComponentMass {
				continue
			}
			mean := stat.Mean(samples, resp[j])
			means[j] = mean
			variances[j] = stat.MomentAbout(2, samples, mean, resp[j]) + reg
		}
		floats.Scale(1/floats.Sum(weights), weights)

		if math.Abs(ll-prevLL) < tol {
			converged = true
			break
		}
		prevLL = ll
	}
	if iter > maxIter {
		iter = maxIter
	}

	if !converged {
		logger.Debug("mixture fit did not converge", zap.Int("components", k),
			zap.Int("samples", n), zap.Float64("logLikelihood", ll))
	}

	components := make([]model.Component, k)
	for j := 0; j < k; j++ {
		components[j] = model.Component{
			Weight: weights[j],
			Mean:   means[j],
			StdDev: math.Sqrt(variances[j]),
		}
	}
	sort.SliceStable(components, func(a, b int) bool {
		return components[a].Mean < components[b].Mean
	})

	return newModel(model.MixtureModel{
		Components:    components,
		LogLikelihood: ll,
		Iterations:    iter,
		Converged:     converged,
	}), nil
}

func newRand(seed *uint64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	return rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
}
