package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/config"
	"github.com/uyouii/optimal-stopping/density"
	"github.com/uyouii/optimal-stopping/utils"
)

// CandidateOutcome is the replay result of one threshold over the holdout half.
type CandidateOutcome struct {
	Threshold float64 `json:"threshold"`
	Index     int     `json:"index"`
	Price     float64 `json:"price"`
	// no holdout item passed the rule; Price is the last holdout item
	Fallback bool `json:"fallback,omitempty"`
}

type Calibration struct {
	Threshold   float64            `json:"threshold"`
	Price       float64            `json:"price"`
	Outcomes    []CandidateOutcome `json:"outcomes"`
	FitSize     int                `json:"fit_size"`
	HoldoutSize int                `json:"holdout_size"`
	// fitted on the fit half only
	Model density.Model `json:"-"`
}

// Split partitions prices in order into a fit half of floor(n*fraction) items and the
// holdout rest. Both halves are copies.
func Split(prices []float64, fraction float64) (fit, holdout []float64) {
	n := len(prices)
	fitSize := int(math.Floor(float64(n) * fraction))
	fitSize = min(max(fitSize, 0), n)
	return utils.CopyFloats(prices[:fitSize]), utils.CopyFloats(prices[fitSize:])
}

// Simulate replays rule at threshold over holdout in order and returns the first accepted
// item, or the last item when none is accepted.
func Simulate(m density.Model, rule Rule, threshold float64, holdout []float64) (CandidateOutcome, error) {
	size := len(holdout)
	if size == 0 {
		return CandidateOutcome{}, common.ErrorEmptyHoldout
	}

	for j, price := range holdout {
		if rule.Accept(m.Cdf(price), size-j, threshold) {
			return CandidateOutcome{Threshold: threshold, Index: j, Price: price}, nil
		}
	}
	return CandidateOutcome{
		Threshold: threshold,
		Index:     size - 1,
		Price:     holdout[size-1],
		Fallback:  true,
	}, nil
}

// Calibrate fits estimator on the first part of history and grid-searches the configured
// threshold candidates on the rest. The highest replayed price wins; ties keep the earlier
// candidate. history is read-only.
func Calibrate(ctx context.Context, estimator density.Estimator, history []float64,
	cfg config.Config) (*Calibration, error) {
	rule, err := ParseRule(cfg.Rule)
	if err != nil {
		return nil, err
	}
	candidates := cfg.Candidates()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no threshold candidates: %w", common.ErrorInvalidConfig)
	}

	fit, holdout := Split(history, cfg.SplitFraction)
	if len(holdout) == 0 {
		return nil, fmt.Errorf("history of %d: %w", len(history), common.ErrorEmptyHoldout)
	}

	m, err := estimator.Fit(ctx, fit)
	if err != nil {
		return nil, fmt.Errorf("calibration fit: %w", err)
	}

	res := &Calibration{
		Outcomes:    make([]CandidateOutcome, 0, len(candidates)),
		FitSize:     len(fit),
		HoldoutSize: len(holdout),
		Model:       m,
	}
	for i, threshold := range candidates {
		outcome, err := Simulate(m, rule, threshold, holdout)
		if err != nil {
			return nil, err
		}
		res.Outcomes = append(res.Outcomes, outcome)
		if i == 0 || outcome.Price > res.Price {
			res.Threshold, res.Price = outcome.Threshold, outcome.Price
		}
	}
	return res, nil
}
