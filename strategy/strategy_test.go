package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/config"
	"github.com/uyouii/optimal-stopping/gmm"
	"github.com/uyouii/optimal-stopping/model"
)

// fixedModel reports the same cumulative probability for every price.
type fixedModel float64

func (m fixedModel) Cdf(float64) float64 {
	return float64(m)
}

func testConfig(k int, candidates ...float64) config.Config {
	cfg := config.Default().WithSeed(1)
	cfg.ComponentCount = k
	if len(candidates) > 0 {
		cfg.ThresholdCandidates = candidates
	}
	return cfg
}

func oneToTen() []float64 {
	return []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name      string
		rule      Rule
		cdf       float64
		remaining int
		threshold float64
		want      model.Decision
	}{
		{"penalty lifts score", RulePenalized, 0.4, 5, 0.5, model.Accept},
		{"penalty too small", RulePenalized, 0.4, 10, 0.5, model.Continue},
		{"last item always passes", RulePenalized, 0.2, 1, 0.9, model.Accept},
		{"equal is not greater", RulePenalized, 0.25, 3, 0.5, model.Continue},
		{"tail risk low", RuleTailRisk, 0.9, 2, 0.5, model.Accept},
		{"tail risk high", RuleTailRisk, 0.5, 3, 0.5, model.Continue},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.rule.Decide(fixedModel(c.cdf), c.threshold, 0, c.remaining)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestDecideExhausted(t *testing.T) {
	_, err := Decide(fixedModel(0.9), 0.5, 1, 0)
	assert.ErrorIs(t, err, common.ErrorInvalidRemaining)

	_, err = Decide(nil, 0.5, 1, 3)
	assert.ErrorIs(t, err, common.ErrorInvalidValue)
}

func TestParseRule(t *testing.T) {
	r, err := ParseRule("")
	require.NoError(t, err)
	assert.Equal(t, RulePenalized, r)

	r, err = ParseRule(config.RuleTailRisk)
	require.NoError(t, err)
	assert.Equal(t, RuleTailRisk, r)

	_, err = ParseRule("greedy")
	assert.ErrorIs(t, err, common.ErrorInvalidConfig)
}

func TestSplit(t *testing.T) {
	cases := []struct {
		n, fit, holdout int
	}{
		{10, 5, 5},
		{7, 3, 4},
		{1, 0, 1},
		{0, 0, 0},
	}
	for _, c := range cases {
		prices := make([]float64, c.n)
		for i := range prices {
			prices[i] = float64(i)
		}
		fit, holdout := Split(prices, 0.5)
		assert.Len(t, fit, c.fit, "n=%d", c.n)
		assert.Len(t, holdout, c.holdout, "n=%d", c.n)
		assert.Equal(t, prices, append(append([]float64{}, fit...), holdout...))
	}

	prices := oneToTen()
	fit, _ := Split(prices, 0.5)
	fit[0] = 100
	assert.Equal(t, 1.0, prices[0])

	fit, holdout := Split(prices, 0.3)
	assert.Equal(t, []float64{1, 2, 3}, fit)
	assert.Len(t, holdout, 7)
}

func TestCalibrateAcceptsFirstHoldoutItem(t *testing.T) {
	est := gmm.NewEstimator(1, config.Default().Mixture, nil)

	res, err := Calibrate(context.Background(), est, oneToTen(), testConfig(1, 0.5))
	require.NoError(t, err)
	assert.Equal(t, 5, res.FitSize)
	assert.Equal(t, 5, res.HoldoutSize)

	// fit half [1..5] gives F(6) ~ 0.983, so 6 passes at remaining = 5
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, CandidateOutcome{Threshold: 0.5, Index: 0, Price: 6}, res.Outcomes[0])
	assert.Equal(t, 0.5, res.Threshold)
	assert.Equal(t, 6.0, res.Price)
	assert.InDelta(t, 0.5, res.Model.Cdf(3), 1e-9)
}

func TestCalibrateGridSearch(t *testing.T) {
	est := gmm.NewEstimator(1, config.Default().Mixture, nil)

	res, err := Calibrate(context.Background(), est, oneToTen(), testConfig(1, 0.5, 0.99, 0.999))
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, CandidateOutcome{Threshold: 0.5, Index: 0, Price: 6}, res.Outcomes[0])
	assert.Equal(t, CandidateOutcome{Threshold: 0.99, Index: 1, Price: 7}, res.Outcomes[1])
	assert.Equal(t, CandidateOutcome{Threshold: 0.999, Index: 2, Price: 8}, res.Outcomes[2])
	assert.Equal(t, 0.999, res.Threshold)
	assert.Equal(t, 8.0, res.Price)
}

func TestCalibrateFallbackToLastHoldoutItem(t *testing.T) {
	// the fit half sits far above the holdout, so every holdout cdf underflows to 0
	history := []float64{100, 101, 102, 103, 104, 1, 2, 3, 4, 5}
	est := gmm.NewEstimator(1, config.Default().Mixture, nil)

	res, err := Calibrate(context.Background(), est, history, testConfig(1, 1.0, 0.5))
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, CandidateOutcome{Threshold: 1.0, Index: 4, Price: 5, Fallback: true}, res.Outcomes[0])
	assert.Equal(t, CandidateOutcome{Threshold: 0.5, Index: 4, Price: 5}, res.Outcomes[1])
	// equal prices keep the earlier candidate
	assert.Equal(t, 1.0, res.Threshold)
	assert.Equal(t, 5.0, res.Price)
}

func TestSimulateFallback(t *testing.T) {
	outcome, err := Simulate(fixedModel(0.1), RuleTailRisk, 0.5, []float64{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, CandidateOutcome{Threshold: 0.5, Index: 2, Price: 2, Fallback: true}, outcome)

	_, err = Simulate(fixedModel(0.1), RulePenalized, 0.5, nil)
	assert.ErrorIs(t, err, common.ErrorEmptyHoldout)
}

func TestCalibrateErrors(t *testing.T) {
	est := gmm.NewEstimator(2, config.Default().Mixture, nil)

	_, err := Calibrate(context.Background(), est, nil, testConfig(2))
	assert.ErrorIs(t, err, common.ErrorEmptyHoldout)

	_, err = Calibrate(context.Background(), est, []float64{1}, testConfig(2))
	assert.ErrorIs(t, err, common.ErrorInsufficientData)
	assert.True(t, common.IsEstimationError(err))

	_, err = Calibrate(context.Background(), est, []float64{1, 2, 3}, testConfig(2))
	assert.ErrorIs(t, err, common.ErrorInsufficientData)

	cfg := testConfig(2)
	cfg.ThresholdCandidates = nil
	_, err = Calibrate(context.Background(), est, oneToTen(), cfg)
	assert.ErrorIs(t, err, common.ErrorInvalidConfig)
}

func TestCalibrateBestPriceDominates(t *testing.T) {
	dist := distuv.Normal{Mu: 100, Sigma: 20, Src: rand.NewSource(17)}
	cfg := testConfig(2)
	est, err := NewEstimator(cfg)
	require.NoError(t, err)

	for trial := 0; trial < 10; trial++ {
		history := make([]float64, 60+trial*20)
		for i := range history {
			history[i] = dist.Rand()
		}
		before := append([]float64(nil), history...)

		res, err := Calibrate(context.Background(), est, history, cfg)
		require.NoError(t, err)
		assert.Equal(t, before, history)

		first := -1
		for i, o := range res.Outcomes {
			assert.GreaterOrEqual(t, res.Price, o.Price)
			if first < 0 && o.Price == res.Price {
				first = i
			}
		}
		require.GreaterOrEqual(t, first, 0)
		assert.Equal(t, res.Outcomes[first].Threshold, res.Threshold)
	}
}

func TestNewEstimator(t *testing.T) {
	cfg := config.Default()
	est, err := NewEstimator(cfg)
	require.NoError(t, err)
	assert.Equal(t, config.EstimatorGMM, est.Name())

	cfg.Estimator = config.EstimatorKDE
	est, err = NewEstimator(cfg)
	require.NoError(t, err)
	assert.Equal(t, config.EstimatorKDE, est.Name())

	res, err := Calibrate(context.Background(), est, oneToTen(), cfg)
	require.NoError(t, err)
	assert.Len(t, res.Outcomes, len(cfg.ThresholdCandidates))

	cfg.Estimator = "mdn"
	_, err = NewEstimator(cfg)
	assert.ErrorIs(t, err, common.ErrorInvalidConfig)
}
