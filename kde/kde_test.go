package kde

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/config"
)

func normalSample(n int, mu, sigma float64, src uint64) []float64 {
	dist := distuv.Normal{Mu: mu, Sigma: sigma, Src: rand.NewSource(src)}
	res := make([]float64, n)
	for i := range res {
		res[i] = dist.Rand()
	}
	return res
}

func TestKDECdfMatchesTruth(t *testing.T) {
	samples := normalSample(2000, 100, 15, 7)
	k, err := NewKDEUnivariate(samples, nil, 1, DefaultCut, nil)
	require.NoError(t, err)

	truth := distuv.Normal{Mu: 100, Sigma: 15}
	for _, x := range []float64{60, 85, 100, 115, 140} {
		assert.InDelta(t, truth.CDF(x), k.Cdf(x), 0.04, "x=%v", x)
	}
	assert.Greater(t, k.BandWidth(), 0.0)
}

func TestKDECdfMonotone(t *testing.T) {
	k, err := NewKDEUnivariate([]float64{3, 1, 2, 10, 11}, nil, 1, DefaultCut, nil)
	require.NoError(t, err)

	prev := -1.0
	for x := -20.0; x <= 40; x += 0.1 {
		p := k.Cdf(x)
		assert.GreaterOrEqual(t, p, prev)
		prev = p
	}
	assert.InDelta(t, 0.0, k.Cdf(-20), 1e-6)
	assert.InDelta(t, 1.0, k.Cdf(40), 1e-6)
}

func TestKDEGridCdfAgreesWithAnalytic(t *testing.T) {
	samples := normalSample(300, 0, 1, 3)
	k, err := NewKDEUnivariate(samples, nil, 1, DefaultCut, nil)
	require.NoError(t, err)

	for _, point := range k.CdfGrid() {
		assert.InDelta(t, k.Cdf(point.X), point.Value, 1e-3)
	}

	grid, err := k.GridQuantile(0.5)
	require.NoError(t, err)
	exact, err := k.Quantile(0.5)
	require.NoError(t, err)
	assert.InDelta(t, exact.Value, grid.Value, 0.05)
	assert.Len(t, k.Kdensity(), len(k.grid))
}

func TestKDEDoesNotReorderInput(t *testing.T) {
	samples := []float64{5, 1, 4}
	_, err := NewKDEUnivariate(samples, nil, 1, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 1, 4}, samples)
}

func TestKDEInsufficientData(t *testing.T) {
	_, err := NewKDEUnivariate([]float64{1}, nil, 1, 0, nil)
	assert.ErrorIs(t, err, common.ErrorInsufficientData)

	_, err = NewKDEUnivariate([]float64{1, 2}, []float64{1}, 1, 0, nil)
	assert.ErrorIs(t, err, common.ErrorInvalidValue)
}

func TestKDEIdenticalSamples(t *testing.T) {
	k, err := NewKDEUnivariate([]float64{2, 2, 2}, nil, 1, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, MinBandWidth, k.BandWidth())
	assert.InDelta(t, 0.5, k.Cdf(2), 1e-9)
}

func TestEstimator(t *testing.T) {
	e := NewEstimator(config.Default().Kde)
	assert.Equal(t, config.EstimatorKDE, e.Name())

	m, err := e.Fit(context.Background(), []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.Cdf(5.5), 1e-9)

	_, err = e.Fit(context.Background(), []float64{1})
	assert.ErrorIs(t, err, common.ErrorInsufficientData)
}

func TestSummarizeHistory(t *testing.T) {
	samples := normalSample(500, 50, 5, 9)
	summary, err := SummarizeHistory(context.Background(), samples)
	require.NoError(t, err)
	assert.Equal(t, 500, summary.Count)
	assert.InDelta(t, 50, summary.Mean, 1)

	median, ok := summary.GetQuantileValue(0.5)
	require.True(t, ok)
	assert.InDelta(t, 50, median.Value, 1.5)

	lower, ok := summary.GetQuantileValue(0.05)
	require.True(t, ok)
	upper, ok := summary.GetQuantileValue(0.95)
	require.True(t, ok)
	assert.Less(t, lower.Value, upper.Value)
	assert.NotEmpty(t, SummaryFields(summary))

	_, err = SummarizeHistory(context.Background(), []float64{1})
	assert.ErrorIs(t, err, common.ErrorInsufficientData)
}
