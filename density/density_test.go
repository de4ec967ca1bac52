package density

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/uyouii/optimal-stopping/common"
)

type normalModel struct {
	dist distuv.Normal
}

func (m normalModel) Cdf(price float64) float64 {
	return m.dist.CDF(price)
}

func TestQuantile(t *testing.T) {
	m := normalModel{dist: distuv.Normal{Mu: 10, Sigma: 2}}

	cases := []float64{0.01, 0.25, 0.5, 0.9, 0.99}
	for _, p := range cases {
		// deliberately narrow bracket far from the mass
		q, err := Quantile(m, p, 100, 101)
		require.NoError(t, err)
		assert.InDelta(t, m.dist.Quantile(p), q.Value, 1e-6, "p=%v", p)
		assert.Equal(t, p, q.Quantile)
	}
}

func TestQuantileInvalid(t *testing.T) {
	m := normalModel{dist: distuv.Normal{Mu: 0, Sigma: 1}}

	_, err := Quantile(m, 0, -1, 1)
	assert.ErrorIs(t, err, common.ErrorInvalidValue)
	_, err = Quantile(m, 0.5, 1, 1)
	assert.ErrorIs(t, err, common.ErrorInvalidValue)
	_, err = Quantile(nil, 0.5, -1, 1)
	assert.ErrorIs(t, err, common.ErrorInvalidValue)
}
