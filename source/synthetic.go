package source

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/model"
)

// DefaultMixture is the price law the CLI draws from when no file or feed is given.
var DefaultMixture = []model.Component{
	{Weight: 0.6, Mean: 100, StdDev: 10},
	{Weight: 0.4, Mean: 140, StdDev: 15},
}

// NewSyntheticSource draws n i.i.d. prices from the mixture up front, so a seed fixes the
// whole stream.
func NewSyntheticSource(components []model.Component, n int, seed uint64) (*SliceSource, error) {
	mixture := model.MixtureModel{Components: components}
	if n < 1 || !mixture.Valid() {
		return nil, fmt.Errorf("synthetic stream of %d from %d components: %w", n, len(components),
			common.ErrorInvalidValue)
	}
	return NewSliceSource(DrawMixture(components, n, seed)), nil
}

// DrawMixture picks a component by weight for each draw, then samples its normal.
func DrawMixture(components []model.Component, n int, seed uint64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	normals := make([]distuv.Normal, len(components))
	for i, c := range components {
		normals[i] = distuv.Normal{Mu: c.Mean, Sigma: c.StdDev, Src: rng}
	}

	prices := make([]float64, n)
	for i := range prices {
		u := rng.Float64()
		j, acc := 0, components[0].Weight
		for u > acc && j < len(components)-1 {
			j++
			acc += components[j].Weight
		}
		prices[i] = normals[j].Rand()
	}
	return prices
}
