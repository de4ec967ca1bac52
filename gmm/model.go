package gmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/density"
	"github.com/uyouii/optimal-stopping/model"
)

// Model is a fitted mixture with its component distributions ready for queries.
type Model struct {
	model.MixtureModel
	normals []distuv.Normal
}

// NewModel builds a Model from explicit components, e.g. a known synthetic price law.
func NewModel(components []model.Component) (*Model, error) {
	mixture := model.MixtureModel{Components: append([]model.Component(nil), components...)}
	if !mixture.Valid() {
		return nil, fmt.Errorf("mixture components %+v: %w", components, common.ErrorInvalidValue)
	}
	return newModel(mixture), nil
}

func newModel(mixture model.MixtureModel) *Model {
	normals := make([]distuv.Normal, len(mixture.Components))
	for i, c := range mixture.Components {
		normals[i] = distuv.Normal{Mu: c.Mean, Sigma: c.StdDev}
	}
	return &Model{
		MixtureModel: mixture,
		normals:      normals,
	}
}

// Cdf returns sum_i weight_i * Phi((price - mean_i) / std_i).
func (m *Model) Cdf(price float64) float64 {
	prob := 0.0
	for i, c := range m.Components {
		prob += c.Weight * m.normals[i].CDF(price)
	}
	return math.Min(math.Max(prob, 0), 1)
}

func (m *Model) Prob(price float64) float64 {
	prob := 0.0
	for i, c := range m.Components {
		prob += c.Weight * m.normals[i].Prob(price)
	}
	return prob
}

func (m *Model) Mean() float64 {
	mean := 0.0
	for _, c := range m.Components {
		mean += c.Weight * c.Mean
	}
	return mean
}

func (m *Model) Quantile(p float64) (*model.QuantileValue, error) {
	lower, upper := math.Inf(1), math.Inf(-1)
	for _, c := range m.Components {
		lower = math.Min(lower, c.Mean-c.StdDev)
		upper = math.Max(upper, c.Mean+c.StdDev)
	}
	return density.Quantile(m, p, lower, upper)
}

func (m *Model) Mixture() model.MixtureModel {
	return m.MixtureModel
}
