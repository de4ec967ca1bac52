package model

import "fmt"

type Clip struct {
	Lower float64
	Upper float64
}

type Cdf struct {
	X     float64
	Value float64
}

type QuantileValue struct {
	Value    float64 `json:"v,omitempty"`
	Quantile float64 `json:"q,omitempty"`
}

// PriceSummary holds a few quantiles of the price history.
type PriceSummary struct {
	Count          int                       `json:"count"`
	Mean           float64                   `json:"mean"`
	StdDev         float64                   `json:"std"`
	QuantileValues map[string]*QuantileValue `json:"quantiles,omitempty"`
}

func (s *PriceSummary) GetQuantileValue(value float64) (*QuantileValue, bool) {
	if s == nil || s.QuantileValues == nil {
		return nil, false
	}
	quantile, ok := s.QuantileValues[QuantileKey(value)]
	return quantile, ok
}

func QuantileKey(value float64) string {
	return fmt.Sprintf("%v", value)
}
