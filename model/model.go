package model

import (
	"fmt"
	"math"
)

// PriceObservation is one item price with its arrival index in the stream.
type PriceObservation struct {
	Index int
	Price float64
}

func (o *PriceObservation) Less(other PriceObservation) bool {
	return o.Price < other.Price
}

// Prices returns the raw price values of observations, in arrival order.
func Prices(observations []PriceObservation) []float64 {
	res := make([]float64, len(observations))
	for i, o := range observations {
		res[i] = o.Price
	}
	return res
}

type Decision int

const (
	Continue Decision = 0
	Accept   Decision = 1
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Continue:
		return "continue"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

type State int

const (
	Warmup     State = 0
	Evaluating State = 1
	Selected   State = 2
	Exhausted  State = 3
)

func (s State) String() string {
	switch s {
	case Warmup:
		return "warmup"
	case Evaluating:
		return "evaluating"
	case Selected:
		return "selected"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == Selected || s == Exhausted
}

// Outcome is the terminal record of one run over the stream.
type Outcome struct {
	State State `json:"state"`
	// Index and Price are only meaningful when State is Selected
	Index         int     `json:"index"`
	Price         float64 `json:"price"`
	Threshold     float64 `json:"threshold,omitempty"`
	Observed      int     `json:"observed"`
	SkippedEvals  int     `json:"skipped_evals,omitempty"`
	DriftDetected int     `json:"drift_detected,omitempty"`
}

func (o *Outcome) DebugString() string {
	if o.State == Selected {
		return fmt.Sprintf("state: %v, index: %v, price: %v, threshold: %v, observed: %v",
			o.State, o.Index, o.Price, o.Threshold, o.Observed)
	}
	return fmt.Sprintf("state: %v, observed: %v, skipped: %v", o.State, o.Observed, o.SkippedEvals)
}

// Component is one weighted normal in a mixture.
type Component struct {
	Weight float64 `json:"weight"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
}

// MixtureModel is a fitted univariate Gaussian mixture. It is never mutated after fitting.
type MixtureModel struct {
	Components    []Component `json:"components"`
	LogLikelihood float64     `json:"log_likelihood"`
	Iterations    int         `json:"iterations"`
	Converged     bool        `json:"converged"`
}

func (m *MixtureModel) K() int {
	if m == nil {
		return 0
	}
	return len(m.Components)
}

func (m *MixtureModel) Valid() bool {
	if m == nil || len(m.Components) == 0 {
		return false
	}
	sum := 0.0
	for _, c := range m.Components {
		if c.Weight < 0 || !(c.StdDev > 0) || math.IsNaN(c.Mean) {
			return false
		}
		sum += c.Weight
	}
	return math.Abs(sum-1) <= 1e-6
}

type ChangePointType int

const (
	IncreaseChangePoint ChangePointType = 1
	DecreaseChangePoint ChangePointType = 2
)

// ChangePoint marks the stream index at which the price regime appears to shift.
type ChangePoint struct {
	ChangePointType ChangePointType
	Observation     PriceObservation
	Probability     float64
}
