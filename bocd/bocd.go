package bocd

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/uyouii/optimal-stopping/model"
)

// OnlineChecker is Bayesian online change point detection for a Gaussian price stream
// with known variance varX and prior mean mean0.
type OnlineChecker struct {
	varX  float64 // known variance
	mean0 float64 // prior mean of a new run

	hazard        float64
	threshold     float64
	observeWindow int

	prices       []model.PriceObservation
	means        []float64 // posterior mean per run length
	invVariances []float64 // 1 / posterior variance per run length
	// unnormalized joint log probability per run length after the last point
	lastLogRunProbs []float64
	// normalized run length posterior after the last point
	runLenProb []float64

	changePoints []*model.ChangePoint
}

func NewOnlineChecker(varx, mean0, hazard, threshold float64, observeWindow int) *OnlineChecker {
	return &OnlineChecker{
		varX:  varx,
		mean0: mean0,

		hazard:        hazard,
		threshold:     threshold,
		observeWindow: observeWindow,

		prices:          []model.PriceObservation{},
		means:           []float64{mean0},
		invVariances:    []float64{1 / varx},
		lastLogRunProbs: []float64{0},
		runLenProb:      []float64{1},

		changePoints: []*model.ChangePoint{},
	}
}

func (b *OnlineChecker) AppendPoint(obs model.PriceObservation) (*model.ChangePoint, bool) {
	b.prices = append(b.prices, obs)
	x := obs.Price

	// predictive log probability of x under every run length hypothesis
	logPreProbs := b.logOfPreProb(x)

	// the run continues, growing every run length by one
	logGrowthProbs := make([]float64, len(logPreProbs))
	for i := range logPreProbs {
		logGrowthProbs[i] = logPreProbs[i] + b.lastLogRunProbs[i] + math.Log(1-b.hazard)
	}

	// the run ends here, collapsing every hypothesis to run length 0
	changeTerms := make([]float64, len(logPreProbs))
	for i := range logPreProbs {
		changeTerms[i] = logPreProbs[i] + b.lastLogRunProbs[i] + math.Log(b.hazard)
	}
	logChangePointProb := floats.LogSumExp(changeTerms)

	logRunProbs := append([]float64{logChangePointProb}, logGrowthProbs...)
	b.lastLogRunProbs = logRunProbs

	logSum := floats.LogSumExp(logRunProbs)
	b.runLenProb = make([]float64, len(logRunProbs))
	for i, v := range logRunProbs {
		b.runLenProb[i] = math.Exp(v - logSum)
	}

	b.updateGaussianParams(x)

	return b.checkChangePoints()
}

// checkChangePoints looks for a run of length j, 1 <= j <= observeWindow, holding at least
// threshold of the posterior. Such a run started at stream position t-j.
func (b *OnlineChecker) checkChangePoints() (*model.ChangePoint, bool) {
	t := len(b.prices)

	for j := 1; j < len(b.runLenProb) && j <= b.observeWindow && j < t; j++ {
		prob := b.runLenProb[j]
		if prob < b.threshold {
			continue
		}

		start := b.prices[t-j]
		prev := b.prices[t-j-1]
		changePoint := &model.ChangePoint{
			Observation: start,
			Probability: prob,
		}
		if start.Price > prev.Price {
			changePoint.ChangePointType = model.IncreaseChangePoint
		} else {
			changePoint.ChangePointType = model.DecreaseChangePoint
		}

		if last, ok := b.LastChangePoint(); ok && last.Observation.Index == start.Index {
			return nil, false
		}
		b.changePoints = append(b.changePoints, changePoint)
		return changePoint, true
	}
	return nil, false
}

func (b *OnlineChecker) updateGaussianParams(x float64) {
	newInvVariances := make([]float64, len(b.invVariances))
	for i := range b.invVariances {
		newInvVariances[i] = b.invVariances[i] + 1/b.varX
	}

	newMeans := make([]float64, len(b.means))
	for i := range b.means {
		newMeans[i] = (b.means[i]*b.invVariances[i] + x/b.varX) / newInvVariances[i]
	}

	b.invVariances = append([]float64{1 / b.varX}, newInvVariances...)
	b.means = append([]float64{b.mean0}, newMeans...)
}

func (b *OnlineChecker) logOfPreProb(x float64) []float64 {
	logProbs := make([]float64, len(b.means))
	for i := range b.means {
		normalDist := distuv.Normal{
			Mu:    b.means[i],
			Sigma: math.Sqrt(1/b.invVariances[i] + b.varX),
		}
		logProbs[i] = normalDist.LogProb(x)
	}
	return logProbs
}

// RunLengthProbs is the run length posterior after the last appended point.
func (b *OnlineChecker) RunLengthProbs() []float64 {
	return b.runLenProb
}

func (b *OnlineChecker) Prices() []model.PriceObservation {
	return b.prices
}

func (b *OnlineChecker) DataSize() int {
	return len(b.prices)
}

func (b *OnlineChecker) GetChangePoints() []*model.ChangePoint {
	return b.changePoints
}

func (b *OnlineChecker) LastChangePoint() (*model.ChangePoint, bool) {
	if len(b.changePoints) > 0 {
		return b.changePoints[len(b.changePoints)-1], true
	}
	return nil, false
}
