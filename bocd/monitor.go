package bocd

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/config"
	"github.com/uyouii/optimal-stopping/model"
	"github.com/uyouii/optimal-stopping/utils"
)

// Monitor watches the live part of the price stream for a regime shift, which would break
// the identically distributed assumption the calibration relies on. It only reports.
//
// The checker costs O(t) per point, so once it holds MaxDataSize points it is rebuilt from
// the last ReserveSize points with a prior re-estimated from them.
type Monitor struct {
	cfg          config.Drift
	checker      *OnlineChecker
	varx         float64
	mean0        float64
	changePoints []*model.ChangePoint
}

// NewMonitor takes its prior from baseline, normally the warm-up prices.
func NewMonitor(ctx context.Context, cfg config.Drift, baseline []float64) (*Monitor, error) {
	varx, mean0, err := prior(baseline)
	if err != nil {
		return nil, err
	}

	utils.GetLogger(ctx).Info("drift monitor prior", zap.Float64("varx", varx),
		zap.Float64("mean0", mean0), zap.Int("baseline", len(baseline)))

	return &Monitor{
		cfg:          cfg,
		checker:      NewOnlineChecker(varx, mean0, cfg.Hazard, cfg.ChangePointThreshold, cfg.ObserveWindow),
		varx:         varx,
		mean0:        mean0,
		changePoints: []*model.ChangePoint{},
	}, nil
}

func prior(prices []float64) (float64, float64, error) {
	if len(prices) < 2 {
		return 0, 0, fmt.Errorf("drift prior on %d prices: %w", len(prices), common.ErrorInsufficientData)
	}
	mean0, varx := stat.MeanVariance(prices, nil)
	if !(varx > 0) {
		return 0, 0, fmt.Errorf("drift prior variance %v: %w", varx, common.ErrorInvalidValue)
	}
	return varx, mean0, nil
}

func (m *Monitor) rebalance(ctx context.Context) {
	if m.checker.DataSize() <= m.cfg.MaxDataSize {
		return
	}
	logger := utils.GetLogger(ctx)

	datas := m.checker.Prices()
	reserveDatas := datas[len(datas)-m.cfg.ReserveSize:]

	varx, mean0, err := prior(model.Prices(reserveDatas))
	if err != nil {
		logger.Warn("keep previous drift prior", zap.Error(err))
	} else {
		m.varx, m.mean0 = varx, mean0
	}

	newChecker := NewOnlineChecker(m.varx, m.mean0, m.cfg.Hazard, m.cfg.ChangePointThreshold, m.cfg.ObserveWindow)
	for _, obs := range reserveDatas {
		newChecker.AppendPoint(obs)
	}
	m.checker = newChecker
	logger.Debug("rebuilt drift checker", zap.Float64("varx", m.varx), zap.Float64("mean0", m.mean0))
}

// Observe appends one price and returns a change point the first time it is seen.
func (m *Monitor) Observe(ctx context.Context, obs model.PriceObservation) (*model.ChangePoint, bool) {
	m.rebalance(ctx)

	changePoint, found := m.checker.AppendPoint(obs)
	if !found {
		return nil, false
	}
	for _, seen := range m.changePoints {
		if seen.Observation.Index == changePoint.Observation.Index {
			return nil, false
		}
	}
	m.changePoints = append(m.changePoints, changePoint)
	return changePoint, true
}

func (m *Monitor) ChangePoints() []*model.ChangePoint {
	return m.changePoints
}
