package strategy

import (
	"fmt"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/config"
	"github.com/uyouii/optimal-stopping/density"
	"github.com/uyouii/optimal-stopping/gmm"
	"github.com/uyouii/optimal-stopping/kde"
)

func NewEstimator(cfg config.Config) (density.Estimator, error) {
	switch cfg.Estimator {
	case config.EstimatorGMM, "":
		return gmm.NewEstimator(cfg.ComponentCount, cfg.Mixture, cfg.RandomSeed), nil
	case config.EstimatorKDE:
		return kde.NewEstimator(cfg.Kde), nil
	}
	return nil, fmt.Errorf("estimator %q: %w", cfg.Estimator, common.ErrorInvalidConfig)
}
