package kde

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/model"
	"github.com/uyouii/optimal-stopping/utils"
)

// SummarizeHistory smooths the price history with a kernel density, after dropping points
// more than 3 standard deviations from the mean, and reads off SummaryQuantiles.
func SummarizeHistory(ctx context.Context, prices []float64) (summary *model.PriceSummary, err error) {
	logger := utils.GetLogger(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("SummarizeHistory recover panic error!", zap.Any("err", r),
				zap.String("panic info", utils.GetPanicInfo()), zap.Int("count", len(prices)))
			summary, err = nil, common.ErrorInvalidValue
		}
	}()

	if len(prices) < MinFitPointCnt {
		logger.Debug("point too little, skip summary", zap.Int("cnt", len(prices)))
		return nil, common.ErrorInsufficientData
	}

	mean, stddev := stat.MeanStdDev(prices, nil)
	clip := &model.Clip{
		Upper: mean + stddev*ClipUpperZScore,
		Lower: mean - stddev*ClipLowerZScore,
	}

	k, err := NewKDEUnivariate(prices, nil, 1.0, 4.0, clip)
	if err != nil {
		logger.Error("NewKDEUnivariate failed", zap.Error(err))
		return nil, err
	}

	quantiles := map[string]*model.QuantileValue{}
	for _, p := range SummaryQuantiles {
		quantile, err := k.GridQuantile(p)
		if err != nil {
			logger.Error("kde Quantile failed", zap.Error(err), zap.Float64("p", p))
			continue
		}
		quantile.Value = utils.FormatFloat(quantile.Value, 3)
		quantiles[model.QuantileKey(p)] = quantile
	}

	return &model.PriceSummary{
		Count:          len(prices),
		Mean:           utils.FormatFloat(mean, 3),
		StdDev:         utils.FormatFloat(stddev, 3),
		QuantileValues: quantiles,
	}, nil
}

// SummaryFields renders a summary as log fields.
func SummaryFields(s *model.PriceSummary) []zap.Field {
	if s == nil {
		return nil
	}
	res := []zap.Field{zap.Int("count", s.Count), zap.Float64("mean", s.Mean), zap.Float64("std", s.StdDev)}
	for _, p := range SummaryQuantiles {
		if q, ok := s.GetQuantileValue(p); ok {
			res = append(res, zap.Float64(fmt.Sprintf("q%v", p), q.Value))
		}
	}
	return res
}
