package picker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/uyouii/optimal-stopping/bocd"
	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/config"
	"github.com/uyouii/optimal-stopping/density"
	"github.com/uyouii/optimal-stopping/kde"
	"github.com/uyouii/optimal-stopping/model"
	"github.com/uyouii/optimal-stopping/strategy"
	"github.com/uyouii/optimal-stopping/utils"
)

// ItemSource supplies the bounded price stream and takes the final selection.
type ItemSource interface {
	// NextPrice blocks until the next item's price is available.
	NextPrice(ctx context.Context) (float64, error)
	// CommitSelection keeps the item whose price was fetched last.
	CommitSelection(ctx context.Context) error
}

type Recorder interface {
	RecordPrice(price float64)
	RecordDecision(decision string)
	RecordEstimationError(kind string)
	RecordDrift(direction string)
	RecordCalibration(threshold float64, holdoutSize int, seconds float64)
}

type Option func(p *Picker)

func WithRecorder(r Recorder) Option {
	return func(p *Picker) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithEstimator replaces the estimator selected by config.
func WithEstimator(e density.Estimator) Option {
	return func(p *Picker) {
		if e != nil {
			p.estimator = e
		}
	}
}

// Picker drives one pass over the stream: warm-up, then a fresh calibration and a
// stop/continue decision per item, then a forced decision on the last item.
// It is single use and not safe for concurrent use.
type Picker struct {
	cfg       config.Config
	source    ItemSource
	estimator density.Estimator
	rule      strategy.Rule
	recorder  Recorder
	monitor   *bocd.Monitor

	state     model.State
	history   []float64
	threshold float64
	skipped   int
	drift     int
	ran       bool
}

// New validates cfg; an invalid config is fatal.
func New(cfg config.Config, source ItemSource, opts ...Option) (*Picker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("nil item source: %w", common.ErrorInvalidConfig)
	}
	rule, err := strategy.ParseRule(cfg.Rule)
	if err != nil {
		return nil, err
	}

	p := &Picker{
		cfg:      cfg,
		source:   source,
		rule:     rule,
		recorder: nopRecorder{},
		state:    model.Warmup,
		history:  make([]float64, 0, cfg.StreamLength),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.estimator == nil {
		if p.estimator, err = strategy.NewEstimator(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.WarmupLength == 0 {
		p.state = model.Evaluating
	}
	return p, nil
}

func (p *Picker) State() model.State {
	return p.state
}

// History returns a copy of the prices seen and passed over so far.
func (p *Picker) History() []float64 {
	return utils.CopyFloats(p.history)
}

// Run consumes at most StreamLength prices. Reaching the end without a selection is a
// normal outcome (Exhausted), not an error.
func (p *Picker) Run(ctx context.Context) (*model.Outcome, error) {
	if p.ran {
		return nil, fmt.Errorf("picker already ran: %w", common.ErrorInvalidValue)
	}
	p.ran = true

	if utils.RunID(ctx) == "" {
		ctx = utils.WithRunID(ctx, uuid.NewString())
	}
	logger := utils.GetLogger(ctx)
	logger.Info("picker start", zap.Int("streamLength", p.cfg.StreamLength),
		zap.Int("warmupLength", p.cfg.WarmupLength), zap.String("estimator", p.estimator.Name()),
		zap.String("rule", string(p.rule)), zap.Float64s("candidates", p.cfg.ThresholdCandidates))

	n := p.cfg.StreamLength
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		price, err := p.source.NextPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch price %d: %w", i, err)
		}
		p.recorder.RecordPrice(price)
		obs := model.PriceObservation{Index: i, Price: price}

		if i == n-1 {
			return p.finalDecision(ctx, obs)
		}

		if p.state == model.Warmup {
			p.history = append(p.history, price)
			if len(p.history) == p.cfg.WarmupLength {
				p.endWarmup(ctx)
			}
			continue
		}

		accepted, err := p.evaluate(ctx, obs)
		if err != nil {
			return nil, err
		}
		if accepted {
			return p.outcome(obs), nil
		}
	}

	// unreachable with StreamLength >= 1, the last index always returns above
	p.state = model.Exhausted
	return p.outcome(model.PriceObservation{Index: n - 1}), nil
}

func (p *Picker) endWarmup(ctx context.Context) {
	logger := utils.GetLogger(ctx)
	p.state = model.Evaluating

	summary, err := kde.SummarizeHistory(ctx, p.history)
	if err != nil {
		logger.Info("warm-up complete", zap.Int("observed", len(p.history)))
	} else {
		logger.Info("warm-up complete", kde.SummaryFields(summary)...)
	}

	if !p.cfg.Drift.Enabled {
		return
	}
	monitor, err := bocd.NewMonitor(ctx, p.cfg.Drift, p.history)
	if err != nil {
		logger.Warn("drift monitor disabled", zap.Error(err))
		return
	}
	p.monitor = monitor
}

// evaluate recalibrates on the full current history and decides on obs.
func (p *Picker) evaluate(ctx context.Context, obs model.PriceObservation) (bool, error) {
	logger := utils.GetLogger(ctx)

	calibration, err := p.calibrate(ctx)
	if err != nil {
		if !common.IsEstimationError(err) {
			return false, err
		}
		p.skipped++
		p.recorder.RecordEstimationError(errorKind(err))
		logger.Warn("calibration failed, skip decision", zap.Int("index", obs.Index),
			zap.Int("history", len(p.history)), zap.Error(err))
		p.pass(ctx, obs)
		return false, nil
	}
	p.threshold = calibration.Threshold

	remaining := p.cfg.StreamLength - len(p.history)
	decision, err := p.rule.Decide(calibration.Model, calibration.Threshold, obs.Price, remaining)
	if err != nil {
		return false, err
	}
	p.recorder.RecordDecision(decision.String())

	logger.Debug("decision", zap.Int("index", obs.Index), zap.Float64("price", obs.Price),
		zap.Int("remaining", remaining), zap.Float64("threshold", calibration.Threshold),
		zap.Float64("holdoutBest", calibration.Price), zap.Stringer("decision", decision))

	if decision == model.Accept {
		if err := p.commit(ctx, obs); err != nil {
			return false, err
		}
		return true, nil
	}

	p.pass(ctx, obs)
	return false, nil
}

func (p *Picker) calibrate(ctx context.Context) (calibration *strategy.Calibration, err error) {
	defer p.recoverFit(ctx, "calibration", &err)

	start := time.Now()
	calibration, err = strategy.Calibrate(ctx, p.estimator, p.history, p.cfg)
	if err != nil {
		return nil, err
	}
	p.recorder.RecordCalibration(calibration.Threshold, calibration.HoldoutSize, time.Since(start).Seconds())
	return calibration, nil
}

// fitHistory fits the estimator on the whole history for the last item.
func (p *Picker) fitHistory(ctx context.Context) (m density.Model, err error) {
	defer p.recoverFit(ctx, "final fit", &err)
	return p.estimator.Fit(ctx, p.history)
}

// recoverFit turns a panic inside the estimator into an estimation error, so the
// iteration is skipped instead of aborting the run.
func (p *Picker) recoverFit(ctx context.Context, stage string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	utils.GetLogger(ctx).Error(stage+" recover panic error!", zap.Any("err", r),
		zap.String("panic info", utils.GetPanicInfo()), zap.Int("history", len(p.history)))
	*err = fmt.Errorf("%s panic %v: %w", stage, r, common.ErrorInvalidValue)
}

// pass rejects obs and moves it into the history.
func (p *Picker) pass(ctx context.Context, obs model.PriceObservation) {
	p.history = append(p.history, obs.Price)
	if p.monitor == nil {
		return
	}
	changePoint, found := p.monitor.Observe(ctx, obs)
	if !found {
		return
	}
	p.drift++
	direction := "decrease"
	if changePoint.ChangePointType == model.IncreaseChangePoint {
		direction = "increase"
	}
	p.recorder.RecordDrift(direction)
	utils.GetLogger(ctx).Warn("price regime change detected, calibration assumes identically distributed prices",
		zap.Int("index", changePoint.Observation.Index), zap.Float64("price", changePoint.Observation.Price),
		zap.String("direction", direction), zap.Float64("probability", changePoint.Probability))
}

// finalDecision handles the last item: there is nothing left to wait for, so it is kept
// iff the cdf fitted on the whole history exceeds FinalAcceptProbability.
func (p *Picker) finalDecision(ctx context.Context, obs model.PriceObservation) (*model.Outcome, error) {
	logger := utils.GetLogger(ctx)
	p.threshold = p.cfg.FinalAcceptProbability

	m, err := p.fitHistory(ctx)
	if err != nil {
		if !common.IsEstimationError(err) {
			return nil, err
		}
		p.skipped++
		p.recorder.RecordEstimationError(errorKind(err))
		logger.Warn("final fit failed, no selection", zap.Int("history", len(p.history)), zap.Error(err))
		return p.exhaust(ctx, obs), nil
	}

	prob := m.Cdf(obs.Price)
	if prob > p.cfg.FinalAcceptProbability {
		p.recorder.RecordDecision(model.Accept.String())
		if err := p.commit(ctx, obs); err != nil {
			return nil, err
		}
		return p.outcome(obs), nil
	}
	p.recorder.RecordDecision(model.Continue.String())
	return p.exhaust(ctx, obs), nil
}

func (p *Picker) exhaust(ctx context.Context, obs model.PriceObservation) *model.Outcome {
	p.history = append(p.history, obs.Price)
	p.state = model.Exhausted
	outcome := p.outcome(obs)
	utils.GetLogger(ctx).Info("stream exhausted without selection", zap.Int("observed", outcome.Observed),
		zap.Int("skipped", p.skipped))
	return outcome
}

func (p *Picker) commit(ctx context.Context, obs model.PriceObservation) error {
	if err := p.source.CommitSelection(ctx); err != nil {
		return fmt.Errorf("commit selection %d: %w", obs.Index, err)
	}
	p.state = model.Selected
	utils.GetLogger(ctx).Info("item selected", zap.Int("index", obs.Index), zap.Float64("price", obs.Price),
		zap.Float64("threshold", p.threshold), zap.Int("history", len(p.history)))
	return nil
}

func (p *Picker) outcome(obs model.PriceObservation) *model.Outcome {
	outcome := &model.Outcome{
		State:         p.state,
		Threshold:     p.threshold,
		Observed:      obs.Index + 1,
		SkippedEvals:  p.skipped,
		DriftDetected: p.drift,
	}
	if p.state == model.Selected {
		outcome.Index, outcome.Price = obs.Index, obs.Price
	}
	return outcome
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, common.ErrorEmptyHoldout):
		return "empty_holdout"
	case errors.Is(err, common.ErrorInsufficientData):
		return "insufficient_data"
	}
	return "invalid_value"
}

// Close releases the source if it holds resources.
func Close(source ItemSource) error {
	closer, ok := source.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

// RunAndClose runs p and always closes its source, combining both errors.
func RunAndClose(ctx context.Context, p *Picker) (outcome *model.Outcome, err error) {
	defer func() {
		err = multierr.Append(err, Close(p.source))
	}()
	return p.Run(ctx)
}

type nopRecorder struct{}

func (nopRecorder) RecordPrice(float64) {}
func (nopRecorder) RecordDecision(string) {}
func (nopRecorder) RecordEstimationError(string) {}
func (nopRecorder) RecordDrift(string) {}
func (nopRecorder) RecordCalibration(float64, int, float64) {}
