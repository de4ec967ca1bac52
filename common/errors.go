package common

import "errors"

var (
	ErrorInvalidValue = errors.New("invalid value")

	// fit requested with fewer samples than the estimator needs
	ErrorInsufficientData = errors.New("insufficient data")
	// calibration split produced an empty holdout half
	ErrorEmptyHoldout = errors.New("empty holdout")

	ErrorStreamExhausted  = errors.New("stream exhausted")
	ErrorInvalidRemaining = errors.New("remaining count must be at least 1")
	ErrorAlreadyCommitted = errors.New("selection already committed")

	ErrorInvalidConfig = errors.New("invalid config")
)

// IsEstimationError reports whether err comes from fitting or calibration and can be
// recovered at the per-iteration boundary.
func IsEstimationError(err error) bool {
	return errors.Is(err, ErrorInsufficientData) || errors.Is(err, ErrorEmptyHoldout) ||
		errors.Is(err, ErrorInvalidValue)
}
