package gmm

import "github.com/pkg/errors"

var (
	// ErrDimensionMismatch is returned when a frame is empty, malformed, or does not
	// match the dimensions of the allocated grid. Call Reset to accept a new size.
	ErrDimensionMismatch = errors.New("gmm: frame dimensions do not match model grid")
	// ErrModelNotReady is returned when an operation needs state the model does not
	// have yet, e.g. Classify before the fit table was computed.
	ErrModelNotReady = errors.New("gmm: model not ready")
	// ErrInvalidPhase is returned when an operation is not legal in the current phase,
	// e.g. TrainStep after the fit table was computed.
	ErrInvalidPhase = errors.New("gmm: operation not allowed in current phase")
	// ErrInvalidConfiguration is returned by Config.Validate and New.
	ErrInvalidConfiguration = errors.New("gmm: invalid configuration")
)
