// Package gmm - Configuration for the adaptive mixture model.
package gmm

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// DefaultMaxComponents is the default number of Gaussians kept per pixel.
	DefaultMaxComponents = 5
	// DefaultTrainLearningRate is the learning rate used while training.
	DefaultTrainLearningRate = 0.05
	// DefaultRunLearningRate is the learning rate used once the fit table exists.
	DefaultRunLearningRate = 0.005
	// DefaultMatchThreshold is the match tolerance in standard deviations.
	DefaultMatchThreshold = 2.5
	// DefaultBackgroundThreshold is the cumulative weight that defines background.
	DefaultBackgroundThreshold = 0.7
	// DefaultTrainingFrames is the number of calibration frames, counting the first.
	DefaultTrainingFrames = 60
	// DefaultInitialVariance is the variance of a freshly created component (sigma 15).
	DefaultInitialVariance = 225.0
	// DefaultMinVariance is the variance floor (sigma 2 grey levels).
	DefaultMinVariance = 4.0

	// maxComponentsLimit keeps the per-mixture size representable in a byte.
	maxComponentsLimit = 255
)

// ShadowConfig controls shadow discrimination.
type ShadowConfig struct {
	// Enabled turns on the tri-state mask. When false the mask is binary.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// LowRatio is the darkest accepted ratio of observation to background mean.
	LowRatio float64 `json:"low_ratio" yaml:"low_ratio"`
	// HighRatio is the brightest accepted ratio of observation to background mean.
	HighRatio float64 `json:"high_ratio" yaml:"high_ratio"`
	// ChromaTolerance is the largest allowed spread of per-channel ratios.
	// Only meaningful for multi-channel frames.
	ChromaTolerance float64 `json:"chroma_tolerance" yaml:"chroma_tolerance"`
}

// Config contains the tunable parameters of a Model.
type Config struct {
	// MaxComponents is K, the cap on Gaussians per pixel-channel.
	MaxComponents int `json:"max_components" yaml:"max_components"`
	// TrainLearningRate is alpha during the training phase.
	TrainLearningRate float64 `json:"train_learning_rate" yaml:"train_learning_rate"`
	// RunLearningRate is alpha during classification. Must not exceed TrainLearningRate.
	RunLearningRate float64 `json:"run_learning_rate" yaml:"run_learning_rate"`
	// MatchThreshold is lambda: a sample matches when |x-mean| < lambda*sigma.
	MatchThreshold float64 `json:"match_threshold" yaml:"match_threshold"`
	// BackgroundThreshold is T, the cumulative weight the background components must reach.
	BackgroundThreshold float64 `json:"background_threshold" yaml:"background_threshold"`
	// TrainingFrames is the number of frames, including the first, before the fit table is computed.
	TrainingFrames int `json:"training_frames" yaml:"training_frames"`
	// InitialVariance is V0, the variance of new components.
	InitialVariance float64 `json:"initial_variance" yaml:"initial_variance"`
	// MinVariance is the variance floor applied after every update.
	MinVariance float64 `json:"min_variance" yaml:"min_variance"`
	// Shadow configures shadow detection.
	Shadow ShadowConfig `json:"shadow" yaml:"shadow"`
	// RefitInterval recomputes the fit table every N classified frames. 0 disables it.
	RefitInterval int `json:"refit_interval" yaml:"refit_interval"`
	// Workers is the number of goroutines per frame pass. 0 means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultConfig returns a default configuration for the model.
//
// Returns:
//   - Config: defaults suitable for 8-bit intensity video.
//
// @example
// cfg := gmm.DefaultConfig()
// cfg.Shadow.Enabled = true
// model, err := gmm.New(cfg)
func DefaultConfig() Config {
	return Config{
		MaxComponents:       DefaultMaxComponents,
		TrainLearningRate:   DefaultTrainLearningRate,
		RunLearningRate:     DefaultRunLearningRate,
		MatchThreshold:      DefaultMatchThreshold,
		BackgroundThreshold: DefaultBackgroundThreshold,
		TrainingFrames:      DefaultTrainingFrames,
		InitialVariance:     DefaultInitialVariance,
		MinVariance:         DefaultMinVariance,
		Shadow: ShadowConfig{
			Enabled:         false,
			LowRatio:        0.4,
			HighRatio:       0.9,
			ChromaTolerance: 0.1,
		},
	}
}

// Validate checks that every parameter is in range.
// Returns an error wrapping ErrInvalidConfiguration for the first offending field.
func (c Config) Validate() error {
	if c.MaxComponents < 1 || c.MaxComponents > maxComponentsLimit {
		return errors.Wrapf(ErrInvalidConfiguration, "max_components must be in [1, %d], got %d", maxComponentsLimit, c.MaxComponents)
	}
	if !inOpenUnit(c.TrainLearningRate) {
		return errors.Wrapf(ErrInvalidConfiguration, "train_learning_rate must be in (0, 1), got %v", c.TrainLearningRate)
	}
	if !inOpenUnit(c.RunLearningRate) {
		return errors.Wrapf(ErrInvalidConfiguration, "run_learning_rate must be in (0, 1), got %v", c.RunLearningRate)
	}
	if c.TrainLearningRate < c.RunLearningRate {
		return errors.Wrapf(ErrInvalidConfiguration, "train_learning_rate (%v) must be >= run_learning_rate (%v)", c.TrainLearningRate, c.RunLearningRate)
	}
	if !(c.MatchThreshold > 0) || math.IsInf(c.MatchThreshold, 0) {
		return errors.Wrapf(ErrInvalidConfiguration, "match_threshold must be positive, got %v", c.MatchThreshold)
	}
	if !(c.BackgroundThreshold > 0 && c.BackgroundThreshold <= 1) {
		return errors.Wrapf(ErrInvalidConfiguration, "background_threshold must be in (0, 1], got %v", c.BackgroundThreshold)
	}
	if c.TrainingFrames < 2 {
		return errors.Wrapf(ErrInvalidConfiguration, "training_frames must be >= 2, got %d", c.TrainingFrames)
	}
	if !(c.MinVariance > 0) || math.IsInf(c.MinVariance, 0) {
		return errors.Wrapf(ErrInvalidConfiguration, "min_variance must be positive, got %v", c.MinVariance)
	}
	if !(c.InitialVariance >= c.MinVariance) || math.IsInf(c.InitialVariance, 0) {
		return errors.Wrapf(ErrInvalidConfiguration, "initial_variance must be >= min_variance (%v), got %v", c.MinVariance, c.InitialVariance)
	}
	if c.RefitInterval < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "refit_interval must be non-negative, got %d", c.RefitInterval)
	}
	if c.Workers < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "workers must be non-negative, got %d", c.Workers)
	}
	if c.Shadow.Enabled {
		s := c.Shadow
		if !(s.LowRatio > 0 && s.LowRatio < s.HighRatio && s.HighRatio < 1) {
			return errors.Wrapf(ErrInvalidConfiguration, "shadow ratio band must satisfy 0 < low < high < 1, got [%v, %v]", s.LowRatio, s.HighRatio)
		}
		if s.ChromaTolerance < 0 {
			return errors.Wrapf(ErrInvalidConfiguration, "shadow chroma_tolerance must be non-negative, got %v", s.ChromaTolerance)
		}
	}
	return nil
}

func inOpenUnit(v float64) bool {
	return v > 0 && v < 1
}

// params returns the per-mixture subset of the configuration used in hot loops.
func (c Config) params() Params {
	return Params{
		MaxComponents:   c.MaxComponents,
		MatchThreshold:  c.MatchThreshold,
		InitialVariance: c.InitialVariance,
		MinVariance:     c.MinVariance,
	}
}
