package gmm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Shadow.Enabled = true
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero components", func(c *Config) { c.MaxComponents = 0 }},
		{"too many components", func(c *Config) { c.MaxComponents = 256 }},
		{"train rate zero", func(c *Config) { c.TrainLearningRate = 0 }},
		{"train rate one", func(c *Config) { c.TrainLearningRate = 1 }},
		{"run rate negative", func(c *Config) { c.RunLearningRate = -0.1 }},
		{"run above train", func(c *Config) { c.RunLearningRate = 0.1 }},
		{"zero lambda", func(c *Config) { c.MatchThreshold = 0 }},
		{"infinite lambda", func(c *Config) { c.MatchThreshold = math.Inf(1) }},
		{"zero threshold", func(c *Config) { c.BackgroundThreshold = 0 }},
		{"threshold above one", func(c *Config) { c.BackgroundThreshold = 1.01 }},
		{"nan threshold", func(c *Config) { c.BackgroundThreshold = math.NaN() }},
		{"one training frame", func(c *Config) { c.TrainingFrames = 1 }},
		{"zero min variance", func(c *Config) { c.MinVariance = 0 }},
		{"initial below floor", func(c *Config) { c.InitialVariance = 2 }},
		{"negative refit", func(c *Config) { c.RefitInterval = -1 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
		{"inverted shadow band", func(c *Config) {
			c.Shadow.Enabled = true
			c.Shadow.LowRatio, c.Shadow.HighRatio = 0.9, 0.4
		}},
		{"shadow band reaches one", func(c *Config) {
			c.Shadow.Enabled = true
			c.Shadow.HighRatio = 1
		}},
		{"negative chroma tolerance", func(c *Config) {
			c.Shadow.Enabled = true
			c.Shadow.ChromaTolerance = -0.1
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)
		})
	}
}

func TestConfigValidateIgnoresDisabledShadowBand(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Shadow.LowRatio, cfg.Shadow.HighRatio = 0, 0
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidateBoundaries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxComponents = 1
	cfg.BackgroundThreshold = 1
	cfg.TrainingFrames = 2
	cfg.RunLearningRate = cfg.TrainLearningRate
	cfg.InitialVariance = cfg.MinVariance
	assert.NoError(t, cfg.Validate())
}
