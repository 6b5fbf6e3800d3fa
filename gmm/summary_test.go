package gmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryUninitialized(t *testing.T) {
	m := newTestModel(t, nil)
	s := m.Summary()
	assert.Equal(t, Uninitialized, s.Phase)
	assert.Zero(t, s.Mixtures)
	assert.Nil(t, s.FitHistogram)
}

func TestSummaryAfterFit(t *testing.T) {
	m := newTestModel(t, func(c *Config) { c.TrainingFrames = 3 })
	f := NewFrame(2, 1, 1)
	for n := 0; n < 3; n++ {
		f.Pix[0] = 100
		f.Pix[1] = 100
		if n == 2 {
			f.Pix[1] = 250
		}
		_, err := m.Process(f)
		require.NoError(t, err)
	}

	s := m.Summary()
	assert.Equal(t, FitComputed, s.Phase)
	assert.Equal(t, 3, s.FramesSeen)
	assert.Equal(t, 2, s.Mixtures)
	assert.Equal(t, 1.5, s.MeanComponents)
	require.Len(t, s.FitHistogram, DefaultMaxComponents+1)
	assert.Equal(t, 2, s.FitHistogram[1])
	assert.Equal(t, 1.0, s.MeanFit)
	assert.Greater(t, s.DominantVarianceMean, 0.0)
	assert.Less(t, s.DominantVarianceMean, DefaultInitialVariance)
}
