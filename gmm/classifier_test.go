package gmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedModel(t *testing.T, shadows bool, background []float64) *Model {
	t.Helper()
	m := newTestModel(t, func(c *Config) {
		c.TrainingFrames = 20
		c.Shadow.Enabled = shadows
	})
	f := NewFrame(1, 1, len(background))
	copy(f.Pix, background)
	for n := 0; n < 20; n++ {
		_, err := m.Process(f)
		require.NoError(t, err)
	}
	require.Equal(t, FitComputed, m.Phase())
	return m
}

func classifyOne(t *testing.T, m *Model, samples ...float64) Label {
	t.Helper()
	f := NewFrame(1, 1, len(samples))
	copy(f.Pix, samples)
	mask, err := m.Classify(f)
	require.NoError(t, err)
	return mask.At(0, 0)
}

func TestClassifyShadowIntensity(t *testing.T) {
	tests := []struct {
		name    string
		shadows bool
		x       float64
		want    Label
	}{
		{"darkened background is shadow", true, 120, Shadow},
		{"matched background", true, 205, Background},
		{"brighter than background", true, 255, Foreground},
		{"too dark for shadow band", true, 60, Foreground},
		{"shadows disabled", false, 120, Foreground},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := trainedModel(t, tt.shadows, []float64{200})
			assert.Equal(t, tt.want, classifyOne(t, m, tt.x))
		})
	}
}

func TestClassifyShadowColour(t *testing.T) {
	background := []float64{200, 180, 160}
	tests := []struct {
		name string
		x    []float64
		want Label
	}{
		{"uniform darkening", []float64{120, 108, 96}, Shadow},
		{"matched channel is ignored", []float64{120, 170, 96}, Shadow},
		{"hue shift", []float64{120, 140, 96}, Foreground},
		{"one channel brighter", []float64{120, 108, 255}, Foreground},
		{"all channels match", []float64{198, 182, 161}, Background},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := trainedModel(t, true, background)
			assert.Equal(t, tt.want, classifyOne(t, m, tt.x...))
		})
	}
}

func TestClassifyUpdatesAfterLabelling(t *testing.T) {
	m := trainedModel(t, false, []float64{100})
	before, err := m.Mixture(0, 0, 0)
	require.NoError(t, err)
	require.Len(t, before, 1)

	assert.Equal(t, Foreground, classifyOne(t, m, 250))

	after, err := m.Mixture(0, 0, 0)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.InDelta(t, DefaultRunLearningRate, after[1].Weight, 1e-12)
	assert.Equal(t, 250.0, after[1].Mean)
}

func TestMaskHelpers(t *testing.T) {
	mask := NewMask(2, 2)
	mask.Set(0, 0, Foreground)
	mask.Set(1, 1, Shadow)

	bg, fg, sh := mask.Counts()
	assert.Equal(t, []int{2, 1, 1}, []int{bg, fg, sh})
	assert.Equal(t, 0.25, mask.ForegroundFraction())

	bin := mask.Binary()
	assert.Equal(t, Foreground, bin.At(0, 0))
	assert.Equal(t, Background, bin.At(1, 1))
	assert.Equal(t, Shadow, mask.At(1, 1))

	assert.Equal(t, "shadow", Shadow.String())
	assert.Equal(t, "unknown", Label(7).String())
}
