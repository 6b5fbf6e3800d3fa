package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mog/gmm"
	"github.com/nvr-ai/go-mog/motion"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	path := writeFile(t, "pipeline.yaml", `
model:
  max_components: 3
  training_frames: 120
  shadow:
    enabled: true
capture:
  directory: /tmp/frames
  channels: 3
motion:
  min_motion_duration: 2s
store:
  path: snapshots.db
  sensor_id: front-door
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Model.MaxComponents)
	assert.Equal(t, 120, cfg.Model.TrainingFrames)
	assert.True(t, cfg.Model.Shadow.Enabled)
	assert.Equal(t, 0.4, cfg.Model.Shadow.LowRatio, "unset nested fields keep defaults")
	assert.Equal(t, gmm.DefaultRunLearningRate, cfg.Model.RunLearningRate)

	assert.Equal(t, "/tmp/frames", cfg.Capture.Directory)
	assert.Equal(t, 3, cfg.Capture.Channels)
	assert.Equal(t, 320, cfg.Capture.ResizeWidth)

	assert.Equal(t, 2*time.Second, cfg.Motion.MinMotionDuration)
	assert.Equal(t, motion.DefaultConfig().HysteresisFrames, cfg.Motion.HysteresisFrames)

	assert.Equal(t, "snapshots.db", cfg.Store.Path)
	assert.Equal(t, "front-door", cfg.Store.SensorID)
	assert.Equal(t, BackendOpenCV, cfg.Filter.Backend)
	assert.Equal(t, 3, cfg.Filter.OpenKernel)
	assert.Equal(t, 7, cfg.Filter.Kernel)

	open, clean := cfg.Filter.KernelOptions()
	assert.Equal(t, 1, open.Radius)
	assert.Equal(t, 3, clean.Radius)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "pipeline.json", `{"filter": {"backend": "go", "kernel": 5}, "log_level": "debug"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendGo, cfg.Filter.Backend)
	assert.Equal(t, 5, cfg.Filter.Kernel)
	assert.Equal(t, "debug", cfg.LogLevel)

	open, clean := cfg.Filter.KernelOptions()
	assert.Equal(t, 1, open.Radius)
	assert.Equal(t, 2, clean.Radius)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"extension", "pipeline.toml", "model: {}", "extension"},
		{"unknown key", "pipeline.yaml", "model:\n  max_gaussians: 3\n", "failed to parse"},
		{"bad model", "pipeline.yaml", "model:\n  max_components: 0\n", "model"},
		{"bad channels", "pipeline.yaml", "capture:\n  channels: 2\n", "channels"},
		{"both sources", "pipeline.yaml", "capture:\n  video: a.mp4\n  directory: frames\n", "mutually exclusive"},
		{"bad resolution", "pipeline.yaml", "capture:\n  resolution: 8K\n", "unknown resolution"},
		{"bad backend", "pipeline.yaml", "filter:\n  backend: cuda\n", "backend"},
		{"bad motion", "pipeline.yaml", "motion:\n  min_area: 2\n", "motion"},
		{"store without sensor", "pipeline.yaml", "store:\n  path: a.db\n  sensor_id: \"\"\n", "sensor_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat")
}

func TestLoadTooLarge(t *testing.T) {
	body := "# " + strings.Repeat("x", maxFileSize) + "\n"
	_, err := Load(writeFile(t, "big.yaml", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestParseEmptyIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestValidateWrapsSentinel(t *testing.T) {
	cfg := Default()
	cfg.Store.SnapshotInterval = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg = Default()
	cfg.Model.TrainingFrames = 1
	assert.ErrorIs(t, cfg.Validate(), gmm.ErrInvalidConfiguration)
}
