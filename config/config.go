// Package config - Pipeline configuration files for go-mog.
//
// A pipeline file is YAML (or JSON, which YAML accepts) with one section per stage:
//
//	model:
//	  max_components: 5
//	  training_frames: 120
//	  shadow:
//	    enabled: true
//	capture:
//	  device: 0
//	  resize_width: 320
//	filter:
//	  backend: opencv
//	motion:
//	  min_area: 0.02
//	  min_motion_duration: 1s
//	store:
//	  path: snapshots.db
//	  sensor_id: front-door
//
// Omitted fields keep their defaults.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-mog/gmm"
	"github.com/nvr-ai/go-mog/images"
	"github.com/nvr-ai/go-mog/images/kernels"
	"github.com/nvr-ai/go-mog/motion"
)

// maxFileSize caps configuration files at 1 MiB.
const maxFileSize = 1 * 1024 * 1024

// Filter backends.
const (
	BackendOpenCV = "opencv"
	BackendGo     = "go"
)

// ErrInvalid is returned for configuration values outside their range.
var ErrInvalid = errors.New("config: invalid configuration")

// CaptureConfig selects and shapes the frame source.
type CaptureConfig struct {
	// Device is the camera index used when neither Video nor Directory is set.
	Device int `json:"device" yaml:"device"`
	// Video is a video file path.
	Video string `json:"video" yaml:"video"`
	// Directory holds extracted frame-<n>.<ext> images.
	Directory string `json:"directory" yaml:"directory"`
	// ResizeWidth downscales frames to this width before modelling. 0 keeps the size.
	ResizeWidth int `json:"resize_width" yaml:"resize_width"`
	// Resolution names a processing resolution frames are fitted into, e.g. "QVGA".
	Resolution string `json:"resolution" yaml:"resolution"`
	// Channels is 1 for intensity modelling and 3 for per-channel colour.
	Channels int `json:"channels" yaml:"channels"`
}

// FilterConfig configures mask cleanup.
type FilterConfig struct {
	// Backend is "opencv" (gocv) or "go" (pure Go kernels).
	Backend string `json:"backend" yaml:"backend"`
	// OpenKernel is the side of the opening kernel. 0 skips the opening.
	OpenKernel int `json:"open_kernel" yaml:"open_kernel"`
	// Kernel is the side of the erode/dilate kernel. 0 skips both.
	Kernel int `json:"kernel" yaml:"kernel"`
	// MinBlobArea is the smallest contour area, in pixels, drawn as a motion box.
	MinBlobArea float64 `json:"min_blob_area" yaml:"min_blob_area"`
}

// StoreConfig configures snapshot persistence. An empty Path disables it.
type StoreConfig struct {
	Path     string `json:"path" yaml:"path"`
	SensorID string `json:"sensor_id" yaml:"sensor_id"`
	// Restore loads the sensor's latest snapshot at startup instead of training.
	Restore bool `json:"restore" yaml:"restore"`
	// SnapshotInterval saves a snapshot every N classified frames. 0 disables it.
	SnapshotInterval int `json:"snapshot_interval" yaml:"snapshot_interval"`
}

// Pipeline is the root configuration.
type Pipeline struct {
	Model    gmm.Config    `json:"model" yaml:"model"`
	Capture  CaptureConfig `json:"capture" yaml:"capture"`
	Filter   FilterConfig  `json:"filter" yaml:"filter"`
	Motion   motion.Config `json:"motion" yaml:"motion"`
	Store    StoreConfig   `json:"store" yaml:"store"`
	LogLevel string        `json:"log_level" yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Pipeline {
	pf := images.DefaultPostFilterConfig()
	return Pipeline{
		Model:   gmm.DefaultConfig(),
		Capture: CaptureConfig{Channels: 1, ResizeWidth: 320},
		Filter: FilterConfig{
			Backend:     BackendOpenCV,
			OpenKernel:  pf.OpenKernel,
			Kernel:      pf.Kernel,
			MinBlobArea: 100,
		},
		Motion:   motion.DefaultConfig(),
		Store:    StoreConfig{SensorID: "default"},
		LogLevel: "info",
	}
}

// Load reads a pipeline file over the defaults and validates the result.
// The file must have a .yaml, .yml or .json extension and be at most 1 MiB.
// Unknown keys are rejected.
//
// Arguments:
//   - path: The configuration file.
//
// Returns:
//   - *Pipeline: The merged configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (*Pipeline, error) {
	cleanPath := filepath.Clean(path)
	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".yaml", ".yml", ".json":
	default:
		return nil, errors.Errorf("config file must have .yaml, .yml or .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat config file")
	}
	if info.Size() > maxFileSize {
		return nil, errors.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse decodes a pipeline document over the defaults and validates the result.
func Parse(data []byte) (*Pipeline, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (p *Pipeline) Validate() error {
	if err := p.Model.Validate(); err != nil {
		return errors.Wrap(err, "model")
	}
	if err := p.Motion.Validate(); err != nil {
		return errors.Wrap(err, "motion")
	}
	if err := p.Capture.Validate(); err != nil {
		return errors.Wrap(err, "capture")
	}
	if err := p.Filter.Validate(); err != nil {
		return errors.Wrap(err, "filter")
	}
	if p.Store.SnapshotInterval < 0 {
		return errors.Wrapf(ErrInvalid, "store: snapshot_interval must be non-negative, got %d", p.Store.SnapshotInterval)
	}
	if p.Store.Path != "" && p.Store.SensorID == "" {
		return errors.Wrap(ErrInvalid, "store: sensor_id is required when path is set")
	}
	return nil
}

// Validate checks the capture section.
func (c CaptureConfig) Validate() error {
	if c.Video != "" && c.Directory != "" {
		return errors.Wrap(ErrInvalid, "video and directory are mutually exclusive")
	}
	if c.Device < 0 {
		return errors.Wrapf(ErrInvalid, "device must be non-negative, got %d", c.Device)
	}
	if c.ResizeWidth < 0 {
		return errors.Wrapf(ErrInvalid, "resize_width must be non-negative, got %d", c.ResizeWidth)
	}
	if c.Channels != 1 && c.Channels != 3 {
		return errors.Wrapf(ErrInvalid, "channels must be 1 or 3, got %d", c.Channels)
	}
	if c.Resolution != "" {
		if _, ok := images.ResolutionByName(c.Resolution); !ok {
			return errors.Wrapf(ErrInvalid, "unknown resolution %q", c.Resolution)
		}
	}
	return nil
}

// Validate checks the filter section.
func (f FilterConfig) Validate() error {
	switch f.Backend {
	case BackendOpenCV, BackendGo:
	default:
		return errors.Wrapf(ErrInvalid, "backend must be %q or %q, got %q", BackendOpenCV, BackendGo, f.Backend)
	}
	if f.OpenKernel < 0 || f.Kernel < 0 {
		return errors.Wrapf(ErrInvalid, "kernel sizes must be non-negative, got %d and %d", f.OpenKernel, f.Kernel)
	}
	if f.MinBlobArea < 0 {
		return errors.Wrapf(ErrInvalid, "min_blob_area must be non-negative, got %v", f.MinBlobArea)
	}
	return nil
}

// PostFilter returns the gocv post-filter settings.
func (f FilterConfig) PostFilter() images.PostFilterConfig {
	return images.PostFilterConfig{OpenKernel: f.OpenKernel, Kernel: f.Kernel}
}

// KernelOptions returns the pure-Go opening and erode/dilate options. A kernel of
// side k has radius k/2.
func (f FilterConfig) KernelOptions() (open, clean kernels.Options) {
	open = kernels.Options{Radius: f.OpenKernel / 2, Edge: kernels.EdgeClamp, Parallel: true}
	clean = kernels.Options{Radius: f.Kernel / 2, Edge: kernels.EdgeClamp, Parallel: true}
	return open, clean
}
