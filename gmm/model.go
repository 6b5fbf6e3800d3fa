package gmm

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"
)

// Phase is the lifecycle stage of a Model.
type Phase int

const (
	// Uninitialized models have no grid; the next frame initializes them.
	Uninitialized Phase = iota
	// Training models adapt with the training learning rate.
	Training
	// FitComputed models have a fit table and have not classified yet.
	FitComputed
	// Running models classify every frame.
	Running
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Training:
		return "training"
	case FitComputed:
		return "fit-computed"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Model is an adaptive per-pixel Gaussian mixture background model.
//
// A Model owns its grid exclusively; every exported method takes the model lock, so
// a Model may be shared between a capture loop and an inspector, but frames are
// always processed one at a time.
type Model struct {
	mu         sync.Mutex
	config     Config
	params     Params
	grid       *Grid
	phase      Phase
	framesSeen int
	classified int
	logger     *slog.Logger
}

// New creates an uninitialized model.
//
// Arguments:
//   - config: The model configuration.
//
// Returns:
//   - *Model: The model, ready to receive its first frame.
//   - error: An error wrapping ErrInvalidConfiguration if config is out of range.
//
// @example
// model, err := gmm.New(gmm.DefaultConfig())
//
//	if err != nil {
//	    return err
//	}
//
// mask, err := model.Process(frame)
func New(config Config) (*Model, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Model{
		config: config,
		params: config.params(),
	}, nil
}

// SetLogger replaces the logger used for phase transitions. nil restores slog.Default.
func (m *Model) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

func (m *Model) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// Process drives the model lifecycle with the next frame of the stream.
//
// The first frame initializes the grid, frames 2..TrainingFrames train it, and the
// fit table is computed right after the last training frame. Every later frame is
// classified.
//
// Arguments:
//   - frame: The next frame; its dimensions must match the first one.
//
// Returns:
//   - *Mask: The classification, or nil while the model is still training.
//   - error: ErrDimensionMismatch for a malformed or resized frame.
func (m *Model) Process(frame *Frame) (*Mask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case Uninitialized:
		return nil, m.initialize(frame)
	case Training:
		if err := m.trainStep(frame); err != nil {
			return nil, err
		}
		if m.framesSeen >= m.config.TrainingFrames {
			return nil, m.computeFitTable()
		}
		return nil, nil
	default:
		return m.classify(frame)
	}
}

// Reset drops the grid and returns the model to Uninitialized. The configuration is kept.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.phase
	m.grid = nil
	m.framesSeen = 0
	m.classified = 0
	m.setPhase(Uninitialized)
	m.log().Info("gmm model reset", "previous_phase", prev.String())
}

// Phase returns the current lifecycle phase.
func (m *Model) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// FramesSeen returns the number of frames consumed since the last reset.
func (m *Model) FramesSeen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.framesSeen
}

// Dimensions returns the grid size. ok is false when no grid is allocated.
func (m *Model) Dimensions() (width, height, channels int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grid == nil {
		return 0, 0, 0, false
	}
	return m.grid.Width, m.grid.Height, m.grid.Channels, true
}

// Config returns the model configuration.
func (m *Model) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// SetConfig replaces the configuration. MaxComponents cannot change while a grid exists.
func (m *Model) SetConfig(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grid != nil && config.MaxComponents != m.grid.K {
		return errors.Wrapf(ErrInvalidConfiguration, "max_components cannot change from %d to %d without a reset", m.grid.K, config.MaxComponents)
	}
	m.config = config
	m.params = config.params()
	return nil
}

// Mixture returns a copy of the mixture of pixel (x, y), channel c.
func (m *Model) Mixture(x, y, c int) (Mixture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.index(x, y, c)
	if err != nil {
		return nil, err
	}
	src := m.grid.mixture(i)
	out := make(Mixture, len(src))
	copy(out, src)
	return out, nil
}

// FitNumber returns the fit table entry of pixel (x, y), channel c.
func (m *Model) FitNumber(x, y, c int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.index(x, y, c)
	if err != nil {
		return 0, err
	}
	if m.phase < FitComputed {
		return 0, errors.Wrap(ErrModelNotReady, "fit table has not been computed")
	}
	return int(m.grid.fit[i]), nil
}

func (m *Model) index(x, y, c int) (int, error) {
	if m.grid == nil {
		return 0, errors.Wrap(ErrModelNotReady, "model has no grid")
	}
	g := m.grid
	if x < 0 || x >= g.Width || y < 0 || y >= g.Height || c < 0 || c >= g.Channels {
		return 0, errors.Wrapf(ErrDimensionMismatch, "pixel (%d, %d, %d) outside %dx%dx%d grid", x, y, c, g.Width, g.Height, g.Channels)
	}
	return g.Idx(x, y, c), nil
}

func (m *Model) setPhase(p Phase) {
	if m.phase == p {
		return
	}
	m.log().Info("gmm phase transition",
		"from", m.phase.String(),
		"to", p.String(),
		"frames_seen", m.framesSeen,
	)
	m.phase = p
}
