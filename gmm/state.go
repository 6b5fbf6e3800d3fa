package gmm

import (
	"math"

	"github.com/pkg/errors"
)

// State is a detached copy of a model's grid, fit table and lifecycle counters.
// It holds no references into the model and can be encoded for persistence.
type State struct {
	K          int
	Phase      Phase
	FramesSeen int
	Classified int
	Width      int
	Height     int
	Channels   int
	Components []Component
	Sizes      []uint8
	Fit        []uint8
}

// Snapshot exports the model state.
//
// Returns:
//   - *State: A deep copy of the grid.
//   - error: ErrModelNotReady when the model has no grid.
func (m *Model) Snapshot() (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.grid
	if g == nil {
		return nil, errors.Wrap(ErrModelNotReady, "snapshot of an uninitialized model")
	}
	s := &State{
		K:          g.K,
		Phase:      m.phase,
		FramesSeen: m.framesSeen,
		Classified: m.classified,
		Width:      g.Width,
		Height:     g.Height,
		Channels:   g.Channels,
		Components: make([]Component, len(g.components)),
		Sizes:      make([]uint8, len(g.sizes)),
		Fit:        make([]uint8, len(g.fit)),
	}
	copy(s.Components, g.components)
	copy(s.Sizes, g.sizes)
	copy(s.Fit, g.fit)
	return s, nil
}

// Restore replaces the model's grid with a previously exported state.
//
// Returns:
//   - error: ErrInvalidConfiguration if the state was produced with a different
//     MaxComponents or holds a variance below MinVariance, ErrDimensionMismatch
//     if its buffers disagree with its shape or its fit table is out of range.
func (m *Model) Restore(s *State) error {
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s.K != m.config.MaxComponents {
		return errors.Wrapf(ErrInvalidConfiguration, "state has max_components %d, model has %d", s.K, m.config.MaxComponents)
	}
	if lo := s.minVariance(); lo < m.config.MinVariance {
		return errors.Wrapf(ErrInvalidConfiguration, "state has variance %v below min_variance %v", lo, m.config.MinVariance)
	}

	g := newGrid(s.Width, s.Height, s.Channels, s.K)
	copy(g.components, s.Components)
	copy(g.sizes, s.Sizes)
	copy(g.fit, s.Fit)

	m.grid = g
	m.framesSeen = s.FramesSeen
	m.classified = s.Classified
	m.setPhase(s.Phase)
	m.log().Info("gmm model restored",
		"width", s.Width,
		"height", s.Height,
		"channels", s.Channels,
		"phase", s.Phase.String(),
	)
	return nil
}

// Validate checks that the state is internally consistent.
func (s *State) Validate() error {
	if s == nil {
		return errors.Wrap(ErrDimensionMismatch, "state is nil")
	}
	if s.Width <= 0 || s.Height <= 0 || s.Channels <= 0 || s.K <= 0 || s.K > maxComponentsLimit {
		return errors.Wrapf(ErrDimensionMismatch, "state shape %dx%dx%d with K=%d", s.Width, s.Height, s.Channels, s.K)
	}
	if s.Phase <= Uninitialized || s.Phase > Running {
		return errors.Wrapf(ErrInvalidPhase, "state phase %s", s.Phase)
	}
	n := s.Width * s.Height * s.Channels
	if len(s.Sizes) != n || len(s.Fit) != n || len(s.Components) != n*s.K {
		return errors.Wrapf(ErrDimensionMismatch, "state buffers do not match %dx%dx%d with K=%d", s.Width, s.Height, s.Channels, s.K)
	}
	for i := 0; i < n; i++ {
		size := s.Sizes[i]
		if size == 0 || int(size) > s.K {
			return errors.Wrapf(ErrDimensionMismatch, "mixture %d has %d components", i, size)
		}
		if s.Phase >= FitComputed && (s.Fit[i] < 1 || s.Fit[i] > size) {
			return errors.Wrapf(ErrDimensionMismatch, "mixture %d has fit %d of %d components", i, s.Fit[i], size)
		}
		for k, c := range s.Components[i*s.K : i*s.K+int(size)] {
			if !(c.Weight >= 0 && c.Weight <= 1) {
				return errors.Wrapf(ErrDimensionMismatch, "mixture %d component %d has weight %v", i, k, c.Weight)
			}
			if math.IsNaN(c.Mean) || math.IsInf(c.Mean, 0) {
				return errors.Wrapf(ErrDimensionMismatch, "mixture %d component %d has mean %v", i, k, c.Mean)
			}
			if !(c.Variance > 0) || math.IsInf(c.Variance, 0) {
				return errors.Wrapf(ErrDimensionMismatch, "mixture %d component %d has variance %v", i, k, c.Variance)
			}
		}
	}
	return nil
}

// minVariance returns the smallest variance held by a live component.
func (s *State) minVariance() float64 {
	lo := math.Inf(1)
	for i, size := range s.Sizes {
		for _, c := range s.Components[i*s.K : i*s.K+int(size)] {
			lo = math.Min(lo, c.Variance)
		}
	}
	return lo
}
