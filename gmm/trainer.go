package gmm

import "github.com/pkg/errors"

// TrainStep matches and updates every mixture against the frame with the training
// learning rate. Valid only while the model is Training.
//
// Returns:
//   - error: ErrModelNotReady before initialization, ErrInvalidPhase once the fit
//     table exists, ErrDimensionMismatch for a frame of the wrong size.
func (m *Model) TrainStep(frame *Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trainStep(frame)
}

func (m *Model) trainStep(frame *Frame) error {
	switch m.phase {
	case Uninitialized:
		return errors.Wrap(ErrModelNotReady, "train step before initialization")
	case Training:
	default:
		return errors.Wrapf(ErrInvalidPhase, "train step in phase %s", m.phase)
	}
	if err := m.checkFrame(frame); err != nil {
		return err
	}

	g, p := m.grid, m.params
	alpha, lambda := m.config.TrainLearningRate, m.config.MatchThreshold
	ch := g.Channels
	parallel(g.Pixels(), m.config.Workers, func(start, end int) {
		for i := start * ch; i < end*ch; i++ {
			x := frame.Pix[i]
			mx := g.mixture(i)
			g.commit(i, mx.Update(x, mx.Match(x, lambda), alpha, p))
		}
	})

	m.framesSeen++
	return nil
}

// ComputeFitTable records, for every mixture, how many leading components reach the
// background threshold. From Training it moves the model to FitComputed; afterwards it
// recomputes the table in place.
//
// Returns:
//   - error: ErrModelNotReady when the model has no grid.
func (m *Model) ComputeFitTable() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.computeFitTable()
}

func (m *Model) computeFitTable() error {
	if m.phase == Uninitialized || m.grid == nil {
		return errors.Wrap(ErrModelNotReady, "fit table before initialization")
	}
	m.refit()
	if m.phase == Training {
		m.setPhase(FitComputed)
	}
	return nil
}

func (m *Model) refit() {
	g := m.grid
	threshold := m.config.BackgroundThreshold
	ch := g.Channels
	parallel(g.Pixels(), m.config.Workers, func(start, end int) {
		for i := start * ch; i < end*ch; i++ {
			g.fit[i] = uint8(g.mixture(i).FitNumber(threshold))
		}
	})
}

func (m *Model) checkFrame(frame *Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	if !m.grid.sameShape(frame) {
		return errors.Wrapf(ErrDimensionMismatch, "frame is %dx%dx%d, grid is %dx%dx%d",
			frame.Width, frame.Height, frame.Channels, m.grid.Width, m.grid.Height, m.grid.Channels)
	}
	return nil
}
