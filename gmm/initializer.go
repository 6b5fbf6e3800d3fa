package gmm

import "github.com/pkg/errors"

// Initialize allocates the grid for the frame's dimensions and seeds every mixture
// with a single component centred on its sample. The model moves to Training.
//
// Arguments:
//   - frame: The first frame of the stream.
//
// Returns:
//   - error: ErrDimensionMismatch for an empty or malformed frame, or a frame whose
//     size differs from the allocated grid; ErrInvalidPhase if already initialized.
func (m *Model) Initialize(frame *Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialize(frame)
}

func (m *Model) initialize(frame *Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	if m.grid != nil {
		if !m.grid.sameShape(frame) {
			return errors.Wrapf(ErrDimensionMismatch, "frame is %dx%dx%d, grid is %dx%dx%d",
				frame.Width, frame.Height, frame.Channels, m.grid.Width, m.grid.Height, m.grid.Channels)
		}
		if m.phase != Uninitialized {
			return errors.Wrapf(ErrInvalidPhase, "initialize in phase %s", m.phase)
		}
	} else {
		m.grid = newGrid(frame.Width, frame.Height, frame.Channels, m.config.MaxComponents)
	}

	g, p := m.grid, m.params
	ch := g.Channels
	parallel(g.Pixels(), m.config.Workers, func(start, end int) {
		for i := start * ch; i < end*ch; i++ {
			g.commit(i, g.mixture(i).Initialize(frame.Pix[i], p))
			g.fit[i] = 1
		}
	})

	m.framesSeen = 1
	m.classified = 0
	m.setPhase(Training)
	return nil
}
