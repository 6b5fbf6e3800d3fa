package gmm

import (
	"math"

	"github.com/pkg/errors"
)

// Classify labels every pixel of the frame against the current mixtures and then
// adapts them with the run learning rate.
//
// A channel is background when its sample matches one of the first B components of
// its mixture. A pixel is background when all of its channels are. With shadows
// enabled, a pixel whose remaining channels are all darkened copies of a background
// component, with ratios that agree within the chroma tolerance, is labelled Shadow.
//
// Returns:
//   - *Mask: The per-pixel labels.
//   - error: ErrModelNotReady before the fit table exists, ErrDimensionMismatch for a
//     frame of the wrong size.
func (m *Model) Classify(frame *Frame) (*Mask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classify(frame)
}

func (m *Model) classify(frame *Frame) (*Mask, error) {
	if m.phase < FitComputed {
		return nil, errors.Wrapf(ErrModelNotReady, "classify in phase %s", m.phase)
	}
	if err := m.checkFrame(frame); err != nil {
		return nil, err
	}

	g := m.grid
	mask := NewMask(g.Width, g.Height)
	c := classifier{
		grid:    g,
		params:  m.params,
		alpha:   m.config.RunLearningRate,
		lambda:  m.config.MatchThreshold,
		shadow:  m.config.Shadow,
		samples: frame.Pix,
	}
	parallel(g.Pixels(), m.config.Workers, func(start, end int) {
		for p := start; p < end; p++ {
			mask.Labels[p] = c.pixel(p)
		}
	})

	m.framesSeen++
	m.classified++
	m.setPhase(Running)
	if n := m.config.RefitInterval; n > 0 && m.classified%n == 0 {
		m.refit()
	}
	return mask, nil
}

type classifier struct {
	grid    *Grid
	params  Params
	alpha   float64
	lambda  float64
	shadow  ShadowConfig
	samples []float64
}

// pixel classifies pixel p and updates its mixtures. Labels are decided against the
// mixtures as they were before this frame.
func (c *classifier) pixel(p int) Label {
	g := c.grid
	ch := g.Channels
	background := true
	shadow := c.shadow.Enabled
	lo, hi := math.Inf(1), math.Inf(-1)

	for k := 0; k < ch; k++ {
		i := p*ch + k
		x := c.samples[i]
		mx := g.mixture(i)
		fit := int(g.fit[i])

		idx := mx.Match(x, c.lambda)
		if idx < 0 || idx >= fit {
			background = false
			if shadow {
				if r, ok := mx.shadowRatio(x, fit, c.shadow.LowRatio, c.shadow.HighRatio); ok {
					lo = math.Min(lo, r)
					hi = math.Max(hi, r)
				} else {
					shadow = false
				}
			}
		}

		g.commit(i, mx.Update(x, idx, c.alpha, c.params))
	}

	switch {
	case background:
		return Background
	case shadow && hi-lo <= c.shadow.ChromaTolerance:
		return Shadow
	default:
		return Foreground
	}
}
