package gmm

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the state of a model's grid at one point in time.
type Summary struct {
	Phase      Phase
	FramesSeen int
	Mixtures   int
	// DominantVarianceMean and DominantVarianceStdDev describe the variance of the
	// most confident component of each mixture.
	DominantVarianceMean   float64
	DominantVarianceStdDev float64
	// MeanComponents is the average number of live components per mixture.
	MeanComponents float64
	// MeanFit is the average fit number. Zero before the fit table exists.
	MeanFit float64
	// FitHistogram counts mixtures per fit number; index 0 is unused.
	FitHistogram []int
}

// Summary computes grid statistics. An uninitialized model returns a zero Summary
// carrying only its phase.
func (m *Model) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{Phase: m.phase, FramesSeen: m.framesSeen}
	g := m.grid
	if g == nil {
		return s
	}

	n := g.Len()
	variances := make([]float64, n)
	sizes := make([]float64, n)
	for i := 0; i < n; i++ {
		mx := g.mixture(i)
		variances[i] = mx[0].Variance
		sizes[i] = float64(len(mx))
	}
	s.Mixtures = n
	if n > 1 {
		s.DominantVarianceMean, s.DominantVarianceStdDev = stat.MeanStdDev(variances, nil)
	} else {
		s.DominantVarianceMean = variances[0]
	}
	s.MeanComponents = floats.Sum(sizes) / float64(n)

	if m.phase >= FitComputed {
		s.FitHistogram = make([]int, g.K+1)
		fits := make([]float64, n)
		for i, b := range g.fit {
			fits[i] = float64(b)
			s.FitHistogram[b]++
		}
		s.MeanFit = stat.Mean(fits, nil)
	}
	return s
}
