package gmm

import "math"

// weightTolerance absorbs rounding when cumulative weights are compared to a threshold.
const weightTolerance = 1e-9

// Component is one Gaussian hypothesis about a pixel's intensity.
type Component struct {
	Weight   float64 `json:"weight" yaml:"weight"`
	Mean     float64 `json:"mean" yaml:"mean"`
	Variance float64 `json:"variance" yaml:"variance"`
}

// Confidence is the ordering key of a mixture: weight over standard deviation.
// Heavy, compact components come first.
func (c Component) Confidence() float64 {
	return c.Weight / math.Sqrt(c.Variance)
}

// Params is the subset of Config a single mixture needs.
type Params struct {
	MaxComponents   int
	MatchThreshold  float64
	InitialVariance float64
	MinVariance     float64
}

// Mixture is the ordered set of components of one pixel-channel, sorted by
// Confidence descending. Methods return the (possibly resized) mixture; when the
// backing array has capacity for MaxComponents no allocation happens.
type Mixture []Component

// Initialize resets the mixture to a single component centred on x.
//
// Arguments:
//   - x: The observed sample.
//   - p: Mixture parameters (InitialVariance is used).
//
// Returns:
//   - Mixture: A mixture of length 1 with weight 1.
func (m Mixture) Initialize(x float64, p Params) Mixture {
	return append(m[:0], Component{Weight: 1, Mean: x, Variance: p.InitialVariance})
}

// Match returns the index of the first component, in confidence order, for which
// |x-mean| < lambda*sigma, or -1 when none matches. The earliest match wins even if
// a later component is closer.
func (m Mixture) Match(x, lambda float64) int {
	l2 := lambda * lambda
	for i := range m {
		d := x - m[i].Mean
		if d*d < l2*m[i].Variance {
			return i
		}
	}
	return -1
}

// Update folds the observation x into the mixture.
//
// With a match, every weight decays by (1-alpha) and the matched one gains alpha; the
// matched component moves towards x at rate rho = alpha/weight, so rarely seen
// components adapt faster than established ones. Without a match a fresh component
// {alpha, x, V0} is appended, or replaces the last (least confident) one when the
// mixture is full, and the remaining weights are rescaled to 1-alpha.
//
// Afterwards weights are clamped and renormalised, variances are floored at
// MinVariance and the mixture is re-sorted by confidence.
//
// Arguments:
//   - x: The observed sample.
//   - idx: The result of Match for x.
//   - alpha: The learning rate, in (0, 1).
//   - p: Mixture parameters.
//
// Returns:
//   - Mixture: The updated mixture.
func (m Mixture) Update(x float64, idx int, alpha float64, p Params) Mixture {
	if len(m) == 0 {
		return m.Initialize(x, p)
	}

	if idx >= 0 && idx < len(m) {
		for i := range m {
			w := (1 - alpha) * m[i].Weight
			if i == idx {
				w += alpha
			}
			m[i].Weight = w
		}

		c := &m[idx]
		rho := 1.0
		if c.Weight > alpha {
			rho = alpha / c.Weight
		}
		d := x - c.Mean
		c.Mean += rho * d
		c.Variance = (1-rho)*c.Variance + rho*d*d
	} else {
		fresh := Component{Weight: alpha, Mean: x, Variance: p.InitialVariance}
		if len(m) < p.MaxComponents {
			m = append(m, fresh)
		} else {
			m[len(m)-1] = fresh
		}

		last := len(m) - 1
		var others float64
		for i := 0; i < last; i++ {
			others += clampWeight(m[i].Weight)
		}
		if others > 0 {
			scale := (1 - alpha) / others
			for i := 0; i < last; i++ {
				m[i].Weight = clampWeight(m[i].Weight) * scale
			}
		} else {
			m[last].Weight = 1
		}
	}

	m.normalize(p.MinVariance)
	m.sortByConfidence()
	return m
}

// FitNumber returns how many leading components are needed for their cumulative
// weight to reach threshold. Always at least 1 for a non-empty mixture.
func (m Mixture) FitNumber(threshold float64) int {
	var cumulative float64
	for i := range m {
		cumulative += m[i].Weight
		if cumulative+weightTolerance >= threshold {
			return i + 1
		}
	}
	return len(m)
}

// WeightSum returns the sum of all component weights.
func (m Mixture) WeightSum() float64 {
	var sum float64
	for i := range m {
		sum += m[i].Weight
	}
	return sum
}

// shadowRatio looks for the first of the leading background components (those
// below fit) that x is a darkened copy of, and returns x/mean for it.
func (m Mixture) shadowRatio(x float64, fit int, low, high float64) (float64, bool) {
	if fit > len(m) {
		fit = len(m)
	}
	for k := 0; k < fit; k++ {
		mean := m[k].Mean
		if mean <= 0 {
			continue
		}
		r := x / mean
		if r >= low && r <= high {
			return r, true
		}
	}
	return 0, false
}

func (m Mixture) normalize(minVariance float64) {
	var sum float64
	for i := range m {
		m[i].Weight = clampWeight(m[i].Weight)
		sum += m[i].Weight
		if !(m[i].Variance >= minVariance) {
			m[i].Variance = minVariance
		}
	}
	if !(sum > 0) {
		even := 1 / float64(len(m))
		for i := range m {
			m[i].Weight = even
		}
		return
	}
	if sum != 1 {
		for i := range m {
			m[i].Weight /= sum
		}
	}
}

// sortByConfidence is an insertion sort; mixtures hold a handful of components and
// are nearly sorted after each update.
func (m Mixture) sortByConfidence() {
	for i := 1; i < len(m); i++ {
		c := m[i]
		key := c.Confidence()
		j := i - 1
		for j >= 0 && m[j].Confidence() < key {
			m[j+1] = m[j]
			j--
		}
		m[j+1] = c
	}
}

func clampWeight(w float64) float64 {
	switch {
	case !(w > 0):
		return 0
	case w > 1:
		return 1
	default:
		return w
	}
}
