package gmm

// Grid is the model arena: one Mixture per pixel-channel, stored contiguously.
// Mixture i occupies components[i*K : (i+1)*K], of which the first sizes[i] are live.
// The fit table lives alongside it, one entry per mixture.
type Grid struct {
	Width    int
	Height   int
	Channels int
	K        int

	components []Component
	sizes      []uint8
	fit        []uint8
}

func newGrid(width, height, channels, k int) *Grid {
	n := width * height * channels
	return &Grid{
		Width:      width,
		Height:     height,
		Channels:   channels,
		K:          k,
		components: make([]Component, n*k),
		sizes:      make([]uint8, n),
		fit:        make([]uint8, n),
	}
}

// Len returns the number of mixtures in the grid.
func (g *Grid) Len() int { return len(g.sizes) }

// Pixels returns the number of pixel locations.
func (g *Grid) Pixels() int { return g.Width * g.Height }

// Idx returns the mixture index of pixel (x, y), channel c.
func (g *Grid) Idx(x, y, c int) int { return (y*g.Width+x)*g.Channels + c }

// mixture returns a view of mixture i backed by the arena, with capacity K.
func (g *Grid) mixture(i int) Mixture {
	base := i * g.K
	return Mixture(g.components[base : base+int(g.sizes[i]) : base+g.K])
}

// commit records the new length of mixture i after an in-place update.
func (g *Grid) commit(i int, m Mixture) {
	g.sizes[i] = uint8(len(m))
}

func (g *Grid) sameShape(f *Frame) bool {
	return g.Width == f.Width && g.Height == f.Height && g.Channels == f.Channels
}
