package gmm

// Label is the classification of a single pixel.
type Label uint8

const (
	// Background pixels matched one of the background components.
	Background Label = iota
	// Foreground pixels matched none of the background components.
	Foreground
	// Shadow pixels are darkened, hue-preserving copies of the background.
	Shadow
)

// String returns the label name.
func (l Label) String() string {
	switch l {
	case Background:
		return "background"
	case Foreground:
		return "foreground"
	case Shadow:
		return "shadow"
	default:
		return "unknown"
	}
}

// Mask is a per-pixel labelling of a classified frame, row-major.
type Mask struct {
	Width  int
	Height int
	Labels []Label
}

// NewMask allocates a mask with every pixel set to Background.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Labels: make([]Label, width*height)}
}

// At returns the label of pixel (x, y).
func (m *Mask) At(x, y int) Label { return m.Labels[y*m.Width+x] }

// Set assigns the label of pixel (x, y).
func (m *Mask) Set(x, y int, l Label) { m.Labels[y*m.Width+x] = l }

// Counts returns the number of background, foreground and shadow pixels.
func (m *Mask) Counts() (background, foreground, shadow int) {
	for _, l := range m.Labels {
		switch l {
		case Background:
			background++
		case Foreground:
			foreground++
		case Shadow:
			shadow++
		}
	}
	return background, foreground, shadow
}

// ForegroundFraction returns the share of pixels labelled Foreground.
func (m *Mask) ForegroundFraction() float64 {
	if len(m.Labels) == 0 {
		return 0
	}
	_, fg, _ := m.Counts()
	return float64(fg) / float64(len(m.Labels))
}

// Binary returns a copy of the mask with Shadow collapsed into Background.
func (m *Mask) Binary() *Mask {
	out := &Mask{Width: m.Width, Height: m.Height, Labels: make([]Label, len(m.Labels))}
	for i, l := range m.Labels {
		if l == Foreground {
			out.Labels[i] = Foreground
		}
	}
	return out
}
