package gmm

import "github.com/pkg/errors"

// Frame is a rectangular grid of samples, row-major with interleaved channels.
// Channels is 1 for intensity frames and 3 for colour frames.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Pix      []float64
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height, channels int) *Frame {
	return &Frame{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float64, width*height*channels),
	}
}

// At returns the sample of pixel (x, y), channel c.
func (f *Frame) At(x, y, c int) float64 {
	return f.Pix[(y*f.Width+x)*f.Channels+c]
}

// Set assigns the sample of pixel (x, y), channel c.
func (f *Frame) Set(x, y, c int, v float64) {
	f.Pix[(y*f.Width+x)*f.Channels+c] = v
}

// Fill sets every sample of the frame to v.
func (f *Frame) Fill(v float64) {
	for i := range f.Pix {
		f.Pix[i] = v
	}
}

// Validate reports whether the frame is non-empty and its buffer matches its shape.
func (f *Frame) Validate() error {
	if f == nil {
		return errors.Wrap(ErrDimensionMismatch, "frame is nil")
	}
	if f.Width <= 0 || f.Height <= 0 || f.Channels <= 0 {
		return errors.Wrapf(ErrDimensionMismatch, "frame is empty: %dx%dx%d", f.Width, f.Height, f.Channels)
	}
	if want := f.Width * f.Height * f.Channels; len(f.Pix) != want {
		return errors.Wrapf(ErrDimensionMismatch, "frame buffer holds %d samples, want %d", len(f.Pix), want)
	}
	return nil
}
