// Package images - Conversions between Go images, OpenCV matrices and model frames.
package images

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mog/gmm"
)

// ITU-R BT.601 luma coefficients.
const (
	lumaRed   float32 = 0.299
	lumaGreen float32 = 0.587
	lumaBlue  float32 = 0.114
)

// ErrUnsupportedChannels is returned for channel counts other than 1 and 3.
var ErrUnsupportedChannels = errors.New("images: unsupported channel count")

// FrameFromImage converts an image to a model frame.
//
// Arguments:
//   - img: The source image, any bounds.
//   - channels: 1 for BT.601 intensity, 3 for R, G, B.
//
// Returns:
//   - *gmm.Frame: Samples in [0, 255], origin at the image's Min point.
//   - error: ErrUnsupportedChannels for other channel counts.
//
// @example
// frame, err := images.FrameFromImage(img, 1)
//
//	if err != nil {
//	    return err
//	}
//
// mask, err := model.Process(frame)
func FrameFromImage(img image.Image, channels int) (*gmm.Frame, error) {
	if channels != 1 && channels != 3 {
		return nil, errors.Wrapf(ErrUnsupportedChannels, "got %d", channels)
	}
	if g, ok := img.(*image.Gray); ok && channels == 1 {
		return FrameFromGray(g), nil
	}

	b := img.Bounds()
	f := gmm.NewFrame(b.Dx(), b.Dy(), channels)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl := rgb8(img.At(x, y))
			if channels == 1 {
				f.Pix[i] = float64(luma(r, g, bl))
				i++
				continue
			}
			f.Pix[i] = float64(r)
			f.Pix[i+1] = float64(g)
			f.Pix[i+2] = float64(bl)
			i += 3
		}
	}
	return f, nil
}

// FrameFromGray converts an 8-bit grey image to a single-channel frame.
func FrameFromGray(img *image.Gray) *gmm.Frame {
	b := img.Bounds()
	f := gmm.NewFrame(b.Dx(), b.Dy(), 1)
	for y := 0; y < b.Dy(); y++ {
		start := img.PixOffset(b.Min.X, b.Min.Y+y)
		row := img.Pix[start : start+b.Dx()]
		for x, v := range row {
			f.Pix[y*f.Width+x] = float64(v)
		}
	}
	return f
}

// MaskToGray renders a mask as an 8-bit image: background 0, foreground 255 and
// shadow as shadowValue.
func MaskToGray(mask *gmm.Mask, shadowValue uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, mask.Width, mask.Height))
	for i, l := range mask.Labels {
		img.Pix[i] = labelValue(l, shadowValue)
	}
	return img
}

func labelValue(l gmm.Label, shadowValue uint8) uint8 {
	switch l {
	case gmm.Foreground:
		return 255
	case gmm.Shadow:
		return shadowValue
	default:
		return 0
	}
}

func rgb8(c color.Color) (r, g, b uint8) {
	r16, g16, b16, _ := c.RGBA()
	return uint8(r16 >> 8), uint8(g16 >> 8), uint8(b16 >> 8)
}

func luma(r, g, b uint8) uint8 {
	y := lumaRed*float32(r) + lumaGreen*float32(g) + lumaBlue*float32(b)
	return uint8(math32.Min(255, math32.Floor(y+0.5)))
}
