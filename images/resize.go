package images

import (
	"image"

	"github.com/nfnt/resize"
)

// Downscale shrinks img to the given width, preserving aspect ratio. Images that are
// already narrower than width, and a width of 0, are returned unchanged.
//
// Arguments:
//   - img: The source image.
//   - width: The target width in pixels.
//
// Returns:
//   - image.Image: The resized image, or img itself.
func Downscale(img image.Image, width int) image.Image {
	if width <= 0 || img.Bounds().Dx() <= width {
		return img
	}
	return resize.Resize(uint(width), 0, img, resize.Bilinear)
}

// FitResolution shrinks img so that it fits inside the resolution, preserving aspect
// ratio. Smaller images are returned unchanged.
func FitResolution(img image.Image, res Resolution) image.Image {
	b := img.Bounds()
	if res.Pixels.Width <= 0 || res.Pixels.Height <= 0 ||
		(b.Dx() <= res.Pixels.Width && b.Dy() <= res.Pixels.Height) {
		return img
	}
	return resize.Thumbnail(uint(res.Pixels.Width), uint(res.Pixels.Height), img, resize.Bilinear)
}
