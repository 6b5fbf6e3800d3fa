package images

// This file contains the cosmetic cleanup applied to classified masks before they
// are displayed or searched for blobs, using OpenCV (via gocv).
//
// Pipeline:
//
// ┌──────────────┐
// │ gmm.Mask     │
// └──────┬───────┘
// ┌────────────────────────────┐
// │ Binarize (shadow → 0)      │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Open (3x3)                 │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Erode, then Dilate (k x k) │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Contour Detection          │
// └────────────────────────────┘
//
// Usage:
//
//	pf := images.NewPostFilter(images.DefaultPostFilterConfig())
//	defer pf.Close()
//
//	for {
//	    mask, _ := model.Process(frame)
//	    if err := pf.Apply(mask); err != nil {
//	        return err
//	    }
//	    boxes := pf.Contours(500)
//	}
//
// Note: You must call Close() when finished to release native resources.

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-mog/gmm"
)

// PostFilterConfig sizes the morphological kernels.
type PostFilterConfig struct {
	// OpenKernel is the side of the square opening kernel. 0 skips the opening.
	OpenKernel int `json:"open_kernel" yaml:"open_kernel"`
	// Kernel is the side of the square erode/dilate kernel. 0 skips both.
	Kernel int `json:"kernel" yaml:"kernel"`
}

// DefaultPostFilterConfig returns a 3x3 opening followed by a 7x7 erode and dilate.
func DefaultPostFilterConfig() PostFilterConfig {
	return PostFilterConfig{OpenKernel: 3, Kernel: 7}
}

// PostFilter holds the OpenCV state reused across frames.
type PostFilter struct {
	// Output is the cleaned binary mask, valid until the next Apply.
	Output     gocv.Mat
	openKernel gocv.Mat
	kernel     gocv.Mat
	config     PostFilterConfig
}

// NewPostFilter allocates the structuring elements. Always call Close.
func NewPostFilter(config PostFilterConfig) *PostFilter {
	pf := &PostFilter{
		Output:     gocv.NewMat(),
		openKernel: gocv.NewMat(),
		kernel:     gocv.NewMat(),
		config:     config,
	}
	if config.OpenKernel > 0 {
		pf.openKernel.Close()
		pf.openKernel = gocv.GetStructuringElement(gocv.MorphRect, image.Pt(config.OpenKernel, config.OpenKernel))
	}
	if config.Kernel > 0 {
		pf.kernel.Close()
		pf.kernel = gocv.GetStructuringElement(gocv.MorphRect, image.Pt(config.Kernel, config.Kernel))
	}
	return pf
}

// Apply binarizes the mask (shadow counts as background) and runs the opening,
// erosion and dilation into Output.
//
// Arguments:
//   - mask: The classified mask.
//
// Returns:
//   - error: An error if OpenCV rejects an operation.
func (pf *PostFilter) Apply(mask *gmm.Mask) error {
	bin, err := MaskToMat(mask.Binary(), 0)
	if err != nil {
		return err
	}
	defer bin.Close()
	bin.CopyTo(&pf.Output)

	if pf.config.OpenKernel > 0 {
		if err := gocv.MorphologyEx(pf.Output, &pf.Output, gocv.MorphOpen, pf.openKernel); err != nil {
			return errors.Wrap(err, "open")
		}
	}
	if pf.config.Kernel > 0 {
		if err := gocv.Erode(pf.Output, &pf.Output, pf.kernel); err != nil {
			return errors.Wrap(err, "erode")
		}
		if err := gocv.Dilate(pf.Output, &pf.Output, pf.kernel); err != nil {
			return errors.Wrap(err, "dilate")
		}
	}
	return nil
}

// Contours returns the bounding boxes of external blobs in Output whose contour area
// is at least minArea pixels.
func (pf *PostFilter) Contours(minArea float64) []image.Rectangle {
	contours := gocv.FindContours(pf.Output, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var boxes []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) >= minArea {
			boxes = append(boxes, gocv.BoundingRect(c))
		}
	}
	return boxes
}

// Close releases all OpenCV native resources used by the filter.
func (pf *PostFilter) Close() {
	pf.Output.Close()
	pf.openKernel.Close()
	pf.kernel.Close()
}
