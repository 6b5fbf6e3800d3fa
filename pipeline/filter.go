package pipeline

import (
	"image"

	"github.com/nvr-ai/go-mog/config"
	"github.com/nvr-ai/go-mog/gmm"
	"github.com/nvr-ai/go-mog/images"
	"github.com/nvr-ai/go-mog/images/kernels"
)

// Filter cleans a classified mask before motion analysis.
type Filter interface {
	// Filter returns the cleaned binary mask and the boxes of blobs worth drawing.
	Filter(mask *gmm.Mask) (*gmm.Mask, []image.Rectangle, error)
	Close()
}

// NewFilter builds the filter selected by cfg.Backend.
func NewFilter(cfg config.FilterConfig) Filter {
	if cfg.Backend == config.BackendGo {
		open, clean := cfg.KernelOptions()
		return &kernelFilter{open: open, clean: clean}
	}
	return &openCVFilter{pf: images.NewPostFilter(cfg.PostFilter()), minArea: cfg.MinBlobArea}
}

type openCVFilter struct {
	pf      *images.PostFilter
	minArea float64
}

func (f *openCVFilter) Filter(mask *gmm.Mask) (*gmm.Mask, []image.Rectangle, error) {
	if err := f.pf.Apply(mask); err != nil {
		return nil, nil, err
	}
	cleaned, err := images.MaskFromMat(f.pf.Output)
	if err != nil {
		return nil, nil, err
	}
	return cleaned, images.MergeBoxes(f.pf.Contours(f.minArea), 0), nil
}

func (f *openCVFilter) Close() { f.pf.Close() }

// kernelFilter runs the pure-Go morphology. It reports no boxes.
type kernelFilter struct {
	open, clean kernels.Options
}

func (f *kernelFilter) Filter(mask *gmm.Mask) (*gmm.Mask, []image.Rectangle, error) {
	return kernels.Clean(mask, f.open, f.clean), nil, nil
}

func (f *kernelFilter) Close() {}
