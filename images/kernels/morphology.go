// Package kernels - Pure-Go binary morphology over classified masks.
package kernels

import (
	"sync"

	"github.com/nvr-ai/go-mog/gmm"
)

// EdgeMode defines how sampling behaves outside the mask bounds.
// - Clamp: repeats edge pixels.
// - Mirror: reflects coordinates.
// - Wrap: tiles the mask.
type EdgeMode int

const (
	EdgeClamp EdgeMode = iota
	EdgeMirror
	EdgeWrap
)

// Options configures a morphology call.
type Options struct {
	Radius   int      // Structuring element half-size (square of side 2*Radius + 1). Must be >= 0.
	Edge     EdgeMode // Edge sampling mode.
	Parallel bool     // Enable row/column parallelism.
}

type reducer func(sum, window int) uint8

func erodeOp(sum, window int) uint8 {
	if sum == window {
		return 1
	}
	return 0
}

func dilateOp(sum, _ int) uint8 {
	if sum > 0 {
		return 1
	}
	return 0
}

// Erode shrinks foreground regions: a pixel stays foreground only if its whole
// neighbourhood is foreground. Shadow is treated as background.
//
// Returns a new binary mask; the input is not modified.
func Erode(mask *gmm.Mask, opt Options) *gmm.Mask {
	return apply(mask, opt, erodeOp)
}

// Dilate grows foreground regions: a pixel becomes foreground if any neighbour is.
// Shadow is treated as background.
//
// Returns a new binary mask; the input is not modified.
func Dilate(mask *gmm.Mask, opt Options) *gmm.Mask {
	return apply(mask, opt, dilateOp)
}

// Open removes foreground specks smaller than the structuring element (erode, then dilate).
func Open(mask *gmm.Mask, opt Options) *gmm.Mask {
	return Dilate(Erode(mask, opt), opt)
}

// Close fills background holes smaller than the structuring element (dilate, then erode).
func Close(mask *gmm.Mask, opt Options) *gmm.Mask {
	return Erode(Dilate(mask, opt), opt)
}

// Clean is the display cleanup: an opening followed by an erosion and a dilation.
func Clean(mask *gmm.Mask, open, opt Options) *gmm.Mask {
	return Dilate(Erode(Open(mask, open), opt), opt)
}

func apply(mask *gmm.Mask, opt Options, op reducer) *gmm.Mask {
	w, h := mask.Width, mask.Height
	src := make([]uint8, len(mask.Labels))
	for i, l := range mask.Labels {
		if l == gmm.Foreground {
			src[i] = 1
		}
	}

	if opt.Radius > 0 && w > 0 && h > 0 {
		tmp := make([]uint8, len(src))
		horizontal(src, tmp, w, h, opt, op)
		vertical(tmp, src, w, h, opt, op)
	}

	out := gmm.NewMask(w, h)
	for i, v := range src {
		if v != 0 {
			out.Labels[i] = gmm.Foreground
		}
	}
	return out
}

// horizontal runs a sliding window along each row; O(1) per pixel regardless of radius.
func horizontal(src, dst []uint8, w, h int, opt Options, op reducer) {
	r := opt.Radius
	window := 2*r + 1
	rowTask := func(y int) {
		row := src[y*w : (y+1)*w]
		out := dst[y*w : (y+1)*w]
		sum := 0
		for k := -r; k <= r; k++ {
			sum += int(row[mapCoord(k, w, opt.Edge)])
		}
		for x := 0; x < w; x++ {
			out[x] = op(sum, window)
			sum += int(row[mapCoord(x+r+1, w, opt.Edge)]) - int(row[mapCoord(x-r, w, opt.Edge)])
		}
	}
	run(h, opt.Parallel, rowTask)
}

// vertical mirrors the horizontal pass along columns.
func vertical(src, dst []uint8, w, h int, opt Options, op reducer) {
	r := opt.Radius
	window := 2*r + 1
	colTask := func(x int) {
		sum := 0
		for k := -r; k <= r; k++ {
			sum += int(src[mapCoord(k, h, opt.Edge)*w+x])
		}
		for y := 0; y < h; y++ {
			dst[y*w+x] = op(sum, window)
			sum += int(src[mapCoord(y+r+1, h, opt.Edge)*w+x]) - int(src[mapCoord(y-r, h, opt.Edge)*w+x])
		}
	}
	run(w, opt.Parallel, colTask)
}

func run(n int, parallel bool, task func(i int)) {
	if !parallel {
		for i := 0; i < n; i++ {
			task(i)
		}
		return
	}
	chunk := chooseChunk(n)
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				task(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// mapCoord maps an index i to [0, n) according to edge mode.
// For Clamp: clamp to [0, n-1].
// For Mirror: reflect indices ... -2,-1,0,1,2, ... -> 1,0,0,1,2, ... (no duplication at edges).
// For Wrap: modulo wrap to [0, n).
func mapCoord(i, n int, mode EdgeMode) int {
	switch mode {
	case EdgeMirror:
		if n == 1 {
			return 0
		}
		for i < 0 || i >= n {
			if i < 0 {
				i = -i - 1
			} else {
				i = 2*n - i - 1
			}
		}
		return i
	case EdgeWrap:
		i %= n
		if i < 0 {
			i += n
		}
		return i
	default:
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
}

// chooseChunk picks a work chunk size that balances overhead and cache locality.
func chooseChunk(n int) int {
	switch {
	case n >= 2048:
		return 128
	case n >= 512:
		return 64
	default:
		return 32
	}
}
