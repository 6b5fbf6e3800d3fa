package main

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-mog/images"
	"github.com/nvr-ai/go-mog/internal/log"
	"github.com/nvr-ai/go-mog/pipeline"
)

// shadowGrey is the display value of shadow pixels.
const shadowGrey = 127

var (
	red   = color.RGBA{255, 0, 0, 0}
	white = color.RGBA{255, 255, 255, 0}
)

// window shows each classified mask with its motion boxes. Pressing q or Esc calls quit.
type window struct {
	win    *gocv.Window
	canvas gocv.Mat
	quit   func()
}

func newWindow(title string, quit func()) *window {
	return &window{win: gocv.NewWindow(title), canvas: gocv.NewMat(), quit: quit}
}

func (w *window) Show(out pipeline.Output) {
	mat, err := images.MaskToMat(out.Mask, shadowGrey)
	if err != nil {
		log.Warn("display: mask conversion failed", "error", err)
		return
	}
	defer mat.Close()
	gocv.CvtColor(mat, &w.canvas, gocv.ColorGrayToBGR)

	for _, b := range out.Boxes {
		gocv.Rectangle(&w.canvas, b, red, 2)
	}
	gocv.PutText(&w.canvas, out.Event.Status, image.Pt(10, 20), gocv.FontHersheyPlain, 1.2, red, 2)
	gocv.PutText(&w.canvas, fmt.Sprintf("FG: %.1f%%", out.Event.Fraction*100), image.Pt(10, 40), gocv.FontHersheyPlain, 1.2, white, 1)

	w.win.IMShow(w.canvas)
	if key := w.win.WaitKey(1); key == 'q' || key == 27 {
		w.quit()
	}
}

func (w *window) Close() {
	w.canvas.Close()
	w.win.Close()
}
