// Package plots records the mixtures of selected pixels over a run and renders
// them, together with the fit-number distribution of the whole grid, as PNG charts.
package plots

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/nvr-ai/go-mog/gmm"
)

// Sample is one frame of a tracked pixel.
type Sample struct {
	Frame       int
	Observation float64
	// DominantMean and DominantSigma describe the most confident component after the update.
	DominantMean  float64
	DominantSigma float64
	Components    int
	Label         gmm.Label
	Labelled      bool
}

// PixelPlotter samples a fixed set of pixels (channel 0) every frame.
type PixelPlotter struct {
	mu      sync.Mutex
	pixels  []image.Point
	samples map[image.Point][]Sample
	frame   int
}

// ParsePixels parses "x,y;x,y" into points.
func ParsePixels(s string) ([]image.Point, error) {
	var pts []image.Point
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		xy := strings.Split(part, ",")
		if len(xy) != 2 {
			return nil, errors.Errorf("pixel %q: want x,y", part)
		}
		x, err := strconv.Atoi(strings.TrimSpace(xy[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "pixel %q", part)
		}
		y, err := strconv.Atoi(strings.TrimSpace(xy[1]))
		if err != nil {
			return nil, errors.Wrapf(err, "pixel %q", part)
		}
		pts = append(pts, image.Pt(x, y))
	}
	return pts, nil
}

// NewPixelPlotter creates a plotter for the given pixels.
func NewPixelPlotter(pixels []image.Point) *PixelPlotter {
	return &PixelPlotter{
		pixels:  append([]image.Point(nil), pixels...),
		samples: make(map[image.Point][]Sample, len(pixels)),
	}
}

// Sample records every tracked pixel for one processed frame. mask may be nil for
// training frames. Pixels outside the frame are skipped.
func (pp *PixelPlotter) Sample(model *gmm.Model, frame *gmm.Frame, mask *gmm.Mask) {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	pp.frame++

	for _, pt := range pp.pixels {
		if pt.X < 0 || pt.Y < 0 || pt.X >= frame.Width || pt.Y >= frame.Height {
			continue
		}
		mx, err := model.Mixture(pt.X, pt.Y, 0)
		if err != nil || len(mx) == 0 {
			continue
		}
		s := Sample{
			Frame:         pp.frame,
			Observation:   frame.At(pt.X, pt.Y, 0),
			DominantMean:  mx[0].Mean,
			DominantSigma: math.Sqrt(mx[0].Variance),
			Components:    len(mx),
		}
		if mask != nil {
			s.Label = mask.At(pt.X, pt.Y)
			s.Labelled = true
		}
		pp.samples[pt] = append(pp.samples[pt], s)
	}
}

// Samples returns a copy of the series recorded for pt.
func (pp *PixelPlotter) Samples(pt image.Point) []Sample {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return append([]Sample(nil), pp.samples[pt]...)
}

// GeneratePlots writes one PNG per tracked pixel into dir and returns the number written.
func (pp *PixelPlotter) GeneratePlots(dir string) (int, error) {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errors.Wrap(err, "failed to create plot dir")
	}

	pts := make([]image.Point, 0, len(pp.samples))
	for pt := range pp.samples {
		pts = append(pts, pt)
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].Y != pts[j].Y {
			return pts[i].Y < pts[j].Y
		}
		return pts[i].X < pts[j].X
	})

	count := 0
	for _, pt := range pts {
		samples := pp.samples[pt]
		if len(samples) == 0 {
			continue
		}
		file := filepath.Join(dir, fmt.Sprintf("pixel_%d_%d.png", pt.X, pt.Y))
		if err := pixelPlot(pt, samples, file); err != nil {
			return count, errors.Wrapf(err, "pixel %v", pt)
		}
		count++
	}
	return count, nil
}

func pixelPlot(pt image.Point, samples []Sample, file string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Pixel (%d, %d)", pt.X, pt.Y)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Intensity"

	obs := make(plotter.XYs, len(samples))
	mean := make(plotter.XYs, len(samples))
	upper := make(plotter.XYs, len(samples))
	lower := make(plotter.XYs, len(samples))
	var fg plotter.XYs
	for i, s := range samples {
		x := float64(s.Frame)
		obs[i] = plotter.XY{X: x, Y: s.Observation}
		mean[i] = plotter.XY{X: x, Y: s.DominantMean}
		upper[i] = plotter.XY{X: x, Y: s.DominantMean + gmm.DefaultMatchThreshold*s.DominantSigma}
		lower[i] = plotter.XY{X: x, Y: s.DominantMean - gmm.DefaultMatchThreshold*s.DominantSigma}
		if s.Labelled && s.Label == gmm.Foreground {
			fg = append(fg, obs[i])
		}
	}

	lines := []struct {
		name string
		pts  plotter.XYs
		c    color.Color
		dash bool
	}{
		{"observation", obs, color.RGBA{R: 80, G: 80, B: 80, A: 255}, false},
		{"dominant mean", mean, color.RGBA{B: 200, A: 255}, false},
		{"match band", upper, color.RGBA{B: 200, A: 120}, true},
		{"", lower, color.RGBA{B: 200, A: 120}, true},
	}
	for _, l := range lines {
		line, err := plotter.NewLine(l.pts)
		if err != nil {
			return err
		}
		line.Color = l.c
		line.Width = vg.Points(1)
		if l.dash {
			line.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
		}
		p.Add(line)
		if l.name != "" {
			p.Legend.Add(l.name, line)
		}
	}
	if len(fg) > 0 {
		sc, err := plotter.NewScatter(fg)
		if err != nil {
			return err
		}
		sc.Color = color.RGBA{R: 220, A: 255}
		p.Add(sc)
		p.Legend.Add("foreground", sc)
	}

	p.Legend.Top = true
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p.Save(14*vg.Inch, 6*vg.Inch, file)
}

// FitHistogram writes a bar chart of summary.FitHistogram to file.
func FitHistogram(summary gmm.Summary, file string) error {
	if len(summary.FitHistogram) < 2 {
		return errors.Wrap(gmm.ErrModelNotReady, "no fit table")
	}
	values := make(plotter.Values, len(summary.FitHistogram)-1)
	names := make([]string, len(values))
	for b := 1; b < len(summary.FitHistogram); b++ {
		values[b-1] = float64(summary.FitHistogram[b])
		names[b-1] = strconv.Itoa(b)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Background components per mixture (mean %.2f)", summary.MeanFit)
	p.X.Label.Text = "Fit number"
	p.Y.Label.Text = "Mixtures"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return err
	}
	bars.Color = color.RGBA{G: 120, B: 200, A: 255}
	p.Add(bars)
	p.NominalX(names...)

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return errors.Wrap(err, "failed to create plot dir")
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, file)
}
