package pipeline

import (
	"context"
	"image"
	"io"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-mog/gmm"
	"github.com/nvr-ai/go-mog/images"
	"github.com/nvr-ai/go-mog/util"
)

// Source yields model frames. Next returns io.EOF after the last frame.
type Source interface {
	Next(ctx context.Context) (*gmm.Frame, error)
	Close() error
}

// Shaping reduces decoded images before conversion.
type Shaping struct {
	// Width downscales to this width. 0 keeps the width.
	Width int
	// Resolution, when set, fits the image inside it after the width step.
	Resolution *images.Resolution
	// Channels is 1 or 3.
	Channels int
}

func (s Shaping) resizes() bool {
	return s.Width > 0 || s.Resolution != nil
}

func (s Shaping) frame(img image.Image) (*gmm.Frame, error) {
	img = images.Downscale(img, s.Width)
	if s.Resolution != nil {
		img = images.FitResolution(img, *s.Resolution)
	}
	return images.FrameFromImage(img, s.Channels)
}

// DirSource replays a directory of frame-<n>.<ext> images in frame order.
type DirSource struct {
	files   []util.ImageFile
	next    int
	shaping Shaping
}

// NewDirSource loads every frame file in dir.
func NewDirSource(dir string, shaping Shaping) (*DirSource, error) {
	files, err := util.LoadDirectoryFrames(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no frame files in %s", dir)
	}
	return &DirSource{files: files, shaping: shaping}, nil
}

// Len returns the number of frames in the directory.
func (d *DirSource) Len() int { return len(d.files) }

// Next decodes the next file.
func (d *DirSource) Next(ctx context.Context) (*gmm.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.next >= len(d.files) {
		return nil, io.EOF
	}
	f := d.files[d.next]
	d.next++
	img, err := util.DecodeFrame(f)
	if err != nil {
		return nil, err
	}
	return d.shaping.frame(img)
}

// Close releases nothing; it satisfies Source.
func (d *DirSource) Close() error { return nil }

// CaptureSource reads from an OpenCV video capture: a camera index or a video file.
type CaptureSource struct {
	// Last holds the most recent BGR frame, valid until the next call to Next.
	Last    gocv.Mat
	capture *gocv.VideoCapture
	shaping Shaping
	name    string
}

// OpenCapture opens a camera (device) or a video file (video, when non-empty).
func OpenCapture(device int, video string, shaping Shaping) (*CaptureSource, error) {
	var (
		capture *gocv.VideoCapture
		err     error
		name    string
	)
	if video != "" {
		capture, err = gocv.OpenVideoCapture(video)
		name = video
	} else {
		capture, err = gocv.OpenVideoCapture(device)
		name = "device"
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open video capture %s", name)
	}
	return &CaptureSource{Last: gocv.NewMat(), capture: capture, shaping: shaping, name: name}, nil
}

// Next reads frames until a non-empty one arrives. io.EOF is returned when the
// capture is exhausted or closed.
func (c *CaptureSource) Next(ctx context.Context) (*gmm.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ok := c.capture.Read(&c.Last); !ok {
			return nil, io.EOF
		}
		if !c.Last.Empty() {
			break
		}
	}
	if !c.shaping.resizes() {
		return images.FrameFromMat(c.Last, c.shaping.Channels)
	}
	img, err := c.Last.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert capture frame")
	}
	return c.shaping.frame(img)
}

// Close releases the capture and the frame buffer.
func (c *CaptureSource) Close() error {
	c.Last.Close()
	return c.capture.Close()
}
