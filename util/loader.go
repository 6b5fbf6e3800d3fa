// Package util - Offline frame sources for replaying recorded clips through the model.
package util

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// ErrUnsupportedFormat is returned when a file's extension has no decoder.
var ErrUnsupportedFormat = errors.New("util: unsupported image format")

// framePrefix is the file name prefix of extracted frames: frame-<n>.<ext>.
const framePrefix = "frame-"

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number of the image file.
	Frame int
	// Format is the lower-case extension without the dot, e.g. "png".
	Format string
}

// LoadDirectoryFrames reads all frame files from a directory, ordered by frame number.
// Files are expected to be named frame-<n>.<ext> with ext one of jpg, jpeg, png, bmp
// or webp; other files are ignored.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The frames, sorted by Frame.
//   - error: Error if the directory or a file cannot be read, or a frame name has no number.
func LoadDirectoryFrames(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read frame directory %s", dir)
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		name := file.Name()
		ext := filepath.Ext(name)
		format := strings.ToLower(strings.TrimPrefix(ext, "."))
		if !supported(format) || !strings.HasPrefix(name, framePrefix) {
			continue
		}

		frame, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, framePrefix), ext))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid frame number in %s", name)
		}
		imgPath := filepath.Join(dir, name)
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", imgPath)
		}
		images = append(images, ImageFile{
			Path:   imgPath,
			Data:   data,
			Frame:  frame,
			Format: format,
		})
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Frame < images[j].Frame
	})

	return images, nil
}

// DecodeFrame decodes an image file using the decoder for its format.
func DecodeFrame(f ImageFile) (image.Image, error) {
	r := bytes.NewReader(f.Data)
	var (
		img image.Image
		err error
	)
	switch f.Format {
	case "jpg", "jpeg":
		img, err = jpeg.Decode(r)
	case "png":
		img, err = png.Decode(r)
	case "bmp":
		img, err = bmp.Decode(r)
	case "webp":
		img, err = webp.Decode(r)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q (%s)", f.Format, f.Path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode frame %d (%s)", f.Frame, f.Path)
	}
	return img, nil
}

func supported(format string) bool {
	switch format {
	case "jpg", "jpeg", "png", "bmp", "webp":
		return true
	default:
		return false
	}
}
