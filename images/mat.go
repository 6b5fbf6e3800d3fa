package images

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-mog/gmm"
)

// FrameFromMat converts an 8-bit OpenCV matrix to a model frame.
//
// Arguments:
//   - mat: A CV_8UC1 or CV_8UC3 (BGR) matrix.
//   - channels: 1 for intensity, 3 for R, G, B.
//
// Returns:
//   - *gmm.Frame: The frame.
//   - error: An error if the matrix type or channel count is unsupported.
func FrameFromMat(mat gocv.Mat, channels int) (*gmm.Frame, error) {
	if channels != 1 && channels != 3 {
		return nil, errors.Wrapf(ErrUnsupportedChannels, "got %d", channels)
	}
	if mat.Empty() {
		return nil, errors.Wrap(gmm.ErrDimensionMismatch, "empty mat")
	}

	src := mat
	switch {
	case mat.Type() == gocv.MatTypeCV8UC3 && channels == 1:
		gray := gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
		src = gray
	case mat.Type() == gocv.MatTypeCV8UC1 && channels == 3:
		return nil, errors.Wrap(ErrUnsupportedChannels, "cannot expand a single-channel mat to colour")
	case mat.Type() != gocv.MatTypeCV8UC1 && mat.Type() != gocv.MatTypeCV8UC3:
		return nil, errors.Wrapf(ErrUnsupportedChannels, "mat type %v", mat.Type())
	}

	data, err := src.DataPtrUint8()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read mat data")
	}

	f := gmm.NewFrame(src.Cols(), src.Rows(), channels)
	if len(data) < len(f.Pix) {
		return nil, errors.Wrapf(gmm.ErrDimensionMismatch, "mat holds %d bytes, want %d", len(data), len(f.Pix))
	}
	if channels == 1 {
		for i := range f.Pix {
			f.Pix[i] = float64(data[i])
		}
		return f, nil
	}
	// BGR to R, G, B.
	for i := 0; i < len(f.Pix); i += 3 {
		f.Pix[i] = float64(data[i+2])
		f.Pix[i+1] = float64(data[i+1])
		f.Pix[i+2] = float64(data[i])
	}
	return f, nil
}

// MaskToMat renders a mask as a CV_8UC1 matrix. The caller owns the result.
func MaskToMat(mask *gmm.Mask, shadowValue uint8) (gocv.Mat, error) {
	img := MaskToGray(mask, shadowValue)
	mat, err := gocv.NewMatFromBytes(mask.Height, mask.Width, gocv.MatTypeCV8UC1, img.Pix)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "failed to create mask mat")
	}
	return mat, nil
}

// MaskFromMat reads a CV_8UC1 binary matrix back into a mask; non-zero pixels are
// Foreground.
func MaskFromMat(mat gocv.Mat) (*gmm.Mask, error) {
	if mat.Empty() || mat.Type() != gocv.MatTypeCV8UC1 {
		return nil, errors.Wrapf(gmm.ErrDimensionMismatch, "want a non-empty CV_8UC1 mat, got %v", mat.Type())
	}
	data, err := mat.DataPtrUint8()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read mat data")
	}
	mask := gmm.NewMask(mat.Cols(), mat.Rows())
	if len(data) < len(mask.Labels) {
		return nil, errors.Wrapf(gmm.ErrDimensionMismatch, "mat holds %d bytes, want %d", len(data), len(mask.Labels))
	}
	for i := range mask.Labels {
		if data[i] != 0 {
			mask.Labels[i] = gmm.Foreground
		}
	}
	return mask, nil
}
