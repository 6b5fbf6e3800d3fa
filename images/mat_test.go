package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-mog/gmm"
)

func TestFrameFromMatBGR(t *testing.T) {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 2, 3, gocv.MatTypeCV8UC3)
	defer mat.Close()

	f, err := FrameFromMat(mat, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Equal(t, []float64{30, 20, 10}, f.Pix[:3], "BGR is reordered to R, G, B")

	gray, err := FrameFromMat(mat, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, gray.Channels)
	assert.Len(t, gray.Pix, 6)
}

func TestFrameFromMatErrors(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	_, err := FrameFromMat(empty, 1)
	assert.ErrorIs(t, err, gmm.ErrDimensionMismatch)

	mono := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC1)
	defer mono.Close()
	_, err = FrameFromMat(mono, 3)
	assert.ErrorIs(t, err, ErrUnsupportedChannels)
	_, err = FrameFromMat(mono, 2)
	assert.ErrorIs(t, err, ErrUnsupportedChannels)
}

func TestMaskMatRoundTrip(t *testing.T) {
	mask := gmm.NewMask(4, 3)
	mask.Set(1, 1, gmm.Foreground)
	mask.Set(2, 2, gmm.Shadow)

	mat, err := MaskToMat(mask.Binary(), 0)
	require.NoError(t, err)
	defer mat.Close()

	back, err := MaskFromMat(mat)
	require.NoError(t, err)
	assert.Equal(t, gmm.Foreground, back.At(1, 1))
	assert.Equal(t, gmm.Background, back.At(2, 2))
	_, fg, _ := back.Counts()
	assert.Equal(t, 1, fg)
}

func TestDefaultPostFilterConfig(t *testing.T) {
	assert.Equal(t, PostFilterConfig{OpenKernel: 3, Kernel: 7}, DefaultPostFilterConfig())
}

func TestPostFilterRemovesSpecks(t *testing.T) {
	mask := gmm.NewMask(20, 20)
	mask.Set(2, 2, gmm.Foreground)
	for y := 8; y < 16; y++ {
		for x := 8; x < 16; x++ {
			mask.Set(x, y, gmm.Foreground)
		}
	}

	pf := NewPostFilter(DefaultPostFilterConfig())
	defer pf.Close()
	require.NoError(t, pf.Apply(mask))

	out, err := MaskFromMat(pf.Output)
	require.NoError(t, err)
	assert.Equal(t, gmm.Background, out.At(2, 2))
	assert.Equal(t, gmm.Foreground, out.At(11, 11))

	boxes := pf.Contours(10)
	require.Len(t, boxes, 1)
	assert.True(t, boxes[0].Overlaps(image.Rect(8, 8, 16, 16)))
}
