package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b image.Rectangle
		want float64
	}{
		{"identical", image.Rect(0, 0, 100, 100), image.Rect(0, 0, 100, 100), 1},
		{"disjoint", image.Rect(0, 0, 100, 100), image.Rect(200, 200, 300, 300), 0},
		{"touching edges", image.Rect(0, 0, 100, 100), image.Rect(100, 0, 200, 100), 0},
		{"quarter overlap", image.Rect(0, 0, 100, 100), image.Rect(50, 50, 150, 150), 2500.0 / 17500.0},
		{"nested", image.Rect(0, 0, 100, 100), image.Rect(25, 25, 75, 75), 0.25},
		{"empty", image.Rectangle{}, image.Rect(0, 0, 10, 10), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IoU(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, IoU(tt.b, tt.a), 1e-9, "symmetric")
		})
	}
}

func TestMergeBoxes(t *testing.T) {
	head := image.Rect(10, 0, 20, 10)
	torso := image.Rect(5, 8, 25, 40)
	car := image.Rect(100, 100, 200, 150)

	merged := MergeBoxes([]image.Rectangle{head, car, torso, {}}, 0)
	assert.Equal(t, []image.Rectangle{car, image.Rect(5, 0, 25, 40)}, merged)

	// With an IoU threshold the small head overlap is not enough.
	kept := MergeBoxes([]image.Rectangle{head, torso}, 0.5)
	assert.Len(t, kept, 2)

	assert.Empty(t, MergeBoxes(nil, 0))
}

func TestMergeBoxesChains(t *testing.T) {
	// a overlaps b, b overlaps c; a and c only meet after the first merge.
	a := image.Rect(0, 0, 10, 10)
	b := image.Rect(8, 0, 18, 10)
	c := image.Rect(16, 0, 26, 10)
	assert.Equal(t, []image.Rectangle{image.Rect(0, 0, 26, 10)}, MergeBoxes([]image.Rectangle{a, c, b}, 0))
}
