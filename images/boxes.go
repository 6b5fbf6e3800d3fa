package images

import (
	"image"
	"sort"
)

// IoU returns the intersection over union of two boxes, in [0, 1]. Boxes that only
// touch have an IoU of 0.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// MergeBoxes unions motion boxes whose IoU exceeds threshold, or that overlap at
// all when threshold is 0, until no pair qualifies. A person split into a head
// and a torso blob by the cleanup becomes a single box. Results are sorted by
// area, largest first.
func MergeBoxes(boxes []image.Rectangle, threshold float64) []image.Rectangle {
	out := make([]image.Rectangle, 0, len(boxes))
	for _, b := range boxes {
		if !b.Empty() {
			out = append(out, b)
		}
	}

	for merged := true; merged; {
		merged = false
		for i := 0; i < len(out) && !merged; i++ {
			for j := i + 1; j < len(out); j++ {
				if qualifies(out[i], out[j], threshold) {
					out[i] = out[i].Union(out[j])
					out = append(out[:j], out[j+1:]...)
					merged = true
					break
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if area(out[i]) != area(out[j]) {
			return area(out[i]) > area(out[j])
		}
		if out[i].Min.Y != out[j].Min.Y {
			return out[i].Min.Y < out[j].Min.Y
		}
		return out[i].Min.X < out[j].Min.X
	})
	return out
}

func qualifies(a, b image.Rectangle, threshold float64) bool {
	if threshold <= 0 {
		return a.Overlaps(b)
	}
	return IoU(a, b) > threshold
}
