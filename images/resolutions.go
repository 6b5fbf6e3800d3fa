// Package images provides the processing resolutions frames are reduced to before
// they reach the mixture model. Per-pixel models scale linearly with pixel count,
// so capture streams are normally modelled well below their native size.
package images

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// AspectRatio represents an aspect ratio by name (e.g., "16:9").
type AspectRatio string

// Defines the aspect ratios of the processing resolutions.
const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
)

// ResolutionType represents a common name for a processing resolution.
type ResolutionType string

// Defines the unique type for each supported processing resolution.
const (
	ResolutionTypeQQVGA  ResolutionType = "QQVGA"
	ResolutionTypeQVGA   ResolutionType = "QVGA"
	ResolutionTypeNHD    ResolutionType = "nHD"
	ResolutionTypeVGA    ResolutionType = "VGA"
	ResolutionTypeQHD540 ResolutionType = "qHD 540p"
	ResolutionTypeHD720p ResolutionType = "HD 720p"
)

// ResolutionPixels describes the exact dimensions of a resolution.
type ResolutionPixels struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Resolution describes a processing resolution.
type Resolution struct {
	Name        ResolutionType   `json:"name" yaml:"name"`
	Alias       string           `json:"alias" yaml:"alias"`
	AspectRatio AspectRatio      `json:"aspectRatio" yaml:"aspect_ratio"`
	Pixels      ResolutionPixels `json:"pixels" yaml:"pixels"`
}

// GetMegaPixels calculates the megapixel value based on the resolution's pixel dimensions.
// It returns the value rounded to two decimal places (e.g., 0.92 for 720p).
func (r Resolution) GetMegaPixels() float64 {
	if r.Pixels.Width <= 0 || r.Pixels.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Pixels.Width*r.Pixels.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// Count returns the number of pixels, and so of per-pixel mixtures per channel.
func (r Resolution) Count() int {
	if r.Pixels.Width <= 0 || r.Pixels.Height <= 0 {
		return 0
	}
	return r.Pixels.Width * r.Pixels.Height
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Pixels.Width, r.Pixels.Height, r.GetMegaPixels())
}

// resolutions stores all defined processing resolutions, keyed by type.
var resolutions = map[ResolutionType]Resolution{
	ResolutionTypeQQVGA: {
		Name:        ResolutionTypeQQVGA,
		Alias:       "120p",
		AspectRatio: AspectRatio43,
		Pixels:      ResolutionPixels{Width: 160, Height: 120},
	},
	ResolutionTypeQVGA: {
		Name:        ResolutionTypeQVGA,
		Alias:       "240p",
		AspectRatio: AspectRatio43,
		Pixels:      ResolutionPixels{Width: 320, Height: 240},
	},
	ResolutionTypeNHD: {
		Name:        ResolutionTypeNHD,
		Alias:       "360p",
		AspectRatio: AspectRatio169,
		Pixels:      ResolutionPixels{Width: 640, Height: 360},
	},
	ResolutionTypeVGA: {
		Name:        ResolutionTypeVGA,
		Alias:       "480p",
		AspectRatio: AspectRatio43,
		Pixels:      ResolutionPixels{Width: 640, Height: 480},
	},
	ResolutionTypeQHD540: {
		Name:        ResolutionTypeQHD540,
		Alias:       "540p",
		AspectRatio: AspectRatio169,
		Pixels:      ResolutionPixels{Width: 960, Height: 540},
	},
	ResolutionTypeHD720p: {
		Name:        ResolutionTypeHD720p,
		Alias:       "720p",
		AspectRatio: AspectRatio169,
		Pixels:      ResolutionPixels{Width: 1280, Height: 720},
	},
}

// GetAllResolutions returns every processing resolution, smallest first.
func GetAllResolutions() []Resolution {
	all := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count() != all[j].Count() {
			return all[i].Count() < all[j].Count()
		}
		return all[i].Name < all[j].Name
	})
	return all
}

// GetResolutionByType retrieves a specific resolution by its type.
func GetResolutionByType(t ResolutionType) (Resolution, bool) {
	res, ok := resolutions[t]
	return res, ok
}

// ResolutionByName looks a resolution up by type name or alias, case-insensitively.
//
// Arguments:
//   - name: e.g. "QVGA", "qvga" or "240p".
//
// Returns:
//   - Resolution: The matching resolution.
//   - bool: True if a resolution was found.
func ResolutionByName(name string) (Resolution, bool) {
	name = strings.TrimSpace(name)
	for _, res := range resolutions {
		if strings.EqualFold(string(res.Name), name) || strings.EqualFold(res.Alias, name) {
			return res, true
		}
	}
	return Resolution{}, false
}

// GetHighestResolutionUnderDimensions retrieves the largest resolution that fits
// inside the given width and height.
//
// Arguments:
//   - width: The maximum possible width of the image.
//   - height: The maximum possible height of the image.
//
// Returns:
//   - Resolution: The largest fitting resolution.
//   - bool: True if a resolution was found, otherwise false.
func GetHighestResolutionUnderDimensions(width, height int) (Resolution, bool) {
	var highest Resolution
	var found bool
	for _, res := range GetAllResolutions() {
		if res.Pixels.Width <= width && res.Pixels.Height <= height {
			highest = res
			found = true
		}
	}
	return highest, found
}
