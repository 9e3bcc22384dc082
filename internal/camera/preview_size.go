package camera

import "math"

// Size is a preview resolution.
type Size struct {
	Width  int
	Height int
}

const (
	minPreviewPixels    = 480 * 320
	maxAspectDistortion = 0.15
)

// BestPreviewSize picks the largest supported size whose aspect ratio is close
// to the screen's, preferring an exact screen match. Orientation is ignored.
// It returns fallback when nothing qualifies.
func BestPreviewSize(supported []Size, screen, fallback Size) Size {
	if screen.Width <= 0 || screen.Height <= 0 {
		return fallback
	}
	screenAspect := aspect(screen)

	var best Size
	for _, s := range supported {
		if s.Width*s.Height < minPreviewPixels {
			continue
		}
		if math.Abs(aspect(s)-screenAspect) > maxAspectDistortion {
			continue
		}
		if landscape(s) == landscape(screen) {
			return s
		}
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	if best.Width == 0 {
		return fallback
	}
	return best
}

func landscape(s Size) Size {
	if s.Width < s.Height {
		return Size{Width: s.Height, Height: s.Width}
	}
	return s
}

func aspect(s Size) float64 {
	l := landscape(s)
	return float64(l.Width) / float64(l.Height)
}
