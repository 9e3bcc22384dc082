package render

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// Color is a packed 0xAARRGGBB colour.
type Color uint32

const (
	// Black is the default foreground.
	Black Color = 0xFF000000
	// White is the default background.
	White Color = 0xFFFFFFFF
)

// A returns the alpha component.
func (c Color) A() uint8 { return uint8(c >> 24) }

// R returns the red component.
func (c Color) R() uint8 { return uint8(c >> 16) }

// G returns the green component.
func (c Color) G() uint8 { return uint8(c >> 8) }

// B returns the blue component.
func (c Color) B() uint8 { return uint8(c) }

// NRGBA converts to a non-premultiplied image colour.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R(), G: c.G(), B: c.B(), A: c.A()}
}

// String formats the colour as #AARRGGBB.
func (c Color) String() string { return fmt.Sprintf("#%08X", uint32(c)) }

// FromColor packs any image colour.
func FromColor(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color(uint32(n.A)<<24 | uint32(n.R)<<16 | uint32(n.G)<<8 | uint32(n.B))
}

// ParseHexColor parses "#RRGGBB", "RRGGBB", "#AARRGGBB" or "AARRGGBB".
// Six digit values are opaque.
func ParseHexColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return 0, fmt.Errorf("invalid colour %q: want #RRGGBB or #AARRGGBB", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	if len(h) == 6 {
		v |= 0xFF000000
	}
	return Color(v), nil
}

// Grid is a read-only module matrix.
type Grid interface {
	Width() int
	Height() int
	At(x, y int) bool
}

// PixelBuffer is a row-major width x height array of colours.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []Color
}

// At returns the colour at (x, y).
func (p *PixelBuffer) At(x, y int) Color { return p.Pix[y*p.Width+x] }

// Render paints every set module with fg and every unset module with bg.
func Render(m Grid, fg, bg Color) *PixelBuffer {
	w, h := m.Width(), m.Height()
	pix := make([]Color, w*h)
	for y := 0; y < h; y++ {
		offset := y * w
		for x := 0; x < w; x++ {
			if m.At(x, y) {
				pix[offset+x] = fg
			} else {
				pix[offset+x] = bg
			}
		}
	}
	return &PixelBuffer{Width: w, Height: h, Pix: pix}
}

// Image converts the buffer to an NRGBA image.
func (p *PixelBuffer) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
	for i, c := range p.Pix {
		o := i * 4
		img.Pix[o] = c.R()
		img.Pix[o+1] = c.G()
		img.Pix[o+2] = c.B()
		img.Pix[o+3] = c.A()
	}
	return img
}
