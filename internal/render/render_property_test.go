package render

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
)

// TestRender_PixelMatchesModule checks pixel(x,y) == fg iff module (x,y) is set
// and that the buffer holds exactly width*height pixels.
func TestRender_PixelMatchesModule(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("render maps every module to fg or bg", prop.ForAll(
		func(w, h int, seed []bool, fg, bg uint32) bool {
			if fg == bg {
				return true
			}
			bits := make([]bool, w*h)
			for i := range bits {
				if len(seed) > 0 {
					bits[i] = seed[i%len(seed)] != (i%3 == 0)
				}
			}
			m, err := barcode.NewMatrix(w, h, bits)
			if err != nil {
				return false
			}

			buf := Render(m, Color(fg), Color(bg))
			if buf.Width != w || buf.Height != h || len(buf.Pix) != w*h {
				return false
			}
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					want := Color(bg)
					if m.At(x, y) {
						want = Color(fg)
					}
					if buf.At(x, y) != want {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.IntRange(1, 40),
		gen.SliceOf(gen.Bool()),
		gen.UInt32(),
		gen.UInt32(),
	))

	properties.TestingRun(t)
}

func TestRender_Deterministic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("rendering the same matrix twice yields identical buffers", prop.ForAll(
		func(w, h int, fg, bg uint32) bool {
			bits := make([]bool, w*h)
			for i := range bits {
				bits[i] = (i*7)%5 < 2
			}
			m, err := barcode.NewMatrix(w, h, bits)
			if err != nil {
				return false
			}
			a := Render(m, Color(fg), Color(bg))
			b := Render(m, Color(fg), Color(bg))
			for i := range a.Pix {
				if a.Pix[i] != b.Pix[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 30),
		gen.IntRange(1, 30),
		gen.UInt32(),
		gen.UInt32(),
	))

	properties.TestingRun(t)
}

func TestParseHexColor_RoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("String then ParseHexColor is identity", prop.ForAll(
		func(v uint32) bool {
			c, err := ParseHexColor(Color(v).String())
			return err == nil && c == Color(v)
		},
		gen.UInt32(),
	))

	properties.TestingRun(t)
}
