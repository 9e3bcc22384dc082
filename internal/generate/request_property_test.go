package generate

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/render"
)

func TestBuild_EmptyTextAlwaysInvalid(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("empty text fails with invalid request for any other fields", prop.ForAll(
		func(w, h int, fg, bg uint32, formatIdx int) bool {
			formats := barcode.AllFormats()
			_, err := NewRequestBuilder().
				WithFormat(formats[formatIdx%len(formats)]).
				WithSize(w, h).
				WithForeground(render.Color(fg)).
				WithBackground(render.Color(bg)).
				Build()
			return errors.Is(err, barcode.ErrInvalidRequest)
		},
		gen.IntRange(-100, 2000),
		gen.IntRange(-100, 2000),
		gen.UInt32(),
		gen.UInt32(),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func TestBuild_ZeroDimensionAlwaysInvalid(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("zero width or height fails with invalid request", prop.ForAll(
		func(text string, other int, zeroWidth bool) bool {
			if text == "" {
				text = "x"
			}
			b := NewRequestBuilder().WithText(text)
			if zeroWidth {
				b.WithSize(0, other)
			} else {
				b.WithSize(other, 0)
			}
			_, err := b.Build()
			return errors.Is(err, barcode.ErrInvalidRequest)
		},
		gen.AlphaString(),
		gen.IntRange(-50, 5000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestBuild_ValidRequestsKeepDimensions(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("positive dimensions and non-empty text always build", prop.ForAll(
		func(text string, w, h int) bool {
			req, err := NewRequestBuilder().WithText("t" + text).WithSize(w, h).Build()
			return err == nil && req.Width == w && req.Height == h
		},
		gen.AlphaString(),
		gen.IntRange(1, 5000),
		gen.IntRange(1, 5000),
	))

	properties.TestingRun(t)
}
