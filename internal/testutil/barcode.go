package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/generate"
)

// SymbolSize returns a render size that decodes reliably for the format:
// square for 2D symbologies, wide and short for linear ones.
func SymbolSize(f barcode.Format) (width, height int) {
	if f.Is1D() {
		return 400, 120
	}
	return 240, 240
}

// RenderBarcode encodes text with the real encoder at the default size for
// the format.
func RenderBarcode(text string, f barcode.Format) (image.Image, error) {
	w, h := SymbolSize(f)
	req, err := generate.NewRequestBuilder().WithText(text).WithFormat(f).WithSize(w, h).Build()
	if err != nil {
		return nil, err
	}
	buf, err := generate.NewGenerator(nil).Generate(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return buf.Image(), nil
}

// BarcodePNG returns text rendered as PNG bytes.
func BarcodePNG(text string, f barcode.Format) ([]byte, error) {
	img, err := RenderBarcode(text, f)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// BlankImage returns a uniform image without any symbol.
func BlankImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// WritePNG writes img to path, creating parent directories.
func WritePNG(path string, img image.Image) error {
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// WriteBarcodePNG renders text and writes it to path.
func WriteBarcodePNG(path, text string, f barcode.Format) error {
	img, err := RenderBarcode(text, f)
	if err != nil {
		return err
	}
	return WritePNG(path, img)
}

// LoadImageFile loads an image from the specified path.
func LoadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: test fixture path
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return img, nil
}

// DecodeFirst decodes img with the real decoder and returns the first symbol.
func DecodeFirst(img image.Image) (barcode.Result, error) {
	res, err := barcode.NewDecoder().Decode(context.Background(), img, barcode.Options{})
	if err != nil {
		return barcode.Result{}, err
	}
	if len(res) == 0 {
		return barcode.Result{}, barcode.ErrDecodeMiss
	}
	return res[0], nil
}

// CompareImages reports whether two images have the same bounds and an
// average per-pixel colour distance within tolerance (0..1).
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds1 := img1.Bounds()
	bounds2 := img2.Bounds()

	if bounds1 != bounds2 {
		return false
	}
	if bounds1.Empty() {
		return true
	}

	var totalDiff float64
	var pixelCount float64

	for y := bounds1.Min.Y; y < bounds1.Max.Y; y++ {
		for x := bounds1.Min.X; x < bounds1.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x, y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)

			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}

	avgDiff := totalDiff / pixelCount
	maxDiff := math.Sqrt(4 * 65535 * 65535)

	return (avgDiff / maxDiff) <= tolerance
}
