package barcode

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// matrixImage paints m as black on white with no extra scaling.
func matrixImage(m *Matrix) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width(), m.Height()))
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			c := color.Gray{Y: 255}
			if m.At(x, y) {
				c = color.Gray{Y: 0}
			}
			img.SetGray(x, y, c)
		}
	}
	return img
}

func TestEncodeDecode_QRRoundTrip(t *testing.T) {
	m, err := NewEncoder().Encode("hello barcodekit", FormatQR, 200, 200, EncodeHints{CharacterSet: "UTF-8"})
	require.NoError(t, err)
	assert.Equal(t, 200, m.Width())
	assert.Equal(t, 200, m.Height())

	var points []Point
	res, err := NewDecoder().Decode(context.Background(), matrixImage(m), Options{
		Formats:       []Format{FormatQR},
		PointCallback: func(p Point) { points = append(points, p) },
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, FormatQR, res[0].Type)
	assert.Equal(t, "hello barcodekit", res[0].Value)
	assert.NotEmpty(t, res[0].Points)
	assert.False(t, res[0].BBox.Empty())
	assert.False(t, res[0].Timestamp.IsZero())
	assert.NotEmpty(t, points)
}

func TestEncodeDecode_Code128RoundTrip(t *testing.T) {
	m, err := NewEncoder().Encode("BK-12345", FormatCode128, 300, 80, EncodeHints{})
	require.NoError(t, err)

	res, err := NewDecoder().Decode(context.Background(), matrixImage(m), Options{
		Formats:   []Format{FormatCode128},
		TryHarder: true,
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, FormatCode128, res[0].Type)
	assert.Equal(t, "BK-12345", res[0].Value)
}

func TestEncode_Margin(t *testing.T) {
	zero := 0
	tight, err := NewEncoder().Encode("margin", FormatQR, 1, 1, EncodeHints{Margin: &zero})
	require.NoError(t, err)
	loose, err := NewEncoder().Encode("margin", FormatQR, 1, 1, EncodeHints{})
	require.NoError(t, err)
	assert.Less(t, tight.Width(), loose.Width())
	// A zero quiet zone puts the finder pattern in the corner.
	assert.True(t, tight.At(0, 0))
}

func TestEncode_Errors(t *testing.T) {
	enc := NewEncoder()

	_, err := enc.Encode("not digits", FormatEAN13, 200, 80, EncodeHints{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncoding)

	_, err = enc.Encode("decode only", FormatAztec, 200, 200, EncodeHints{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncoding)

	_, err = enc.Encode("x", FormatUnknown, 200, 200, EncodeHints{})
	require.Error(t, err)
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, FormatUnknown, encErr.Format)
}

func TestDecode_BlankIsMiss(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 120, 120))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	_, err := NewDecoder().Decode(context.Background(), img, Options{Formats: []Format{FormatQR, FormatEAN13}})
	require.Error(t, err)
	assert.True(t, IsDecodeMiss(err))
}

func TestDecode_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	img := image.NewGray(image.Rect(0, 0, 50, 50))
	_, err := NewDecoder().Decode(ctx, img, Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecode_ROI(t *testing.T) {
	m, err := NewEncoder().Encode("roi", FormatQR, 120, 120, EncodeHints{})
	require.NoError(t, err)
	sym := matrixImage(m)

	// Place the symbol in the lower right corner of a larger white canvas.
	canvas := image.NewGray(image.Rect(0, 0, 400, 400))
	for i := range canvas.Pix {
		canvas.Pix[i] = 255
	}
	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			canvas.SetGray(260+x, 260+y, sym.GrayAt(x, y))
		}
	}

	res, err := NewDecoder().Decode(context.Background(), canvas, Options{
		Formats: []Format{FormatQR},
		ROI:     image.Rect(250, 250, 400, 400),
	})
	require.NoError(t, err)
	assert.Equal(t, "roi", res[0].Value)

	_, ok := subImage(canvas, image.Rect(500, 500, 600, 600))
	assert.False(t, ok)
}

func TestCapabilities(t *testing.T) {
	for _, f := range AllFormats() {
		if f == FormatPDF417 {
			continue
		}
		assert.True(t, CanDecode(f), f.String())
	}
	assert.False(t, CanDecode(FormatPDF417))
	assert.False(t, CanEncode(FormatAztec))
	assert.False(t, CanEncode(FormatPDF417))
	assert.True(t, CanEncode(FormatQR))
	assert.True(t, CanEncode(FormatCodabar))
}

func TestFormatMappingRoundTrip(t *testing.T) {
	for _, f := range AllFormats() {
		bf, ok := mapFormatToZXing(f)
		require.True(t, ok)
		assert.Equal(t, f, mapFormatFromZXing(bf))
	}
	_, ok := mapFormatToZXing(FormatUnknown)
	assert.False(t, ok)
}

func TestCheckDecodable(t *testing.T) {
	assert.NoError(t, CheckDecodable(nil))
	assert.NoError(t, CheckDecodable([]Format{FormatQR, FormatAztec, FormatEAN13}))

	err := CheckDecodable([]Format{FormatQR, FormatPDF417})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "pdf417")
}

func TestDecode_OnlyUndecodableFormatsIsMiss(t *testing.T) {
	m, err := NewEncoder().Encode("skipped", FormatQR, 120, 120, EncodeHints{})
	require.NoError(t, err)
	_, err = NewDecoder().Decode(context.Background(), matrixImage(m), Options{Formats: []Format{FormatPDF417}})
	assert.True(t, IsDecodeMiss(err))
}
