package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"time"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
	"github.com/makiuchi-d/gozxing/common"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/MeKo-Tech/barcodekit/internal/mempool"
)

// NewDecoder returns the gozxing-backed decoder. It is safe for concurrent use;
// readers are created per call.
func NewDecoder() Decoder { return &gozxingDecoder{} }

type gozxingDecoder struct{}

func (d *gozxingDecoder) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if img == nil {
		return nil, errors.New("decode: nil image")
	}
	// Apply ROI if requested and valid
	if !opts.ROI.Empty() {
		if roiImg, ok := subImage(img, opts.ROI); ok {
			img = roiImg
		}
	}

	source := gozxing.NewLuminanceSourceFromImage(img)
	bitmap, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(source))
	if err != nil {
		return nil, fmt.Errorf("decode: binarize: %w", err)
	}

	hints := decodeHints(opts)
	var lastErr error
	for _, r := range readersFor(opts.Formats) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := r.Decode(bitmap, hints)
		if err != nil {
			lastErr = err
			continue
		}
		return []Result{convertResult(res)}, nil
	}
	if lastErr == nil {
		return nil, ErrDecodeMiss
	}
	// Not-found, checksum and format failures all mean "nothing usable in this frame".
	return nil, fmt.Errorf("%w: %v", ErrDecodeMiss, lastErr)
}

func decodeHints(opts Options) map[gozxing.DecodeHintType]interface{} {
	hints := make(map[gozxing.DecodeHintType]interface{})
	if len(opts.Formats) > 0 {
		var formats []gozxing.BarcodeFormat
		for _, f := range opts.Formats {
			if bf, ok := mapFormatToZXing(f); ok {
				formats = append(formats, bf)
			}
		}
		if len(formats) > 0 {
			hints[gozxing.DecodeHintType_POSSIBLE_FORMATS] = formats
		}
	}
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	if opts.PureBarcode {
		hints[gozxing.DecodeHintType_PURE_BARCODE] = true
	}
	if opts.CharacterSet != "" {
		hints[gozxing.DecodeHintType_CHARACTER_SET] = opts.CharacterSet
	}
	if cb := opts.PointCallback; cb != nil {
		hints[gozxing.DecodeHintType_NEED_RESULT_POINT_CALLBACK] = gozxing.ResultPointCallback(func(p gozxing.ResultPoint) {
			cb(Point{X: int(p.GetX()), Y: int(p.GetY())})
		})
	}
	return hints
}

// readersFor returns one reader per requested symbology, all readers when
// formats is empty.
func readersFor(formats []Format) []gozxing.Reader {
	if len(formats) == 0 {
		formats = AllFormats()
	}
	seen := make(map[Format]bool, len(formats))
	var out []gozxing.Reader
	for _, f := range formats {
		if seen[f] {
			continue
		}
		seen[f] = true
		if r := newReader(f); r != nil {
			out = append(out, r)
		}
	}
	return out
}

func newReader(f Format) gozxing.Reader {
	switch f {
	case FormatQR:
		return qrcode.NewQRCodeReader()
	case FormatDataMatrix:
		return datamatrix.NewDataMatrixReader()
	case FormatAztec:
		return aztec.NewAztecReader()
	case FormatCode128:
		return oned.NewCode128Reader()
	case FormatCode39:
		return oned.NewCode39Reader()
	case FormatCode93:
		return oned.NewCode93Reader()
	case FormatEAN8:
		return oned.NewEAN8Reader()
	case FormatEAN13:
		return oned.NewEAN13Reader()
	case FormatUPCA:
		return oned.NewUPCAReader()
	case FormatUPCE:
		return oned.NewUPCEReader()
	case FormatITF:
		return oned.NewITFReader()
	case FormatCodabar:
		return oned.NewCodaBarReader()
	default:
		// gozxing has no PDF417 reader.
		return nil
	}
}

func convertResult(r *gozxing.Result) Result {
	var points []Point
	if pts := r.GetResultPoints(); len(pts) > 0 {
		points = make([]Point, 0, len(pts))
		for _, p := range pts {
			points = append(points, Point{X: int(p.GetX()), Y: int(p.GetY())})
		}
	}
	return Result{
		Type:      mapFormatFromZXing(r.GetBarcodeFormat()),
		Value:     r.GetText(),
		Raw:       r.GetRawBytes(),
		Points:    points,
		BBox:      rectFromPoints(points),
		Timestamp: time.Now(),
	}
}

// NewEncoder returns the gozxing-backed encoder.
func NewEncoder() Encoder { return &gozxingEncoder{} }

type gozxingEncoder struct{}

// symbolWriter is the method set shared by the gozxing writers.
type symbolWriter interface {
	Encode(contents string, format gozxing.BarcodeFormat, width, height int,
		hints map[gozxing.EncodeHintType]interface{}) (*gozxing.BitMatrix, error)
}

func (e *gozxingEncoder) Encode(text string, format Format, width, height int, hints EncodeHints) (*Matrix, error) {
	bf, ok := mapFormatToZXing(format)
	if !ok {
		return nil, &EncodingError{Format: format, Err: errors.New("unknown format")}
	}
	w := newWriter(format)
	if w == nil {
		return nil, &EncodingError{Format: format, Err: errors.New("format has no encoder")}
	}

	zh := make(map[gozxing.EncodeHintType]interface{})
	if hints.CharacterSet != "" {
		zh[gozxing.EncodeHintType_CHARACTER_SET] = hints.CharacterSet
	}
	if hints.Margin != nil {
		zh[gozxing.EncodeHintType_MARGIN] = *hints.Margin
	}

	bm, err := w.Encode(text, bf, width, height, zh)
	if err != nil {
		return nil, &EncodingError{Format: format, Err: err}
	}
	return matrixFromBitMatrix(bm)
}

func newWriter(f Format) symbolWriter {
	switch f {
	case FormatQR:
		return qrcode.NewQRCodeWriter()
	case FormatDataMatrix:
		return datamatrix.NewDataMatrixWriter()
	case FormatCode128:
		return oned.NewCode128Writer()
	case FormatCode39:
		return oned.NewCode39Writer()
	case FormatCode93:
		return oned.NewCode93Writer()
	case FormatEAN8:
		return oned.NewEAN8Writer()
	case FormatEAN13:
		return oned.NewEAN13Writer()
	case FormatUPCA:
		return oned.NewUPCAWriter()
	case FormatUPCE:
		return oned.NewUPCEWriter()
	case FormatITF:
		return oned.NewITFWriter()
	case FormatCodabar:
		return oned.NewCodaBarWriter()
	default:
		// Aztec and PDF417 are decode-only in gozxing.
		return nil
	}
}

// CanEncode reports whether the encoder supports the format.
func CanEncode(f Format) bool { return newWriter(f) != nil }

// CanDecode reports whether the decoder supports the format.
func CanDecode(f Format) bool { return newReader(f) != nil }

// EncoderCharset reports whether the encoder has an ECI for the named
// character set. Lookup is by exact name, as the encoder does it.
func EncoderCharset(name string) bool {
	eci, ok := common.GetCharacterSetECIByName(name)
	return ok && eci != nil
}

// CheckDecodable rejects formats the decoder cannot search for, so a
// request naming only those fails up front instead of always missing.
func CheckDecodable(formats []Format) error {
	for _, f := range formats {
		if !CanDecode(f) {
			return &RequestError{Field: "formats", Reason: fmt.Sprintf("%s cannot be decoded", f)}
		}
	}
	return nil
}

func matrixFromBitMatrix(bm *gozxing.BitMatrix) (*Matrix, error) {
	w, h := bm.GetWidth(), bm.GetHeight()
	bits := mempool.GetBool(w * h)
	defer mempool.PutBool(bits)
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			bits[row+x] = bm.Get(x, y)
		}
	}
	return NewMatrix(w, h, bits)
}

func mapFormatToZXing(f Format) (gozxing.BarcodeFormat, bool) {
	switch f {
	case FormatQR:
		return gozxing.BarcodeFormat_QR_CODE, true
	case FormatDataMatrix:
		return gozxing.BarcodeFormat_DATA_MATRIX, true
	case FormatAztec:
		return gozxing.BarcodeFormat_AZTEC, true
	case FormatPDF417:
		return gozxing.BarcodeFormat_PDF_417, true
	case FormatCode128:
		return gozxing.BarcodeFormat_CODE_128, true
	case FormatCode39:
		return gozxing.BarcodeFormat_CODE_39, true
	case FormatCode93:
		return gozxing.BarcodeFormat_CODE_93, true
	case FormatEAN8:
		return gozxing.BarcodeFormat_EAN_8, true
	case FormatEAN13:
		return gozxing.BarcodeFormat_EAN_13, true
	case FormatUPCA:
		return gozxing.BarcodeFormat_UPC_A, true
	case FormatUPCE:
		return gozxing.BarcodeFormat_UPC_E, true
	case FormatITF:
		return gozxing.BarcodeFormat_ITF, true
	case FormatCodabar:
		return gozxing.BarcodeFormat_CODABAR, true
	default:
		return 0, false
	}
}

func mapFormatFromZXing(bf gozxing.BarcodeFormat) Format {
	switch bf {
	case gozxing.BarcodeFormat_QR_CODE:
		return FormatQR
	case gozxing.BarcodeFormat_DATA_MATRIX:
		return FormatDataMatrix
	case gozxing.BarcodeFormat_AZTEC:
		return FormatAztec
	case gozxing.BarcodeFormat_PDF_417:
		return FormatPDF417
	case gozxing.BarcodeFormat_CODE_128:
		return FormatCode128
	case gozxing.BarcodeFormat_CODE_39:
		return FormatCode39
	case gozxing.BarcodeFormat_CODE_93:
		return FormatCode93
	case gozxing.BarcodeFormat_EAN_8:
		return FormatEAN8
	case gozxing.BarcodeFormat_EAN_13:
		return FormatEAN13
	case gozxing.BarcodeFormat_UPC_A:
		return FormatUPCA
	case gozxing.BarcodeFormat_UPC_E:
		return FormatUPCE
	case gozxing.BarcodeFormat_ITF:
		return FormatITF
	case gozxing.BarcodeFormat_CODABAR:
		return FormatCodabar
	default:
		return FormatUnknown
	}
}

// subImage returns a sub-image if supported by the image implementation.
func subImage(img image.Image, r image.Rectangle) (image.Image, bool) {
	rb := r.Intersect(img.Bounds())
	if rb.Empty() {
		return nil, false
	}
	type subImager interface{ SubImage(r image.Rectangle) image.Image }
	if s, ok := img.(subImager); ok {
		return s.SubImage(rb), true
	}
	// Fallback: copy into new RGBA
	dst := image.NewRGBA(image.Rect(0, 0, rb.Dx(), rb.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rb.Min, draw.Src)
	return dst, true
}
