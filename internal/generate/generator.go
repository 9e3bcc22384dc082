package generate

import (
	"context"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/render"
)

// Generator encodes requests and renders the resulting matrix.
type Generator struct {
	enc barcode.Encoder
}

// NewGenerator returns a generator using enc, or the gozxing encoder when enc is nil.
func NewGenerator(enc barcode.Encoder) *Generator {
	if enc == nil {
		enc = barcode.NewEncoder()
	}
	return &Generator{enc: enc}
}

// Generate validates req, encodes it and paints the matrix. Encoder failures
// are returned as *barcode.EncodingError and are not retried.
func (g *Generator) Generate(ctx context.Context, req Request) (*render.PixelBuffer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	m, err := g.enc.Encode(req.Text, req.Format, req.Width, req.Height, req.hints())
	if err != nil {
		slog.Debug("Barcode encoding failed", "format", req.Format.String(), "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := render.Render(m, req.Foreground, req.Background)
	slog.Debug("Barcode generated",
		"format", req.Format.String(),
		"width", buf.Width,
		"height", buf.Height,
		"duration", time.Since(start))
	return buf, nil
}
