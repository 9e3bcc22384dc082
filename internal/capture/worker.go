package capture

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/camera"
)

// decodeRequest asks the worker to decode one frame.
type decodeRequest struct {
	frame camera.Frame
}

// worker decodes one frame at a time. It exits when quit is closed and never
// blocks on a send after that.
type worker struct {
	dec       barcode.Decoder
	opts      barcode.Options
	thumbSize int

	requests <-chan decodeRequest
	outcomes chan<- Outcome
	points   chan<- barcode.Point
	quit     <-chan struct{}
	done     chan struct{}
}

func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	opts := w.opts
	opts.PointCallback = w.offerPoint
	for {
		select {
		case <-w.quit:
			return
		case req := <-w.requests:
			out := w.decode(ctx, req.frame, opts)
			select {
			case w.outcomes <- out:
			case <-w.quit:
				return
			}
		}
	}
}

func (w *worker) decode(ctx context.Context, f camera.Frame, opts barcode.Options) Outcome {
	start := time.Now()
	results, err := w.dec.Decode(ctx, f.Image, opts)
	decodeDuration.Observe(time.Since(start).Seconds())
	if err != nil || len(results) == 0 {
		decodeAttempts.WithLabelValues("miss").Inc()
		slog.Debug("Frame decode miss", "seq", f.Seq, "error", err)
		return Miss{}
	}
	decodeAttempts.WithLabelValues("success").Inc()
	thumb, scale := thumbnail(f.Image, w.thumbSize)
	slog.Debug("Frame decoded",
		"seq", f.Seq,
		"format", results[0].Type.String(),
		"duration", time.Since(start))
	return Success{Result: results[0], Thumbnail: thumb, Scale: scale}
}

// offerPoint forwards a candidate point without ever blocking the decoder.
func (w *worker) offerPoint(p barcode.Point) {
	select {
	case w.points <- p:
	default:
	}
}

// thumbnail returns a greyscale copy of img no larger than size on either side.
func thumbnail(img image.Image, size int) (image.Image, float64) {
	if img == nil || size <= 0 {
		return nil, 0
	}
	b := img.Bounds()
	if b.Dx() == 0 {
		return nil, 0
	}
	small := imaging.Fit(img, size, size, imaging.Linear)
	grey := imaging.Grayscale(small)
	return grey, float64(grey.Bounds().Dx()) / float64(b.Dx())
}
