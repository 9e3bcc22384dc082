package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/utils"
)

// decodeSingleImage loads one file and decodes it. Load and decoder failures
// are recorded on the result; a miss leaves Symbols empty.
func decodeSingleImage(ctx context.Context, dec barcode.Decoder, path string, opts barcode.Options) FileResult {
	res := FileResult{File: path, Symbols: []Symbol{}}

	img, meta, err := utils.LoadImage(path)
	if err != nil {
		res.Error = err.Error()
		slog.Warn("Failed to load image", "path", path, "error", err)
		return res
	}
	res.Width, res.Height = meta.Width, meta.Height

	symbols, err := dec.Decode(ctx, img, opts)
	if err != nil {
		if barcode.IsDecodeMiss(err) {
			slog.Debug("No barcode found", "path", path)
		} else {
			res.Error = err.Error()
			slog.Warn("Decode failed", "path", path, "error", err)
		}
		return res
	}
	for _, s := range symbols {
		res.Symbols = append(res.Symbols, toSymbol(s))
	}
	return res
}

func toSymbol(r barcode.Result) Symbol {
	out := Symbol{Format: r.Type.String(), Text: r.Value}
	for _, p := range r.Points {
		out.Points = append(out.Points, [2]int{p.X, p.Y})
	}
	if !r.BBox.Empty() {
		out.Box = &[4]int{r.BBox.Min.X, r.BBox.Min.Y, r.BBox.Dx(), r.BBox.Dy()}
	}
	return out
}

// decodeImagesParallel fans the files out to a fixed number of workers.
// Cancelling ctx stops the batch with ctx's error.
func decodeImagesParallel(ctx context.Context, dec barcode.Decoder, paths []string,
	opts barcode.Options, workers int) ([]FileResult, error) {
	results := make([]FileResult, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = decodeSingleImage(ctx, dec, paths[i], opts)
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("decoding interrupted: %w", err)
	}
	return results, nil
}
