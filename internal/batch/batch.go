// Package batch decodes barcodes from many image files in parallel.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/common"
)

// DecodeFiles expands args to image files and decodes each of them. Results
// keep the discovery order regardless of worker scheduling.
func DecodeFiles(ctx context.Context, args []string, config *Config, dec barcode.Decoder) (*Result, error) {
	timer := common.NewNamedTimer("batch decode")
	files, err := discoverImageFiles(args, config)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}

	if len(files) == 0 {
		return nil, errors.New("no supported images found")
	}

	if dec == nil {
		dec = barcode.NewDecoder()
	}
	workers := config.workerCount(len(files))
	timer.Lap("discover")

	results, err := decodeImagesParallel(ctx, dec, files, config.Decode, workers)
	timer.Lap("decode")
	duration := timer.Stop()
	if err != nil {
		return nil, fmt.Errorf("batch decoding failed: %w", err)
	}

	res := &Result{
		Files:       results,
		Duration:    duration,
		WorkerCount: workers,
		Memory:      common.GetMemoryStats(),
	}
	slog.Debug("Batch decode finished", "files", len(files), "found", res.Found(),
		"workers", workers, "timing", timer)
	return res, nil
}
