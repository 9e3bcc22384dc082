package batch

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/common"
)

// Config holds all configuration for batch decoding.
type Config struct {
	// Decode options applied to every file.
	Decode barcode.Options

	// Workers bounds concurrent decodes; zero uses one per CPU.
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
}

func (c *Config) workerCount(files int) int {
	n := c.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > files {
		n = files
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Symbol is one decoded barcode in a file.
type Symbol struct {
	Format string   `json:"format"`
	Text   string   `json:"text"`
	Points [][2]int `json:"points,omitempty"`
	Box    *[4]int  `json:"box,omitempty"`
}

// FileResult is the outcome for one input file.
type FileResult struct {
	File    string   `json:"file"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Symbols []Symbol `json:"symbols"`
	Error   string   `json:"error,omitempty"`
}

// Result holds the result of batch decoding.
type Result struct {
	Files       []FileResult
	Duration    time.Duration
	WorkerCount int
	Memory      common.MemoryStats
}

// Found counts files with at least one symbol.
func (r *Result) Found() int {
	n := 0
	for _, f := range r.Files {
		if len(f.Symbols) > 0 {
			n++
		}
	}
	return n
}

// Failed counts files that could not be read or decoded.
func (r *Result) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Error != "" {
			n++
		}
	}
	return n
}

// FormatResults renders the results as text, json or csv.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Files, format)
}

// WriteResults writes the formatted results to w.
func (r *Result) WriteResults(w io.Writer, format string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	_, err = io.WriteString(w, output)
	return err
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	total := len(r.Files)
	_, _ = fmt.Fprintf(w, "\nDecoding Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", total)
	_, _ = fmt.Fprintf(w, "  With barcodes: %d\n", r.Found())
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", r.Failed())
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if total > 0 && r.Duration > 0 {
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", (r.Duration / time.Duration(total)).Round(time.Microsecond))
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(total)/r.Duration.Seconds())
	}
	if r.Memory.Sys > 0 {
		_, _ = fmt.Fprintf(w, "  Memory: %s\n", r.Memory)
	}
}
