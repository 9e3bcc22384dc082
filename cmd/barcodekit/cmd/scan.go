package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/camera"
	"github.com/MeKo-Tech/barcodekit/internal/capture"
	"github.com/MeKo-Tech/barcodekit/internal/utils"
	"github.com/spf13/cobra"
)

// scanEvent is one decoded symbol as printed by the scan command.
type scanEvent struct {
	Index  int     `json:"index"`
	Format string  `json:"format"`
	Text   string  `json:"text"`
	Scale  float64 `json:"thumbnail_scale"`
	Time   string  `json:"time"`
}

// scanPrinter is the capture listener of the scan command. It prints each
// decode and closes done once max results have been seen.
type scanPrinter struct {
	out    io.Writer
	format string
	max    int

	mu    sync.Mutex
	count int
	done  chan struct{}
	once  sync.Once
	fatal chan error
}

func newScanPrinter(out io.Writer, format string, maxResults int) *scanPrinter {
	return &scanPrinter{
		out:    out,
		format: format,
		max:    maxResults,
		done:   make(chan struct{}),
		fatal:  make(chan error, 1),
	}
}

func (p *scanPrinter) OnDecoded(result barcode.Result, _ image.Image, scale float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.max > 0 && p.count >= p.max {
		return
	}
	p.count++
	ev := scanEvent{
		Index:  p.count,
		Format: result.Type.String(),
		Text:   result.Value,
		Scale:  scale,
		Time:   result.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if p.format == outputFormatJSON {
		data, _ := json.Marshal(ev)
		_, _ = fmt.Fprintln(p.out, string(data))
	} else {
		_, _ = fmt.Fprintf(p.out, "%d: [%s] %s\n", ev.Index, ev.Format, ev.Text)
	}
	if p.max > 0 && p.count >= p.max {
		p.once.Do(func() { close(p.done) })
	}
}

func (p *scanPrinter) OnFatalError(err error) {
	select {
	case p.fatal <- err:
	default:
	}
}

func (p *scanPrinter) results() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan FILE|DIR...",
	Short: "Run a continuous scan session over an image sequence",
	Long: `Replay images as camera preview frames through a capture session and
print every decoded barcode.

Frames are delivered at the configured frame interval. After each decode the
session waits for the restart delay before asking for the next frame, which
keeps the same barcode from being reported on every frame.

The session ends when --max-results decodes were printed, the sequence runs
out (unless --loop), --timeout elapses or the process is interrupted.

Examples:
  barcodekit scan ./frames
  barcodekit scan ./frames --loop --max-results 5 --restart-delay 0
  barcodekit scan a.png b.png --format json --timeout 10s`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		outFormat, _ := cmd.Flags().GetString("format")
		if outFormat != outputFormatText && outFormat != outputFormatJSON {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json)", outFormat)
		}

		decodeOpts, err := decodeOptionsFromFlags(cmd, cfg)
		if err != nil {
			return err
		}
		capCfg, err := cfg.ToCaptureConfig()
		if err != nil {
			return err
		}
		capCfg.DecodeOptions = decodeOpts
		// The scan command always resumes by itself.
		capCfg.AutoRestart = true
		if cmd.Flags().Changed("restart-delay") {
			capCfg.RestartDelay, _ = cmd.Flags().GetDuration("restart-delay")
		}

		settings, err := cfg.ToCameraSettings()
		if err != nil {
			return err
		}
		interval := cfg.FrameInterval()
		if cmd.Flags().Changed("interval") {
			interval, _ = cmd.Flags().GetDuration("interval")
		}

		recursive, _ := cmd.Flags().GetBool("recursive")
		paths, err := utils.DiscoverImages(args, recursive)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return errors.New("no supported images found")
		}

		loop, _ := cmd.Flags().GetBool("loop")
		src, err := camera.LoadSequence(paths,
			camera.WithFrameInterval(interval),
			camera.WithLoop(loop),
			camera.WithSettings(settings, cfg.Camera.SafeMode),
			camera.WithName("sequence:"+args[0]),
		)
		if err != nil {
			return err
		}

		maxResults, _ := cmd.Flags().GetInt("max-results")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		if loop && maxResults <= 0 && timeout <= 0 {
			slog.Info("Looping scan without --max-results or --timeout runs until interrupted")
		}

		printer := newScanPrinter(cmd.OutOrStdout(), outFormat, maxResults)
		coord := capture.New(capCfg, printer)

		ctx := cmd.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		slog.Info("Starting scan session", "frames", len(paths), "loop", loop,
			"interval", interval.String(), "restart_delay", capCfg.RestartDelay.String())
		if err := coord.Start(ctx, src, barcode.NewDecoder()); err != nil {
			return fmt.Errorf("failed to start scan session: %w", err)
		}
		defer coord.Stop()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		var runErr error
		select {
		case <-printer.done:
			slog.Debug("Reached max results", "max", maxResults)
		case <-src.Exhausted():
			slog.Debug("Frame sequence exhausted")
		case err := <-printer.fatal:
			runErr = fmt.Errorf("scan session failed: %w", err)
		case <-ctx.Done():
			slog.Debug("Scan timeout reached", "timeout", timeout.String())
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		}

		coord.Stop()
		slog.Info("Scan session finished", "results", printer.results(), "state", coord.State().String())
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	scanCmd.Flags().Int("max-results", 0, "stop after this many decodes (0 = no limit)")
	scanCmd.Flags().Duration("restart-delay", 1500*time.Millisecond, "pause after each decode before scanning resumes")
	scanCmd.Flags().Duration("interval", camera.DefaultFrameInterval, "minimum time between frames")
	scanCmd.Flags().Duration("timeout", 0, "stop the session after this long (0 = no limit)")
	scanCmd.Flags().Bool("loop", false, "replay the sequence from the start after the last frame")
	scanCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	scanCmd.Flags().StringSlice("formats", nil, "restrict decoding to these symbologies (e.g. qr,code128)")
	scanCmd.Flags().Bool("try-harder", false, "spend more time looking for a symbol")
	scanCmd.Flags().Bool("pure-barcode", false, "frames contain only an unrotated symbol")
	scanCmd.Flags().String("charset", "", "character set for byte segments when the symbol does not say")
}
