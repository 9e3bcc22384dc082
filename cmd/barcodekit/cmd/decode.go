package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/batch"
	"github.com/MeKo-Tech/barcodekit/internal/config"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON = batch.FormatJSON
	outputFormatCSV  = batch.FormatCSV
	outputFormatText = batch.FormatText
)

// errNoBarcodes is returned when none of the inputs contained a symbol.
var errNoBarcodes = errors.New("no barcode found")

// decodeCmd represents the decode command.
var decodeCmd = &cobra.Command{
	Use:   "decode FILE|DIR...",
	Short: "Decode barcodes from image files",
	Long: `Decode barcodes from one or more still images.

Directories are expanded to the images they contain. Supported inputs: JPEG,
PNG, BMP, GIF. The command fails when no input contains a barcode.

Examples:
  barcodekit decode label.png
  barcodekit decode ./scans -r --format json
  barcodekit decode ticket.jpg --formats qr,aztec --try-harder`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		opts, err := decodeOptionsFromFlags(cmd, cfg)
		if err != nil {
			return err
		}

		outFormat, _ := cmd.Flags().GetString("format")
		if !batch.ValidFormat(outFormat) {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json, csv)", outFormat)
		}

		bcfg := &batch.Config{Decode: opts}
		bcfg.Recursive, _ = cmd.Flags().GetBool("recursive")
		bcfg.Workers, _ = cmd.Flags().GetInt("workers")
		bcfg.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
		bcfg.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")

		result, err := batch.DecodeFiles(cmd.Context(), args, bcfg, barcode.NewDecoder())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile != "" {
			f, err := os.Create(outputFile) //nolint:gosec // user-specified output path
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() { _ = f.Close() }()
			out = f
		}

		if err := result.WriteResults(out, outFormat); err != nil {
			return err
		}
		if outputFile != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile)
		}
		if stats, _ := cmd.Flags().GetBool("stats"); stats {
			result.PrintStats(cmd.ErrOrStderr())
		}

		if result.Found() == 0 {
			return errNoBarcodes
		}
		return nil
	},
}

func decodeOptionsFromFlags(cmd *cobra.Command, cfg *config.Config) (barcode.Options, error) {
	if cmd.Flags().Changed("formats") {
		list, _ := cmd.Flags().GetStringSlice("formats")
		cfg.Decode.Formats = list
	}
	if cmd.Flags().Changed("try-harder") {
		cfg.Decode.TryHarder, _ = cmd.Flags().GetBool("try-harder")
	}
	if cmd.Flags().Changed("pure-barcode") {
		cfg.Decode.PureBarcode, _ = cmd.Flags().GetBool("pure-barcode")
	}
	if cmd.Flags().Changed("charset") {
		cfg.Decode.CharacterSet, _ = cmd.Flags().GetString("charset")
	}
	return cfg.ToDecodeOptions()
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json, csv)")
	decodeCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	decodeCmd.Flags().StringSlice("formats", nil, "restrict decoding to these symbologies (e.g. qr,code128)")
	decodeCmd.Flags().Bool("try-harder", false, "spend more time looking for a symbol")
	decodeCmd.Flags().Bool("pure-barcode", false, "input contains only an unrotated symbol")
	decodeCmd.Flags().String("charset", "", "character set for byte segments when the symbol does not say")
	decodeCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	decodeCmd.Flags().Int("workers", 0, "number of parallel decoders (0 = one per CPU)")
	decodeCmd.Flags().StringSlice("include", nil, "only decode files whose name matches these globs")
	decodeCmd.Flags().StringSlice("exclude", nil, "skip files whose name matches these globs")
	decodeCmd.Flags().Bool("stats", false, "print decoding statistics to stderr")
}
