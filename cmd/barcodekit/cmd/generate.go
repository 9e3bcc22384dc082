package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/config"
	"github.com/MeKo-Tech/barcodekit/internal/generate"
	"github.com/MeKo-Tech/barcodekit/internal/render"
	"github.com/spf13/cobra"
)

const maxScale = 16

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate TEXT",
	Short: "Render text as a barcode image",
	Long: `Encode TEXT in the chosen symbology and write the rendered image.

The output type follows --output-format, then the extension of --output, then
the configured default. Use "-o -" to write the image to stdout.

Examples:
  barcodekit generate "hello world"
  barcodekit generate 4006381333931 -f ean13 -W 400 -H 200 -o ean.png
  barcodekit generate "ACME-42" -f code128 --fg "#1A237E" --scale 2 -o - > label.bmp`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		req, err := buildGenerateRequest(cmd, cfg, args[0])
		if err != nil {
			return err
		}

		outputPath, _ := cmd.Flags().GetString("output")
		outFormat, err := resolveOutputFormat(cmd, cfg, outputPath)
		if err != nil {
			return err
		}
		if outputPath == "" {
			outputPath = "barcode" + outFormat.Extension()
		}

		scale, _ := cmd.Flags().GetInt("scale")
		if scale < 1 || scale > maxScale {
			return fmt.Errorf("invalid scale: %d (must be between 1 and %d)", scale, maxScale)
		}

		buf, err := generate.NewGenerator(nil).Generate(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("generate %s: %w", req.Format, err)
		}
		img := render.Scale(buf.Image(), scale)

		if outputPath == "-" {
			return render.Encode(cmd.OutOrStdout(), img, outFormat)
		}
		if err := writeImageFile(outputPath, func(w io.Writer) error {
			return render.Encode(w, img, outFormat)
		}); err != nil {
			return err
		}
		b := img.Bounds()
		slog.Debug("Barcode generated", "format", req.Format.String(), "width", b.Dx(), "height", b.Dy())
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Barcode written to %s (%s, %dx%d)\n",
			outputPath, req.Format, b.Dx(), b.Dy())
		return err
	},
}

// buildGenerateRequest starts from the configured defaults and applies any
// flags the user set explicitly.
func buildGenerateRequest(cmd *cobra.Command, cfg *config.Config, text string) (generate.Request, error) {
	b, err := cfg.ToRequestBuilder()
	if err != nil {
		return generate.Request{}, err
	}
	b.WithText(text)

	if cmd.Flags().Changed("format") {
		name, _ := cmd.Flags().GetString("format")
		f, ok := barcode.ParseFormat(name)
		if !ok {
			return generate.Request{}, fmt.Errorf("unknown barcode format: %q", name)
		}
		b.WithFormat(f)
	}
	if cmd.Flags().Changed("width") {
		w, _ := cmd.Flags().GetInt("width")
		b.WithWidth(w)
	}
	if cmd.Flags().Changed("height") {
		h, _ := cmd.Flags().GetInt("height")
		b.WithHeight(h)
	}
	if cmd.Flags().Changed("charset") {
		cs, _ := cmd.Flags().GetString("charset")
		b.WithCharacterSet(cs)
	}
	if cmd.Flags().Changed("fg") {
		s, _ := cmd.Flags().GetString("fg")
		c, err := render.ParseHexColor(s)
		if err != nil {
			return generate.Request{}, fmt.Errorf("invalid --fg: %w", err)
		}
		b.WithForeground(c)
	}
	if cmd.Flags().Changed("bg") {
		s, _ := cmd.Flags().GetString("bg")
		c, err := render.ParseHexColor(s)
		if err != nil {
			return generate.Request{}, fmt.Errorf("invalid --bg: %w", err)
		}
		b.WithBackground(c)
	}
	if cmd.Flags().Changed("margin") {
		m, _ := cmd.Flags().GetInt("margin")
		b.WithMargin(m)
	}
	return b.Build()
}

func resolveOutputFormat(cmd *cobra.Command, cfg *config.Config, outputPath string) (render.OutputFormat, error) {
	if cmd.Flags().Changed("output-format") {
		name, _ := cmd.Flags().GetString("output-format")
		return render.ParseOutputFormat(name)
	}
	if outputPath != "" && outputPath != "-" {
		if ext := filepath.Ext(outputPath); ext != "" {
			return render.ParseOutputFormat(ext)
		}
	}
	return render.ParseOutputFormat(cfg.Generate.OutputFormat)
}

// writeImageFile creates path and removes it again if encoding fails.
func writeImageFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path) //nolint:gosec // user-specified output path
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := encode(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringP("format", "f", "qr", "barcode format (qr, datamatrix, code128, ean13, ...)")
	generateCmd.Flags().IntP("width", "W", 300, "target width in pixels")
	generateCmd.Flags().IntP("height", "H", 300, "target height in pixels")
	generateCmd.Flags().String("charset", generate.DefaultCharacterSet, "character set for byte segments (IANA name)")
	generateCmd.Flags().String("fg", "#000000", "foreground colour (#RRGGBB or #AARRGGBB)")
	generateCmd.Flags().String("bg", "#FFFFFF", "background colour (#RRGGBB or #AARRGGBB)")
	generateCmd.Flags().Int("margin", 0, "quiet zone in modules (default: symbology default)")
	generateCmd.Flags().Int("scale", 1, "integer upscale factor applied after rendering")
	generateCmd.Flags().StringP("output", "o", "", "output file, - for stdout (default: barcode.<ext>)")
	generateCmd.Flags().String("output-format", "png", "output image type (png, bmp, jpeg)")
}
