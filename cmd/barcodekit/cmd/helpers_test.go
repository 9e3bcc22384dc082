package cmd

import (
	"bytes"
	"context"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/testutil"
	"github.com/MeKo-Tech/barcodekit/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of cmd and its children to its default so
// runs against the shared command tree do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCommand executes the root command with args and returns the combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfgFile = ""

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// writeBarcode renders text as a PNG file in dir and returns its path.
func writeBarcode(t *testing.T, dir, name, text string, format barcode.Format) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, testutil.WriteBarcodePNG(path, text, format))
	return path
}

// writeBlank writes a plain white PNG without any symbol.
func writeBlank(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, testutil.WritePNG(path, testutil.BlankImage(120, 120, color.White)))
	return path
}

// decodeFileValue decodes the image at path and returns the first symbol
// together with the image metadata.
func decodeFileValue(t *testing.T, path string) (barcode.Result, utils.ImageMetadata) {
	t.Helper()
	img, meta, err := utils.LoadImage(path)
	require.NoError(t, err)
	res, err := barcode.NewDecoder().Decode(context.Background(), img, barcode.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	return res[0], meta
}
