package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	assert.Equal(t, "decode FILE|DIR...", decodeCmd.Use)
	assert.NotEmpty(t, decodeCmd.Short)
}

func TestDecodeText(t *testing.T) {
	dir := t.TempDir()
	qr := writeBarcode(t, dir, "a.png", "first", barcode.FormatQR)
	code := writeBarcode(t, dir, "b.png", "CODE-2", barcode.FormatCode128)

	output, err := runCommand(t, "decode", qr, code)
	require.NoError(t, err)
	assert.Contains(t, output, qr+": [qr] first")
	assert.Contains(t, output, code+": [code128] CODE-2")
}

func TestDecodeDirectoryJSON(t *testing.T) {
	dir := t.TempDir()
	writeBarcode(t, dir, "1.png", "one", barcode.FormatQR)
	writeBlank(t, dir, "2.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))

	output, err := runCommand(t, "decode", dir, "--format", "json")
	require.NoError(t, err)

	var results []batch.FileResult
	require.NoError(t, json.Unmarshal([]byte(output), &results))
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(dir, "1.png"), results[0].File)
	require.Len(t, results[0].Symbols, 1)
	assert.Equal(t, "qr", results[0].Symbols[0].Format)
	assert.Equal(t, "one", results[0].Symbols[0].Text)
	assert.NotNil(t, results[0].Symbols[0].Box)
	assert.Equal(t, 240, results[0].Width)
	assert.Empty(t, results[1].Symbols)
	assert.Empty(t, results[1].Error)
}

func TestDecodeFormatsRestriction(t *testing.T) {
	dir := t.TempDir()
	qr := writeBarcode(t, dir, "qr.png", "only qr", barcode.FormatQR)

	output, err := runCommand(t, "decode", qr, "--formats", "code128")
	require.ErrorIs(t, err, errNoBarcodes)
	assert.Contains(t, output, "no barcode found")

	_, err = runCommand(t, "decode", qr, "--formats", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown barcode format")
}

func TestDecodeCSVToFile(t *testing.T) {
	dir := t.TempDir()
	qr := writeBarcode(t, dir, "qr.png", "csv value", barcode.FormatQR)
	out := filepath.Join(dir, "results.csv")

	output, err := runCommand(t, "decode", qr, "--format", "csv", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, output, "Results written to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "file,format,text,width,height,error", lines[0])
	assert.Equal(t, qr+",qr,csv value,240,240,", lines[1])
}

func TestDecodeFilters(t *testing.T) {
	dir := t.TempDir()
	keep := writeBarcode(t, dir, "keep-1.png", "kept", barcode.FormatQR)
	skip := writeBarcode(t, dir, "skip-1.png", "skipped", barcode.FormatQR)

	output, err := runCommand(t, "decode", dir, "--include", "keep-*", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, output, keep+": [qr] kept")
	assert.NotContains(t, output, skip)

	output, err = runCommand(t, "decode", dir, "--exclude", "keep-*", "--stats")
	require.NoError(t, err)
	assert.Contains(t, output, skip+": [qr] skipped")
	assert.NotContains(t, output, keep)
	assert.Contains(t, output, "Decoding Statistics:")
	assert.Contains(t, output, "With barcodes: 1")

	_, err = runCommand(t, "decode", dir, "--include", "*.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no supported images found")
}

func TestDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o600))

	output, err := runCommand(t, "decode", broken)
	require.ErrorIs(t, err, errNoBarcodes)
	assert.Contains(t, output, broken+": error:")

	_, err = runCommand(t, "decode", filepath.Join(dir, "missing.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")

	empty := t.TempDir()
	_, err = runCommand(t, "decode", empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no supported images found")

	_, err = runCommand(t, "decode", broken, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")

	_, err = runCommand(t, "decode")
	require.Error(t, err)
}
