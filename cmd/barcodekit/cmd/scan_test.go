package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCommand(t *testing.T) {
	assert.Equal(t, "scan FILE|DIR...", scanCmd.Use)
	for _, name := range []string{"max-results", "restart-delay", "timeout", "loop", "interval"} {
		assert.NotNil(t, scanCmd.Flags().Lookup(name), name)
	}
}

func TestScanSequenceUntilExhausted(t *testing.T) {
	dir := t.TempDir()
	writeBarcode(t, dir, "01.png", "one", barcode.FormatQR)
	writeBlank(t, dir, "02.png")
	writeBarcode(t, dir, "03.png", "two", barcode.FormatQR)

	output, err := runCommand(t, "scan", dir, "--interval", "5ms", "--restart-delay", "0", "--timeout", "10s")
	require.NoError(t, err)
	assert.Contains(t, output, "1: [qr] one")
	assert.Contains(t, output, "2: [qr] two")
	assert.NotContains(t, output, "3:")
}

func TestScanLoopStopsAtMaxResults(t *testing.T) {
	dir := t.TempDir()
	writeBarcode(t, dir, "only.png", "again", barcode.FormatQR)

	start := time.Now()
	output, err := runCommand(t, "scan", dir, "--loop", "--max-results", "3",
		"--interval", "5ms", "--restart-delay", "10ms", "--timeout", "10s", "--format", "json")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 3)
	for i, line := range lines {
		var ev scanEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		assert.Equal(t, i+1, ev.Index)
		assert.Equal(t, "qr", ev.Format)
		assert.Equal(t, "again", ev.Text)
		assert.Greater(t, ev.Scale, 0.0)
	}
}

func TestScanTimeout(t *testing.T) {
	dir := t.TempDir()
	writeBlank(t, dir, "blank.png")

	start := time.Now()
	output, err := runCommand(t, "scan", dir, "--loop", "--interval", "5ms", "--timeout", "200ms")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Empty(t, strings.TrimSpace(output))
}

func TestScanFormatsRestriction(t *testing.T) {
	dir := t.TempDir()
	writeBarcode(t, dir, "qr.png", "only qr", barcode.FormatQR)

	output, err := runCommand(t, "scan", dir, "--formats", "code128",
		"--interval", "5ms", "--restart-delay", "0", "--timeout", "10s")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(output))

	_, err = runCommand(t, "scan", dir, "--formats", "pdf417")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdf417 cannot be decoded")
}

func TestScanErrors(t *testing.T) {
	_, err := runCommand(t, "scan", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no supported images found")

	dir := t.TempDir()
	writeBlank(t, dir, "blank.png")
	_, err = runCommand(t, "scan", dir, "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")

	_, err = runCommand(t, "scan", dir, "--formats", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown barcode format")
}

func TestScanPrinter(t *testing.T) {
	buf := new(bytes.Buffer)
	p := newScanPrinter(buf, outputFormatText, 2)
	res := barcode.Result{Type: barcode.FormatEAN13, Value: "4006381333931", Timestamp: time.Now()}

	p.OnDecoded(res, nil, 0.5)
	select {
	case <-p.done:
		t.Fatal("done closed before max results")
	default:
	}
	p.OnDecoded(res, nil, 0.5)
	p.OnDecoded(res, nil, 0.5)

	<-p.done
	assert.Equal(t, 2, p.results())
	assert.Equal(t, "1: [ean13] 4006381333931\n2: [ean13] 4006381333931\n", buf.String())

	p.OnFatalError(errors.New("first"))
	p.OnFatalError(errors.New("second"))
	assert.EqualError(t, <-p.fatal, "first")
}
