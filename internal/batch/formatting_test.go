package batch

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []FileResult {
	return []FileResult{
		{File: "a.png", Width: 240, Height: 240, Symbols: []Symbol{{Format: "qr", Text: "hello, world", Box: &[4]int{1, 2, 3, 4}}}},
		{File: "b.png", Width: 100, Height: 50, Symbols: []Symbol{}},
		{File: "c.png", Symbols: []Symbol{}, Error: "failed to load"},
		{File: "d.png", Width: 400, Height: 120, Symbols: []Symbol{{Format: "code128", Text: "X1"}, {Format: "qr", Text: "X2"}}},
	}
}

func TestFormatText(t *testing.T) {
	out := formatText(sampleResults())
	assert.Equal(t, "a.png: [qr] hello, world\n"+
		"b.png: no barcode found\n"+
		"c.png: error: failed to load\n"+
		"d.png: [code128] X1\n"+
		"d.png: [qr] X2\n", out)
}

func TestFormatJSON(t *testing.T) {
	out, err := formatJSON(sampleResults())
	require.NoError(t, err)

	var parsed []FileResult
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, sampleResults(), parsed)
	assert.Contains(t, out, `"box": [`)
	assert.NotContains(t, out, `"points"`)
}

func TestFormatJSON_Empty(t *testing.T) {
	out, err := formatJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestFormatCSV(t *testing.T) {
	out, err := formatCSV(sampleResults())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{
		"file,format,text,width,height,error",
		`a.png,qr,"hello, world",240,240,`,
		"b.png,,,100,50,",
		"c.png,,,0,0,failed to load",
		"d.png,code128,X1,400,120,",
		"d.png,qr,X2,400,120,",
	}, lines)
}

func TestFormatBatchResults_InvalidFormat(t *testing.T) {
	_, err := formatBatchResults(sampleResults(), "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
	assert.False(t, ValidFormat("xml"))
	assert.True(t, ValidFormat(FormatCSV))
}

func TestResult_WriteResultsAndStats(t *testing.T) {
	r := &Result{Files: sampleResults(), Duration: 2 * time.Second, WorkerCount: 2}
	assert.Equal(t, 2, r.Found())
	assert.Equal(t, 1, r.Failed())

	var buf bytes.Buffer
	require.NoError(t, r.WriteResults(&buf, FormatText))
	assert.Contains(t, buf.String(), "b.png: no barcode found")

	require.Error(t, r.WriteResults(&buf, "yaml"))

	buf.Reset()
	r.PrintStats(&buf)
	stats := buf.String()
	assert.Contains(t, stats, "Total images: 4")
	assert.Contains(t, stats, "With barcodes: 2")
	assert.Contains(t, stats, "Failed: 1")
	assert.Contains(t, stats, "Workers: 2")
	assert.Contains(t, stats, "Throughput: 2.0 images/sec")
}
