package cmd

import (
	"testing"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/config"
	"github.com/MeKo-Tech/barcodekit/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand(t *testing.T) {
	assert.Equal(t, "serve", serveCmd.Use)
	assert.NotEmpty(t, serveCmd.Short)
	for _, name := range []string{"host", "port", "cors-origin", "max-upload-size", "timeout", "shutdown-timeout",
		"rate-limit-enabled", "requests-per-minute", "requests-per-hour", "max-requests-per-day", "max-data-per-day"} {
		assert.NotNil(t, serveCmd.Flags().Lookup(name), name)
	}
}

func TestBuildServerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generate.Format = "datamatrix"
	cfg.Generate.Foreground = "#FF0000"
	cfg.Generate.OutputFormat = "bmp"
	cfg.Generate.Margin = 2
	cfg.Decode.Formats = []string{"qr"}
	cfg.Server.RateLimitEnabled = true
	cfg.Server.RequestsPerMinute = 7

	sc, err := buildServerConfig(&cfg)
	require.NoError(t, err)

	assert.Equal(t, cfg.Server.Port, sc.Port)
	assert.Equal(t, int64(cfg.Server.MaxUploadMB), sc.MaxUploadMB)
	assert.Equal(t, barcode.FormatDataMatrix, sc.Generate.Format)
	assert.Equal(t, render.Color(0xFFFF0000), sc.Generate.Foreground)
	assert.Equal(t, render.BMP, sc.Generate.Output)
	require.NotNil(t, sc.Generate.Margin)
	assert.Equal(t, 2, *sc.Generate.Margin)
	assert.Equal(t, []barcode.Format{barcode.FormatQR}, sc.Decode.Formats)
	assert.Equal(t, []barcode.Format{barcode.FormatQR}, sc.Capture.DecodeOptions.Formats)
	assert.True(t, sc.RateLimit.Enabled)
	assert.Equal(t, 7, sc.RateLimit.RequestsPerMinute)
}

func TestBuildServerConfigDefaultMargin(t *testing.T) {
	cfg := config.DefaultConfig()
	sc, err := buildServerConfig(&cfg)
	require.NoError(t, err)
	assert.Nil(t, sc.Generate.Margin)
	assert.Equal(t, render.PNG, sc.Generate.Output)
}

func TestBuildServerConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"format", func(c *config.Config) { c.Generate.Format = "nope" }},
		{"colour", func(c *config.Config) { c.Generate.Background = "white" }},
		{"output", func(c *config.Config) { c.Generate.OutputFormat = "gif" }},
		{"decode formats", func(c *config.Config) { c.Decode.Formats = []string{"nope"} }},
		{"front light", func(c *config.Config) { c.Camera.FrontLightMode = "sometimes" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(&cfg)
			_, err := buildServerConfig(&cfg)
			assert.Error(t, err)
		})
	}
}

func TestApplyServeFlags(t *testing.T) {
	resetFlags(serveCmd)
	t.Cleanup(func() { resetFlags(serveCmd) })
	require.NoError(t, serveCmd.Flags().Set("port", "9090"))
	require.NoError(t, serveCmd.Flags().Set("rate-limit-enabled", "true"))
	require.NoError(t, serveCmd.Flags().Set("max-data-per-day", "1024"))

	cfg := config.DefaultConfig()
	applyServeFlags(serveCmd, &cfg)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.RateLimitEnabled)
	assert.Equal(t, int64(1024), cfg.Server.MaxDataPerDay)
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestServeRejectsInvalidPort(t *testing.T) {
	_, err := runCommand(t, "serve", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number")
}
