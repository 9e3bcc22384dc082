package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/camera"
	"github.com/MeKo-Tech/barcodekit/internal/capture"
	"github.com/MeKo-Tech/barcodekit/internal/generate"
	"github.com/MeKo-Tech/barcodekit/internal/render"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	cam := camera.DefaultSettings()
	capDefaults := capture.DefaultConfig()
	toggles := barcode.DefaultFormatToggles(true, true)
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Generate: GenerateConfig{
			Format:       barcode.DefaultFormat.String(),
			CharacterSet: generate.DefaultCharacterSet,
			Width:        300,
			Height:       300,
			Foreground:   "#000000",
			Background:   "#FFFFFF",
			Margin:       -1,
			OutputFormat: string(render.PNG),
		},
		Decode: DecodeConfig{
			Decode1DProduct:    toggles.Product1D,
			Decode1DIndustrial: toggles.Industrial1D,
			DecodeQR:           toggles.QR,
			DecodeDataMatrix:   toggles.DataMatrix,
			DecodeAztec:        toggles.Aztec,
			DecodePDF417:       toggles.PDF417,
		},
		Camera: CameraConfig{
			FrontLightMode:          string(cam.FrontLight),
			AutoFocus:               cam.AutoFocus,
			InvertScan:              cam.InvertScan,
			DisableContinuousFocus:  cam.DisableContinuousFocus,
			DisableExposure:         cam.DisableExposure,
			DisableMetering:         cam.DisableMetering,
			DisableBarcodeSceneMode: cam.DisableBarcodeSceneMode,
			FrameIntervalMS:         int(camera.DefaultFrameInterval / time.Millisecond),
		},
		Capture: CaptureConfig{
			RestartDelayMS: 1500,
			AutoRestart:    true,
			JoinTimeoutMS:  int(capDefaults.JoinTimeout / time.Millisecond),
			ThumbnailSize:  capDefaults.ThumbnailSize,
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       20,
			TimeoutSec:        30,
			ShutdownTimeout:   10,
			RateLimitEnabled:  false,
			RequestsPerMinute: 120,
			RequestsPerHour:   3000,
			MaxRequestsPerDay: 20000,
			MaxDataPerDay:     1 << 30,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	// Generation
	if _, ok := barcode.ParseFormat(c.Generate.Format); !ok {
		return fmt.Errorf("invalid generate format: %s", c.Generate.Format)
	}
	if c.Generate.Width <= 0 || c.Generate.Height <= 0 {
		return fmt.Errorf("invalid generate size: %dx%d (must be positive)", c.Generate.Width, c.Generate.Height)
	}
	if _, err := render.ParseHexColor(c.Generate.Foreground); err != nil {
		return fmt.Errorf("invalid generate foreground: %w", err)
	}
	if _, err := render.ParseHexColor(c.Generate.Background); err != nil {
		return fmt.Errorf("invalid generate background: %w", err)
	}
	if _, err := render.ParseOutputFormat(c.Generate.OutputFormat); err != nil {
		return fmt.Errorf("invalid generate output format: %w", err)
	}

	// Decoding
	if _, err := c.ToDecodeOptions(); err != nil {
		return fmt.Errorf("invalid decode settings: %w", err)
	}

	// Camera and capture
	if _, err := camera.ParseFrontLightMode(c.Camera.FrontLightMode); err != nil {
		return err
	}
	if c.Camera.FrameIntervalMS < 0 {
		return fmt.Errorf("invalid frame interval: %d (must not be negative)", c.Camera.FrameIntervalMS)
	}
	if c.Capture.RestartDelayMS < 0 {
		return fmt.Errorf("invalid restart delay: %d (must not be negative)", c.Capture.RestartDelayMS)
	}
	if c.Capture.JoinTimeoutMS <= 0 {
		return fmt.Errorf("invalid join timeout: %d (must be positive)", c.Capture.JoinTimeoutMS)
	}
	if c.Capture.ThumbnailSize < 0 {
		return fmt.Errorf("invalid thumbnail size: %d (must not be negative)", c.Capture.ThumbnailSize)
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimitEnabled && c.Server.RequestsPerMinute <= 0 {
		return fmt.Errorf("invalid requests per minute: %d (must be positive)", c.Server.RequestsPerMinute)
	}

	return nil
}

// ToRequestBuilder returns a builder preloaded with the generation defaults.
// Text is left unset.
func (c *Config) ToRequestBuilder() (*generate.RequestBuilder, error) {
	f, ok := barcode.ParseFormat(c.Generate.Format)
	if !ok {
		return nil, fmt.Errorf("invalid generate format: %s", c.Generate.Format)
	}
	fg, err := render.ParseHexColor(c.Generate.Foreground)
	if err != nil {
		return nil, err
	}
	bg, err := render.ParseHexColor(c.Generate.Background)
	if err != nil {
		return nil, err
	}
	b := generate.NewRequestBuilder().
		WithFormat(f).
		WithSize(c.Generate.Width, c.Generate.Height).
		WithCharacterSet(c.Generate.CharacterSet).
		WithForeground(fg).
		WithBackground(bg)
	if c.Generate.Margin >= 0 {
		b.WithMargin(c.Generate.Margin)
	}
	return b, nil
}

// ToDecodeOptions converts the decode section to decoder options.
func (c *Config) ToDecodeOptions() (barcode.Options, error) {
	explicit, err := barcode.ParseFormats(strings.Join(c.Decode.Formats, ","))
	if err != nil {
		return barcode.Options{}, err
	}
	if err := barcode.CheckDecodable(explicit); err != nil {
		return barcode.Options{}, err
	}
	if c.Decode.DecodePDF417 {
		return barcode.Options{}, errors.New("decode_pdf417: no PDF417 decoder is available")
	}
	toggles := barcode.FormatToggles{
		Product1D:    c.Decode.Decode1DProduct,
		Industrial1D: c.Decode.Decode1DIndustrial,
		QR:           c.Decode.DecodeQR,
		DataMatrix:   c.Decode.DecodeDataMatrix,
		Aztec:        c.Decode.DecodeAztec,
		PDF417:       c.Decode.DecodePDF417,
	}
	return barcode.Options{
		Formats:      barcode.DecodeFormats(explicit, toggles),
		TryHarder:    c.Decode.TryHarder,
		PureBarcode:  c.Decode.PureBarcode,
		CharacterSet: c.Decode.CharacterSet,
	}, nil
}

// ToCameraSettings converts the camera section.
func (c *Config) ToCameraSettings() (camera.Settings, error) {
	mode, err := camera.ParseFrontLightMode(c.Camera.FrontLightMode)
	if err != nil {
		return camera.Settings{}, err
	}
	return camera.Settings{
		FrontLight:              mode,
		AutoFocus:               c.Camera.AutoFocus,
		InvertScan:              c.Camera.InvertScan,
		DisableContinuousFocus:  c.Camera.DisableContinuousFocus,
		DisableExposure:         c.Camera.DisableExposure,
		DisableMetering:         c.Camera.DisableMetering,
		DisableBarcodeSceneMode: c.Camera.DisableBarcodeSceneMode,
	}, nil
}

// FrameInterval returns the configured frame interval.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Camera.FrameIntervalMS) * time.Millisecond
}

// ToCaptureConfig converts the capture and decode sections.
func (c *Config) ToCaptureConfig() (capture.Config, error) {
	opts, err := c.ToDecodeOptions()
	if err != nil {
		return capture.Config{}, err
	}
	return capture.Config{
		DecodeOptions: opts,
		AutoRestart:   c.Capture.AutoRestart,
		RestartDelay:  time.Duration(c.Capture.RestartDelayMS) * time.Millisecond,
		JoinTimeout:   time.Duration(c.Capture.JoinTimeoutMS) * time.Millisecond,
		ThumbnailSize: c.Capture.ThumbnailSize,
	}, nil
}

// ToYAML renders the configuration as YAML.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
