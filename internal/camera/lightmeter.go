package camera

import (
	"image"
	"log/slog"
	"sync"

	"github.com/disintegration/imaging"
)

// Luminance thresholds on the 0..255 scale.
const (
	DefaultDarkThreshold   = 45.0
	DefaultBrightThreshold = 110.0
)

// meterSize is the edge length frames are reduced to before metering.
const meterSize = 64

// LightMeter decides the torch state from frame brightness. The gap between
// the two thresholds keeps the torch from flickering.
type LightMeter struct {
	Dark   float64
	Bright float64

	mu sync.Mutex
	on bool
}

// NewLightMeter returns a meter with the default thresholds.
func NewLightMeter() *LightMeter {
	return &LightMeter{Dark: DefaultDarkThreshold, Bright: DefaultBrightThreshold}
}

// Observe meters img and returns the desired torch state and whether it changed.
func (m *LightMeter) Observe(img image.Image) (on, changed bool) {
	lum := MeanLuminance(img)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case !m.on && lum <= m.Dark:
		m.on, changed = true, true
	case m.on && lum >= m.Bright:
		m.on, changed = false, true
	}
	return m.on, changed
}

// MeanLuminance returns the average grey level of img.
func MeanLuminance(img image.Image) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	small := img
	if b.Dx() > meterSize || b.Dy() > meterSize {
		small = imaging.Fit(img, meterSize, meterSize, imaging.Box)
	}
	grey := imaging.Grayscale(small)
	if len(grey.Pix) == 0 {
		return 0
	}
	var sum uint64
	for i := 0; i < len(grey.Pix); i += 4 {
		sum += uint64(grey.Pix[i])
	}
	return float64(sum) / float64(len(grey.Pix)/4)
}

// autoTorchSource meters every delivered frame and switches the torch.
type autoTorchSource struct {
	Source
	meter *LightMeter
}

// WithAutoTorch wraps src so the torch follows frame brightness.
func WithAutoTorch(src Source, meter *LightMeter) Source {
	if meter == nil {
		meter = NewLightMeter()
	}
	return &autoTorchSource{Source: src, meter: meter}
}

func (a *autoTorchSource) RequestFrame(fn func(Frame)) {
	a.Source.RequestFrame(func(f Frame) {
		if on, changed := a.meter.Observe(f.Image); changed {
			if err := a.Source.SetTorch(on); err != nil {
				slog.Warn("Automatic torch switch failed", "on", on, "error", err)
			} else {
				slog.Debug("Automatic torch switched", "on", on)
			}
		}
		fn(f)
	})
}
