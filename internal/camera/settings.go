package camera

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// FrontLightMode controls the torch when a source opens.
type FrontLightMode string

const (
	FrontLightOff  FrontLightMode = "off"
	FrontLightOn   FrontLightMode = "on"
	FrontLightAuto FrontLightMode = "auto"
)

// ParseFrontLightMode parses "off", "on" or "auto". Empty input means off.
func ParseFrontLightMode(s string) (FrontLightMode, error) {
	switch m := FrontLightMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return FrontLightOff, nil
	case FrontLightOff, FrontLightOn, FrontLightAuto:
		return m, nil
	default:
		return "", fmt.Errorf("invalid front light mode %q (want off, on or auto)", s)
	}
}

// Settings selects how a source configures its parameters.
type Settings struct {
	FrontLight              FrontLightMode
	AutoFocus               bool
	InvertScan              bool
	DisableContinuousFocus  bool
	DisableExposure         bool
	DisableMetering         bool
	DisableBarcodeSceneMode bool
}

// DefaultSettings returns conservative settings: auto focus on, every
// optional tuning off.
func DefaultSettings() Settings {
	return Settings{
		FrontLight:              FrontLightOff,
		AutoFocus:               true,
		DisableContinuousFocus:  true,
		DisableExposure:         true,
		DisableMetering:         true,
		DisableBarcodeSceneMode: true,
	}
}

// Parameter values understood by Configure.
const (
	FlashOff   = "off"
	FlashOn    = "on"
	FlashTorch = "torch"

	FocusAuto              = "auto"
	FocusContinuousPicture = "continuous-picture"
	FocusContinuousVideo   = "continuous-video"
	FocusMacro             = "macro"
	FocusEDOF              = "edof"

	EffectNone     = "none"
	EffectNegative = "negative"

	SceneAuto    = "auto"
	SceneBarcode = "barcode"
)

const (
	maxExposureCompensation = 1.5
	minExposureCompensation = 0.0
)

// Area is a focus or metering region in the -1000..1000 sensor coordinate space.
type Area struct {
	Left, Top, Right, Bottom int
	Weight                   int
}

// Parameters is the tunable state of a camera and what it supports.
type Parameters struct {
	FlashMode           string
	SupportedFlashModes []string

	FocusMode           string
	SupportedFocusModes []string

	ColorEffect           string
	SupportedColorEffects []string

	SceneMode           string
	SupportedSceneModes []string

	ExposureCompensation     int
	MinExposureCompensation  int
	MaxExposureCompensation  int
	ExposureCompensationStep float64

	VideoStabilization          bool
	VideoStabilizationSupported bool

	FocusAreas          []Area
	MaxNumFocusAreas    int
	MeteringAreas       []Area
	MaxNumMeteringAreas int
}

// SoftwareParameters describes a source with every mode available, which is
// what the file and stream sources expose.
func SoftwareParameters() Parameters {
	return Parameters{
		FlashMode:                   FlashOff,
		SupportedFlashModes:         []string{FlashOff, FlashOn, FlashTorch},
		FocusMode:                   FocusAuto,
		SupportedFocusModes:         []string{FocusAuto, FocusContinuousPicture, FocusContinuousVideo, FocusMacro, FocusEDOF},
		ColorEffect:                 EffectNone,
		SupportedColorEffects:       []string{EffectNone, EffectNegative},
		SceneMode:                   SceneAuto,
		SupportedSceneModes:         []string{SceneAuto, SceneBarcode},
		MinExposureCompensation:     -4,
		MaxExposureCompensation:     4,
		ExposureCompensationStep:    0.5,
		VideoStabilizationSupported: true,
		MaxNumFocusAreas:            1,
		MaxNumMeteringAreas:         1,
	}
}

// TorchOn reports whether the flash is lit.
func (p *Parameters) TorchOn() bool {
	return p.FlashMode == FlashOn || p.FlashMode == FlashTorch
}

// Configure applies settings to params. In safe mode only the torch and basic
// focus are touched.
func Configure(params *Parameters, s Settings, safeMode bool) {
	if safeMode {
		slog.Warn("Camera config safe mode, most settings will not be honored")
	}

	applyTorch(params, s, s.FrontLight == FrontLightOn, safeMode)
	setFocus(params, s.AutoFocus, s.DisableContinuousFocus, safeMode)

	if !safeMode {
		if s.InvertScan {
			setValue(&params.ColorEffect, params.SupportedColorEffects, "color effect", EffectNegative)
		}
		if !s.DisableBarcodeSceneMode && params.SceneMode != SceneBarcode {
			setValue(&params.SceneMode, params.SupportedSceneModes, "scene mode", SceneBarcode)
		}
		if !s.DisableMetering {
			if params.VideoStabilizationSupported {
				params.VideoStabilization = true
			}
			centre := []Area{{Left: -400, Top: -400, Right: 400, Bottom: 400, Weight: 1}}
			if params.MaxNumFocusAreas > 0 {
				params.FocusAreas = centre
			}
			if params.MaxNumMeteringAreas > 0 {
				params.MeteringAreas = centre
			}
		}
	}
	slog.Debug("Camera parameters configured",
		"flash", params.FlashMode,
		"focus", params.FocusMode,
		"effect", params.ColorEffect,
		"scene", params.SceneMode,
		"exposure", params.ExposureCompensation)
}

// SetTorch switches the flash and, when exposure tuning is enabled, adjusts
// exposure compensation for the new lighting.
func SetTorch(params *Parameters, s Settings, on bool) {
	applyTorch(params, s, on, false)
}

func applyTorch(params *Parameters, s Settings, on, safeMode bool) {
	if on {
		setValue(&params.FlashMode, params.SupportedFlashModes, "flash mode", FlashTorch, FlashOn)
	} else {
		setValue(&params.FlashMode, params.SupportedFlashModes, "flash mode", FlashOff)
	}
	if !safeMode && !s.DisableExposure {
		setBestExposure(params, on)
	}
}

func setFocus(params *Parameters, autoFocus, disableContinuous, safeMode bool) {
	var mode string
	if autoFocus {
		if safeMode || disableContinuous {
			mode = firstSupported(params.SupportedFocusModes, FocusAuto)
		} else {
			mode = firstSupported(params.SupportedFocusModes, FocusContinuousPicture, FocusContinuousVideo, FocusAuto)
		}
	}
	if !safeMode && mode == "" {
		mode = firstSupported(params.SupportedFocusModes, FocusMacro, FocusEDOF)
	}
	if mode != "" {
		params.FocusMode = mode
	}
}

func setBestExposure(params *Parameters, lightOn bool) {
	lo, hi := params.MinExposureCompensation, params.MaxExposureCompensation
	step := params.ExposureCompensationStep
	if (lo == 0 && hi == 0) || step <= 0 {
		slog.Debug("Camera does not support exposure compensation")
		return
	}
	target := maxExposureCompensation
	if lightOn {
		target = minExposureCompensation
	}
	idx := int(math.Round(target / step))
	if idx < lo {
		idx = lo
	}
	if idx > hi {
		idx = hi
	}
	params.ExposureCompensation = idx
}

func setValue(field *string, supported []string, name string, desired ...string) {
	v := firstSupported(supported, desired...)
	if v == "" {
		slog.Debug("No supported camera value", "setting", name, "desired", desired)
		return
	}
	*field = v
}

func firstSupported(supported []string, desired ...string) string {
	for _, d := range desired {
		for _, s := range supported {
			if s == d {
				return d
			}
		}
	}
	return ""
}
