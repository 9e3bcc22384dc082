//nolint:lll
package config

// Config represents the complete configuration for barcodekit.
// It covers every command (generate, decode, scan, serve) and supports
// loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Barcode generation defaults
	Generate GenerateConfig `mapstructure:"generate" yaml:"generate" json:"generate"`

	// Decoder hints
	Decode DecodeConfig `mapstructure:"decode" yaml:"decode" json:"decode"`

	// Camera / frame source settings
	Camera CameraConfig `mapstructure:"camera" yaml:"camera" json:"camera"`

	// Capture session settings
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture" json:"capture"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// GenerateConfig contains barcode rendering defaults.
type GenerateConfig struct {
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	CharacterSet string `mapstructure:"character_set" yaml:"character_set" json:"character_set"`
	Width        int    `mapstructure:"width" yaml:"width" json:"width"`
	Height       int    `mapstructure:"height" yaml:"height" json:"height"`
	Foreground   string `mapstructure:"foreground" yaml:"foreground" json:"foreground"`
	Background   string `mapstructure:"background" yaml:"background" json:"background"`
	// Margin is the quiet zone in modules; negative keeps the symbology default.
	Margin       int    `mapstructure:"margin" yaml:"margin" json:"margin"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format" json:"output_format"`
}

// DecodeConfig contains decoder hints and symbology toggles.
type DecodeConfig struct {
	// Formats, when set, overrides the family toggles below.
	Formats      []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder    bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	PureBarcode  bool     `mapstructure:"pure_barcode" yaml:"pure_barcode" json:"pure_barcode"`
	CharacterSet string   `mapstructure:"character_set" yaml:"character_set" json:"character_set"`

	Decode1DProduct    bool `mapstructure:"decode_1d_product" yaml:"decode_1d_product" json:"decode_1d_product"`
	Decode1DIndustrial bool `mapstructure:"decode_1d_industrial" yaml:"decode_1d_industrial" json:"decode_1d_industrial"`
	DecodeQR           bool `mapstructure:"decode_qr" yaml:"decode_qr" json:"decode_qr"`
	DecodeDataMatrix   bool `mapstructure:"decode_data_matrix" yaml:"decode_data_matrix" json:"decode_data_matrix"`
	DecodeAztec        bool `mapstructure:"decode_aztec" yaml:"decode_aztec" json:"decode_aztec"`
	DecodePDF417       bool `mapstructure:"decode_pdf417" yaml:"decode_pdf417" json:"decode_pdf417"`
}

// CameraConfig contains frame source settings.
type CameraConfig struct {
	FrontLightMode          string `mapstructure:"front_light_mode" yaml:"front_light_mode" json:"front_light_mode"`
	AutoFocus               bool   `mapstructure:"auto_focus" yaml:"auto_focus" json:"auto_focus"`
	InvertScan              bool   `mapstructure:"invert_scan" yaml:"invert_scan" json:"invert_scan"`
	DisableContinuousFocus  bool   `mapstructure:"disable_continuous_focus" yaml:"disable_continuous_focus" json:"disable_continuous_focus"`
	DisableExposure         bool   `mapstructure:"disable_exposure" yaml:"disable_exposure" json:"disable_exposure"`
	DisableMetering         bool   `mapstructure:"disable_metering" yaml:"disable_metering" json:"disable_metering"`
	DisableBarcodeSceneMode bool   `mapstructure:"disable_barcode_scene_mode" yaml:"disable_barcode_scene_mode" json:"disable_barcode_scene_mode"`
	SafeMode                bool   `mapstructure:"safe_mode" yaml:"safe_mode" json:"safe_mode"`
	FrameIntervalMS         int    `mapstructure:"frame_interval_ms" yaml:"frame_interval_ms" json:"frame_interval_ms"`
}

// CaptureConfig contains capture coordinator settings.
type CaptureConfig struct {
	RestartDelayMS int  `mapstructure:"restart_delay_ms" yaml:"restart_delay_ms" json:"restart_delay_ms"`
	AutoRestart    bool `mapstructure:"auto_restart" yaml:"auto_restart" json:"auto_restart"`
	JoinTimeoutMS  int  `mapstructure:"join_timeout_ms" yaml:"join_timeout_ms" json:"join_timeout_ms"`
	ThumbnailSize  int  `mapstructure:"thumbnail_size" yaml:"thumbnail_size" json:"thumbnail_size"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Rate limiting
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}
