package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/camera"
	"github.com/MeKo-Tech/barcodekit/internal/capture"
	"github.com/MeKo-Tech/barcodekit/internal/generate"
	"github.com/MeKo-Tech/barcodekit/internal/render"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	gen         *generate.Generator
	dec         barcode.Decoder
	genDefaults GenerateDefaults
	decodeOpts  barcode.Options
	captureCfg  capture.Config
	cameraCfg   camera.Settings
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	rateLimiter *RateLimiter

	mu       sync.Mutex
	sessions map[string]*scanSession
	closed   bool
}

// GenerateDefaults fills parameters a generate request leaves out.
type GenerateDefaults struct {
	Format       barcode.Format
	Width        int
	Height       int
	CharacterSet string
	Foreground   render.Color
	Background   render.Color
	// Margin is the quiet zone in modules; nil keeps the symbology default.
	Margin *int
	Output render.OutputFormat
}

// DefaultGenerateDefaults returns 300x300 black on white QR codes as PNG.
func DefaultGenerateDefaults() GenerateDefaults {
	return GenerateDefaults{
		Format:       barcode.DefaultFormat,
		Width:        300,
		Height:       300,
		CharacterSet: generate.DefaultCharacterSet,
		Foreground:   render.Black,
		Background:   render.White,
		Output:       render.PNG,
	}
}

// RateLimitConfig holds per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int

	Generate GenerateDefaults
	Decode   barcode.Options
	Capture  capture.Config
	Camera   camera.Settings

	RateLimit RateLimitConfig

	// Encoder and Decoder default to the gozxing backends.
	Encoder barcode.Encoder
	Decoder barcode.Decoder
}

// Response types for API endpoints.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Time     string `json:"time"`
	Sessions int    `json:"sessions"`
}

type FormatInfo struct {
	Name     string `json:"name"`
	AttrName string `json:"attr_name"`
	AttrID   int    `json:"attr_id"`
	Linear   bool   `json:"linear"`
	Encode   bool   `json:"encode"`
	Decode   bool   `json:"decode"`
}

type FormatsResponse struct {
	Formats []FormatInfo `json:"formats"`
	Count   int          `json:"count"`
}

type PointJSON struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type BoxJSON struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type ResultJSON struct {
	Format    string      `json:"format"`
	AttrID    int         `json:"attr_id"`
	Text      string      `json:"text"`
	Raw       []byte      `json:"raw,omitempty"`
	Points    []PointJSON `json:"points,omitempty"`
	Box       *BoxJSON    `json:"box,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type DecodeResponse struct {
	Success    bool         `json:"success"`
	Results    []ResultJSON `json:"results"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Processing struct {
		DecodeTimeMs int64 `json:"decode_time_ms"`
	} `json:"processing"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewServer creates a new barcode server instance.
func NewServer(config Config) (*Server, error) {
	defaults := config.Generate
	if defaults.Width == 0 && defaults.Height == 0 && defaults.Format == barcode.FormatUnknown {
		defaults = DefaultGenerateDefaults()
	}
	if defaults.Output == "" {
		defaults.Output = render.PNG
	}

	dec := config.Decoder
	if dec == nil {
		dec = barcode.NewDecoder()
	}

	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 20
	}
	timeout := time.Duration(config.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Server{
		gen:         generate.NewGenerator(config.Encoder),
		dec:         dec,
		genDefaults: defaults,
		decodeOpts:  config.Decode,
		captureCfg:  config.Capture,
		cameraCfg:   config.Camera,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: maxUpload,
		timeout:     timeout,
		sessions:    make(map[string]*scanSession),
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit.RequestsPerMinute, config.RateLimit.RequestsPerHour,
			config.RateLimit.MaxRequestsPerDay, config.RateLimit.MaxDataPerDay)
	}
	return s, nil
}

// Close stops every live scan session.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*scanSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/formats", s.corsMiddleware(s.formatsHandler))
	mux.HandleFunc("/barcode/generate", s.corsMiddleware(s.rateLimitMiddleware(s.generateHandler)))
	mux.HandleFunc("/barcode/decode", s.corsMiddleware(s.rateLimitMiddleware(s.decodeHandler)))
	// The upgrade needs the raw ResponseWriter, so no CORS/metrics wrapper here.
	mux.HandleFunc("/ws/scan", s.rateLimitMiddleware(s.scanWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

func resultToJSON(r barcode.Result) ResultJSON {
	out := ResultJSON{
		Format:    r.Type.String(),
		AttrID:    r.Type.AttrID(),
		Text:      r.Value,
		Raw:       r.Raw,
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	for _, p := range r.Points {
		out.Points = append(out.Points, PointJSON{X: p.X, Y: p.Y})
	}
	if !r.BBox.Empty() {
		out.Box = &BoxJSON{X: r.BBox.Min.X, Y: r.BBox.Min.Y, W: r.BBox.Dx(), H: r.BBox.Dy()}
	}
	return out
}
