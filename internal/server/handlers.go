package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/generate"
	"github.com/MeKo-Tech/barcodekit/internal/render"
	"github.com/MeKo-Tech/barcodekit/internal/utils"
	"github.com/MeKo-Tech/barcodekit/internal/version"
)

// maxScale bounds the integer upscaling factor of generated images.
const maxScale = 16

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	sessions := len(s.sessions)
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  version.Version,
		Time:     time.Now().UTC().Format(time.RFC3339),
		Sessions: sessions,
	})
}

// formatsHandler lists every symbology with its capabilities.
func (s *Server) formatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := barcode.AllFormats()
	infos := make([]FormatInfo, 0, len(all))
	for _, f := range all {
		infos = append(infos, FormatInfo{
			Name:     f.String(),
			AttrName: f.AttrName(),
			AttrID:   f.AttrID(),
			Linear:   f.Is1D(),
			Encode:   barcode.CanEncode(f),
			Decode:   barcode.CanDecode(f),
		})
	}
	s.writeJSON(w, http.StatusOK, FormatsResponse{Formats: infos, Count: len(infos)})
}

// generateHandler renders a barcode image from query or form parameters.
func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	}

	req, out, scale, err := s.parseGenerateRequest(r)
	if err != nil {
		generateRequestsTotal.WithLabelValues(req.Format.String(), "invalid").Inc()
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	buf, err := s.gen.Generate(ctx, req)
	if err != nil {
		generateRequestsTotal.WithLabelValues(req.Format.String(), "error").Inc()
		s.writeError(w, err)
		return
	}

	var body bytes.Buffer
	if err := render.Encode(&body, render.Scale(buf.Image(), scale), out); err != nil {
		generateRequestsTotal.WithLabelValues(req.Format.String(), "error").Inc()
		s.writeErrorResponse(w, "internal_error", "Failed to encode image", http.StatusInternalServerError)
		return
	}
	generateRequestsTotal.WithLabelValues(req.Format.String(), "success").Inc()

	w.Header().Set("Content-Type", out.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	if _, err := w.Write(body.Bytes()); err != nil {
		slog.Error("Failed to write generated image", "error", err)
	}
}

// parseGenerateRequest applies request parameters over the server defaults.
func (s *Server) parseGenerateRequest(r *http.Request) (generate.Request, render.OutputFormat, int, error) {
	d := s.genDefaults
	b := generate.NewRequestBuilder().
		WithText(r.FormValue("text")).
		WithFormat(d.Format).
		WithSize(d.Width, d.Height).
		WithCharacterSet(d.CharacterSet).
		WithForeground(d.Foreground).
		WithBackground(d.Background)
	if d.Margin != nil {
		b.WithMargin(*d.Margin)
	}
	out := d.Output
	scale := 1

	if v := r.FormValue("format"); v != "" {
		f, ok := barcode.ParseFormat(v)
		if !ok {
			return generate.Request{}, "", 0, badParam("format", "is not a known symbology")
		}
		b.WithFormat(f)
	}
	for _, p := range []struct {
		name string
		set  func(int) *generate.RequestBuilder
	}{
		{"width", b.WithWidth},
		{"height", b.WithHeight},
		{"margin", b.WithMargin},
	} {
		v := r.FormValue(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return generate.Request{}, "", 0, badParam(p.name, "must be an integer")
		}
		p.set(n)
	}
	if v := r.FormValue("charset"); v != "" {
		b.WithCharacterSet(v)
	}
	if v := r.FormValue("fg"); v != "" {
		c, err := render.ParseHexColor(v)
		if err != nil {
			return generate.Request{}, "", 0, badParam("fg", "must be #RRGGBB or #AARRGGBB")
		}
		b.WithForeground(c)
	}
	if v := r.FormValue("bg"); v != "" {
		c, err := render.ParseHexColor(v)
		if err != nil {
			return generate.Request{}, "", 0, badParam("bg", "must be #RRGGBB or #AARRGGBB")
		}
		b.WithBackground(c)
	}
	if v := r.FormValue("output"); v != "" {
		f, err := render.ParseOutputFormat(v)
		if err != nil {
			return generate.Request{}, "", 0, badParam("output", "must be png, bmp or jpeg")
		}
		out = f
	}
	if v := r.FormValue("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxScale {
			return generate.Request{}, "", 0, badParam("scale", "must be an integer between 1 and 16")
		}
		scale = n
	}

	req, err := b.Build()
	if err != nil {
		return generate.Request{}, "", 0, err
	}
	return req, out, scale, nil
}

// decodeHandler decodes the symbol in an uploaded image.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
			s.writeErrorResponse(w, "too_large", "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "invalid_request", "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "internal_error", "Failed to read image data", http.StatusInternalServerError)
		return
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		s.writeErrorResponse(w, "invalid_request", "Invalid image format", http.StatusBadRequest)
		return
	}

	opts, err := s.parseDecodeOptions(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	results, err := s.dec.Decode(ctx, img, opts)
	elapsed := time.Since(start)
	decodeDuration.Observe(elapsed.Seconds())
	if err == nil && len(results) == 0 {
		err = barcode.ErrDecodeMiss
	}
	if err != nil {
		if barcode.IsDecodeMiss(err) {
			decodeRequestsTotal.WithLabelValues("miss").Inc()
			slog.Debug("No barcode in uploaded image", "filename", header.Filename)
		} else {
			decodeRequestsTotal.WithLabelValues("error").Inc()
		}
		s.writeError(w, err)
		return
	}
	decodeRequestsTotal.WithLabelValues("found").Inc()

	resp := DecodeResponse{Success: true, Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	resp.Processing.DecodeTimeMs = elapsed.Milliseconds()
	for _, res := range results {
		resp.Results = append(resp.Results, resultToJSON(res))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// parseDecodeOptions applies the formats, try_harder and pure_barcode fields.
func (s *Server) parseDecodeOptions(r *http.Request) (barcode.Options, error) {
	opts := s.decodeOpts
	opts.PointCallback = nil
	if v := r.FormValue("formats"); v != "" {
		formats, err := barcode.ParseFormats(v)
		if err != nil {
			return barcode.Options{}, badParam("formats", err.Error())
		}
		if err := barcode.CheckDecodable(formats); err != nil {
			return barcode.Options{}, err
		}
		opts.Formats = formats
	}
	for _, p := range []struct {
		name string
		dst  *bool
	}{
		{"try_harder", &opts.TryHarder},
		{"pure_barcode", &opts.PureBarcode},
	} {
		v := r.FormValue(p.name)
		if v == "" {
			continue
		}
		on, err := strconv.ParseBool(v)
		if err != nil {
			return barcode.Options{}, badParam(p.name, "must be a boolean")
		}
		*p.dst = on
	}
	if v := r.FormValue("charset"); v != "" {
		opts.CharacterSet = strings.TrimSpace(v)
	}
	return opts, nil
}

func badParam(field, reason string) error {
	return &barcode.RequestError{Field: field, Reason: reason}
}

// statusFor maps the error taxonomy to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, barcode.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, barcode.ErrEncoding):
		return http.StatusUnprocessableEntity, "encoding_failed"
	case barcode.IsDecodeMiss(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError writes err as a JSON error response with the mapped status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusNotFound {
		msg = "No barcode found"
	}
	s.writeErrorResponse(w, code, msg, status)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, code, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: code, Message: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
