package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "golang.org/x/image/bmp"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
)

func TestServer_HealthHandler(t *testing.T) {
	server := newTestServer(t, nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request success", http.MethodGet, http.StatusOK},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.NotEmpty(t, response.Time)
			assert.Equal(t, 0, response.Sessions)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestServer_FormatsHandler(t *testing.T) {
	server := newTestServer(t, nil)
	w := httptest.NewRecorder()
	server.formatsHandler(w, httptest.NewRequest(http.MethodGet, "/formats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var response FormatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, len(barcode.AllFormats()), response.Count)

	byName := make(map[string]FormatInfo)
	for _, f := range response.Formats {
		byName[f.Name] = f
	}
	assert.Equal(t, FormatInfo{Name: "qr", AttrName: "qr_code", AttrID: 5, Encode: true, Decode: true}, byName["qr"])
	assert.False(t, byName["aztec"].Encode)
	assert.True(t, byName["aztec"].Decode)
	assert.True(t, byName["ean13"].Linear)
	assert.False(t, byName["pdf417"].Decode)
	assert.False(t, byName["pdf417"].Encode)
}

func TestServer_GenerateHandler(t *testing.T) {
	server := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/barcode/generate?text=hello+world", nil)
	w := httptest.NewRecorder()
	server.generateHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	cfg, _, err := image.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 300, cfg.Height)

	results := decodeBytes(t, w.Body.Bytes())
	require.Len(t, results, 1)
	assert.Equal(t, "hello world", results[0].Value)
}

func TestServer_GenerateHandlerOptions(t *testing.T) {
	server := newTestServer(t, nil)

	form := multipartRequest(t, "/barcode/generate", "unused", nil, map[string]string{
		"text": "ABC-123", "format": "code128", "width": "200", "height": "60",
		"output": "bmp", "scale": "2", "fg": "#000080",
	})
	w := httptest.NewRecorder()
	server.generateHandler(w, form)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/bmp", w.Header().Get("Content-Type"))
	cfg, format, err := image.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "bmp", format)
	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 120, cfg.Height)
}

func TestServer_GenerateHandlerErrors(t *testing.T) {
	server := newTestServer(t, nil)

	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"missing text", "", http.StatusBadRequest, "invalid_request"},
		{"unknown format", "text=a&format=morse", http.StatusBadRequest, "invalid_request"},
		{"non numeric width", "text=a&width=wide", http.StatusBadRequest, "invalid_request"},
		{"zero height", "text=a&height=0", http.StatusBadRequest, "invalid_request"},
		{"bad colour", "text=a&bg=blue", http.StatusBadRequest, "invalid_request"},
		{"bad output", "text=a&output=tiff", http.StatusBadRequest, "invalid_request"},
		{"bad scale", "text=a&scale=99", http.StatusBadRequest, "invalid_request"},
		{"bad charset", "text=a&charset=no-such-charset", http.StatusBadRequest, "invalid_request"},
		{"charset without ECI", "text=a&charset=KOI8-R", http.StatusBadRequest, "invalid_request"},
		{"letters in ean13", "text=ABCDEFGHIJKLM&format=ean13", http.StatusUnprocessableEntity, "encoding_failed"},
		{"decode only format", "text=a&format=aztec", http.StatusUnprocessableEntity, "encoding_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.generateHandler(w, httptest.NewRequest(http.MethodGet, "/barcode/generate?"+tt.query, nil))

			assert.Equal(t, tt.status, w.Code)
			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.False(t, response.Success)
			assert.Equal(t, tt.code, response.Error)
			assert.NotEmpty(t, response.Message)
		})
	}

	w := httptest.NewRecorder()
	server.generateHandler(w, httptest.NewRequest(http.MethodDelete, "/barcode/generate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_DecodeHandler(t *testing.T) {
	server := newTestServer(t, nil)

	req := multipartRequest(t, "/barcode/decode", "image", qrPNG(t, "decode me"), map[string]string{"formats": "qr", "try_harder": "true"})
	w := httptest.NewRecorder()
	server.decodeHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var response DecodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	require.Len(t, response.Results, 1)
	assert.Equal(t, "decode me", response.Results[0].Text)
	assert.Equal(t, "qr", response.Results[0].Format)
	assert.Equal(t, 5, response.Results[0].AttrID)
	assert.NotEmpty(t, response.Results[0].Points)
	assert.Equal(t, 240, response.Width)
}

func TestServer_DecodeHandlerErrors(t *testing.T) {
	server := newTestServer(t, nil)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{"no symbol", multipartRequest(t, "/barcode/decode", "image", blankPNG(t), nil), http.StatusNotFound, "not_found"},
		{"no file", multipartRequest(t, "/barcode/decode", "image", nil, map[string]string{"x": "y"}), http.StatusBadRequest, "invalid_request"},
		{"not an image", multipartRequest(t, "/barcode/decode", "image", []byte("garbage"), nil), http.StatusBadRequest, "invalid_request"},
		{"bad formats", multipartRequest(t, "/barcode/decode", "image", blankPNG(t), map[string]string{"formats": "qr,morse"}), http.StatusBadRequest, "invalid_request"},
		{"undecodable format", multipartRequest(t, "/barcode/decode", "image", blankPNG(t), map[string]string{"formats": "pdf417"}), http.StatusBadRequest, "invalid_request"},
		{"bad flag", multipartRequest(t, "/barcode/decode", "image", blankPNG(t), map[string]string{"try_harder": "maybe"}), http.StatusBadRequest, "invalid_request"},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/barcode/decode", bytes.NewReader([]byte("x"))), http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.decodeHandler(w, tt.req)

			assert.Equal(t, tt.status, w.Code)
			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.code, response.Error)
		})
	}

	w := httptest.NewRecorder()
	server.decodeHandler(w, httptest.NewRequest(http.MethodGet, "/barcode/decode", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_DecodeHandlerTooLarge(t *testing.T) {
	server := newTestServer(t, func(c *Config) { c.MaxUploadMB = 1 })
	big := make([]byte, 2*1024*1024)
	w := httptest.NewRecorder()
	server.decodeHandler(w, multipartRequest(t, "/barcode/decode", "image", big, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

type failingDecoder struct{ err error }

func (d failingDecoder) Decode(context.Context, image.Image, barcode.Options) ([]barcode.Result, error) {
	return nil, d.err
}

func TestServer_DecodeHandlerBackendError(t *testing.T) {
	server := newTestServer(t, func(c *Config) { c.Decoder = failingDecoder{err: errors.New("backend exploded")} })
	w := httptest.NewRecorder()
	server.decodeHandler(w, multipartRequest(t, "/barcode/decode", "image", blankPNG(t), nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&barcode.RequestError{Field: "text", Reason: "must not be empty"}, http.StatusBadRequest},
		{&barcode.EncodingError{Format: barcode.FormatEAN13, Err: errors.New("bad digits")}, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: nothing", barcode.ErrDecodeMiss), http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestServer_Routes(t *testing.T) {
	server := newTestServer(t, nil)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	for _, path := range []string{"/health", "/formats", "/barcode/generate?text=x", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
