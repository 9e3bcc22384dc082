package server

import (
	"bytes"
	"context"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/camera"
	"github.com/MeKo-Tech/barcodekit/internal/capture"
	"github.com/MeKo-Tech/barcodekit/internal/generate"
	"github.com/MeKo-Tech/barcodekit/internal/render"
)

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  10,
		Capture:     capture.DefaultConfig(),
		Camera:      camera.DefaultSettings(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// qrPNG renders text as a PNG QR code.
func qrPNG(t *testing.T, text string) []byte {
	t.Helper()
	req, err := generate.NewRequestBuilder().WithText(text).WithSize(240, 240).Build()
	require.NoError(t, err)
	buf, err := generate.NewGenerator(nil).Generate(context.Background(), req)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, render.Encode(&out, buf.Image(), render.PNG))
	return out.Bytes()
}

func blankPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 120, 120))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var out bytes.Buffer
	require.NoError(t, render.Encode(&out, img, render.PNG))
	return out.Bytes()
}

// multipartRequest builds a POST with the image under field and extra values.
func multipartRequest(t *testing.T, target, field string, data []byte, values map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		fw, err := mw.CreateFormFile(field, "frame.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBytes(t *testing.T, data []byte) []barcode.Result {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	res, err := barcode.NewDecoder().Decode(context.Background(), img, barcode.Options{Formats: []barcode.Format{barcode.FormatQR}})
	require.NoError(t, err)
	return res
}
