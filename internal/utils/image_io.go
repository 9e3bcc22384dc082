package utils

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif"}

// ImageError reports a failed image load or decode.
type ImageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *ImageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("image %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("image %s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// DecodeImage decodes a PNG, JPEG, BMP or GIF stream.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", &ImageError{Operation: "decode", Err: err}
	}
	if b := img.Bounds(); b.Empty() {
		return nil, "", &ImageError{Operation: "decode", Err: errors.New("empty image")}
	}
	return img, format, nil
}

// LoadImage opens and decodes an image file, returning the image and metadata.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, ImageMetadata{}, &ImageError{Operation: "load", Path: path, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageError{Operation: "load", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, ImageMetadata{}, &ImageError{Operation: "load", Path: path, Err: err}
	}

	img, format, err := DecodeImage(f)
	if err != nil {
		var ie *ImageError
		if errors.As(err, &ie) {
			ie.Path = path
		}
		return nil, ImageMetadata{}, err
	}

	b := img.Bounds()
	return img, ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}
