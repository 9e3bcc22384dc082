package render

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
)

// OutputFormat selects the encoded image type.
type OutputFormat string

const (
	PNG  OutputFormat = "png"
	BMP  OutputFormat = "bmp"
	JPEG OutputFormat = "jpeg"
)

// DefaultJPEGQuality is used for JPEG output.
const DefaultJPEGQuality = 95

// ParseOutputFormat accepts a format name or file extension ("png", ".jpg").
// Empty input selects PNG.
func ParseOutputFormat(s string) (OutputFormat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PNG, nil
	}
	if !strings.HasPrefix(s, ".") {
		s = "." + s
	}
	f, err := imaging.FormatFromExtension(s)
	if err != nil {
		return "", fmt.Errorf("unsupported output format %q", strings.TrimPrefix(s, "."))
	}
	switch f {
	case imaging.PNG:
		return PNG, nil
	case imaging.BMP:
		return BMP, nil
	case imaging.JPEG:
		return JPEG, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", strings.TrimPrefix(s, "."))
	}
}

// ContentType returns the MIME type for the format.
func (f OutputFormat) ContentType() string {
	switch f {
	case BMP:
		return "image/bmp"
	case JPEG:
		return "image/jpeg"
	default:
		return "image/png"
	}
}

// Extension returns the file extension including the dot.
func (f OutputFormat) Extension() string {
	if f == JPEG {
		return ".jpg"
	}
	if f == "" {
		return ".png"
	}
	return "." + string(f)
}

// Encode writes img in the given format.
func Encode(w io.Writer, img image.Image, format OutputFormat) error {
	switch format {
	case BMP:
		return bmp.Encode(w, img)
	case JPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(DefaultJPEGQuality))
	case PNG, "":
		return imaging.Encode(w, img, imaging.PNG)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Scale enlarges img by an integer factor keeping module edges sharp.
func Scale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*factor, b.Dy()*factor, imaging.NearestNeighbor)
}
