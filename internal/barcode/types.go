package barcode

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatAztec
	FormatPDF417
	FormatCode128
	FormatCode39
	FormatCode93
	FormatEAN8
	FormatEAN13
	FormatUPCA
	FormatUPCE
	FormatITF
	FormatCodabar
)

// DefaultFormat is used when a request does not name a symbology.
const DefaultFormat = FormatQR

// formatInfo describes one symbology. Attribute names and ids are persisted in
// settings files and must not be renumbered.
type formatInfo struct {
	name     string
	attrName string
	attrID   int
	aliases  []string
	oneD     bool
}

var formatTable = map[Format]formatInfo{
	FormatEAN8:       {name: "ean8", attrName: "ean_8", attrID: 1, aliases: []string{"ean-8"}, oneD: true},
	FormatUPCE:       {name: "upce", attrName: "upc_e", attrID: 2, aliases: []string{"upc-e"}, oneD: true},
	FormatEAN13:      {name: "ean13", attrName: "ean_13", attrID: 3, aliases: []string{"ean-13"}, oneD: true},
	FormatUPCA:       {name: "upca", attrName: "upc_a", attrID: 4, aliases: []string{"upc-a"}, oneD: true},
	FormatQR:         {name: "qr", attrName: "qr_code", attrID: 5, aliases: []string{"qrcode", "qr-code"}},
	FormatCode39:     {name: "code39", attrName: "code_39", attrID: 6, aliases: []string{"code-39"}, oneD: true},
	FormatCode128:    {name: "code128", attrName: "code_128", attrID: 7, aliases: []string{"code-128"}, oneD: true},
	FormatITF:        {name: "itf", attrName: "itf", attrID: 8, aliases: []string{"interleaved2of5", "i2/5"}, oneD: true},
	FormatPDF417:     {name: "pdf417", attrName: "pdf_417", attrID: 9, aliases: []string{"pdf-417"}},
	FormatCodabar:    {name: "codabar", attrName: "codabar", attrID: 10, oneD: true},
	FormatDataMatrix: {name: "datamatrix", attrName: "data_matrix", attrID: 11, aliases: []string{"data-matrix"}},
	FormatAztec:      {name: "aztec", attrName: "aztec", attrID: 12},
	FormatCode93:     {name: "code93", attrName: "code_93", attrID: 13, aliases: []string{"code-93"}, oneD: true},
}

// AllFormats lists every known symbology in attribute id order.
func AllFormats() []Format {
	return []Format{
		FormatEAN8, FormatUPCE, FormatEAN13, FormatUPCA, FormatQR, FormatCode39, FormatCode128,
		FormatITF, FormatPDF417, FormatCodabar, FormatDataMatrix, FormatAztec, FormatCode93,
	}
}

// String returns the canonical lower-case name of the format.
func (f Format) String() string {
	if info, ok := formatTable[f]; ok {
		return info.name
	}
	return "unknown"
}

// AttrName returns the layout attribute name of the format ("qr_code").
func (f Format) AttrName() string {
	return formatTable[f].attrName
}

// AttrID returns the layout attribute id of the format, 0 if unknown.
func (f Format) AttrID() int {
	return formatTable[f].attrID
}

// Is1D reports whether the format is a linear symbology.
func (f Format) Is1D() bool {
	return formatTable[f].oneD
}

// ParseFormat parses a format name. Canonical names, aliases and attribute
// names are accepted case-insensitively.
func ParseFormat(s string) (Format, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return FormatUnknown, false
	}
	for f, info := range formatTable {
		if key == info.name || key == info.attrName {
			return f, true
		}
		for _, a := range info.aliases {
			if key == a {
				return f, true
			}
		}
	}
	return FormatUnknown, false
}

// ParseFormats parses a comma separated list of format names.
func ParseFormats(csv string) ([]Format, error) {
	var out []Format
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, ok := ParseFormat(part)
		if !ok {
			return nil, fmt.Errorf("unknown barcode format: %q", strings.TrimSpace(part))
		}
		out = append(out, f)
	}
	return out, nil
}

// LookupByAttrID resolves a layout attribute id.
func LookupByAttrID(id int) (Format, error) {
	for f, info := range formatTable {
		if info.attrID == id {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("format attribute id out of range: %d", id)
}

// LookupByAttrName resolves a layout attribute name.
func LookupByAttrName(name string) (Format, error) {
	for f, info := range formatTable {
		if info.attrName == name {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("format attribute name unknown: %q", name)
}

// Point is an integer point in image coordinates.
type Point struct {
	X int
	Y int
}

// Result represents a decoded barcode.
type Result struct {
	Type      Format
	Value     string
	Raw       []byte
	Points    []Point         // Corner or finder points if available
	BBox      image.Rectangle // Bounding box if derivable from points
	Timestamp time.Time
}

// Options controls backend decoding behavior.
type Options struct {
	// Formats constrains the set of symbologies to search.
	Formats []Format

	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool

	// PureBarcode hints that the image contains only an unrotated symbol.
	PureBarcode bool

	// CharacterSet names the encoding of byte segments when the symbol does not say.
	CharacterSet string

	// ROI optionally restricts decoding to a sub-rectangle of the image.
	// If zero-sized or out of bounds it is ignored.
	ROI image.Rectangle

	// PointCallback, when set, observes candidate finder points while decoding.
	// It runs on the decoding goroutine.
	PointCallback func(Point)
}

// Decoder is a pluggable barcode decoder implementation.
type Decoder interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// EncodeHints carries optional encoder parameters.
type EncodeHints struct {
	CharacterSet string
	// Margin is the quiet zone in modules; nil keeps the symbology default.
	Margin *int
}

// Encoder produces symbol matrices from text.
type Encoder interface {
	Encode(text string, format Format, width, height int, hints EncodeHints) (*Matrix, error)
}

// rectFromPoints returns the bounding rectangle of pts.
func rectFromPoints(pts []Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
