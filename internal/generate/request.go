package generate

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/render"
)

// DefaultCharacterSet is used when a request does not name one.
const DefaultCharacterSet = "ISO-8859-1"

// Request describes one barcode image to generate. Build requests with
// RequestBuilder; a built Request is a plain value and is never mutated.
type Request struct {
	Text         string
	Format       barcode.Format
	Width        int
	Height       int
	CharacterSet string
	Foreground   render.Color
	Background   render.Color
	// Margin is the quiet zone in modules; nil keeps the symbology default.
	Margin *int
}

// Validate checks the request invariants. Text is checked first so an empty
// text is always reported as such.
func (r Request) Validate() error {
	if r.Text == "" {
		return &barcode.RequestError{Field: "text", Reason: "must not be empty"}
	}
	if r.Width <= 0 {
		return &barcode.RequestError{Field: "width", Reason: "must be positive"}
	}
	if r.Height <= 0 {
		return &barcode.RequestError{Field: "height", Reason: "must be positive"}
	}
	if r.Margin != nil && *r.Margin < 0 {
		return &barcode.RequestError{Field: "margin", Reason: "must not be negative"}
	}
	if r.CharacterSet != "" {
		if _, err := canonicalCharset(r.CharacterSet); err != nil {
			return &barcode.RequestError{Field: "character set", Reason: err.Error()}
		}
	}
	return nil
}

// hints returns the encoder hints for the request.
func (r Request) hints() barcode.EncodeHints {
	return barcode.EncodeHints{CharacterSet: r.CharacterSet, Margin: r.Margin}
}

var (
	errUnknownCharset     = errors.New("is not a registered IANA name")
	errUnsupportedCharset = errors.New("is not supported by the encoder")
)

// canonicalCharset resolves aliases such as "latin1" to the preferred MIME
// name, or the IANA name when there is none, and checks that the encoder
// can write it.
func canonicalCharset(name string) (string, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		// Encoder-only aliases such as "Cp1252" or "SJIS".
		if barcode.EncoderCharset(name) {
			return name, nil
		}
		if err != nil {
			return "", errUnknownCharset
		}
		return "", errUnsupportedCharset
	}
	for _, index := range []*ianaindex.Index{ianaindex.MIME, ianaindex.IANA} {
		canonical, err := index.Name(enc)
		if err == nil && barcode.EncoderCharset(canonical) {
			return canonical, nil
		}
	}
	return "", errUnsupportedCharset
}

// RequestBuilder assembles a Request with fluent setters.
type RequestBuilder struct {
	req       Request
	formatSet bool
	fgSet     bool
	bgSet     bool
}

// NewRequestBuilder returns an empty builder.
func NewRequestBuilder() *RequestBuilder { return &RequestBuilder{} }

// WithText sets the text to encode.
func (b *RequestBuilder) WithText(text string) *RequestBuilder {
	b.req.Text = text
	return b
}

// WithFormat sets the symbology.
func (b *RequestBuilder) WithFormat(f barcode.Format) *RequestBuilder {
	b.req.Format = f
	b.formatSet = f != barcode.FormatUnknown
	return b
}

// WithWidth sets the target width in pixels.
func (b *RequestBuilder) WithWidth(w int) *RequestBuilder {
	b.req.Width = w
	return b
}

// WithHeight sets the target height in pixels.
func (b *RequestBuilder) WithHeight(h int) *RequestBuilder {
	b.req.Height = h
	return b
}

// WithSize sets both target dimensions.
func (b *RequestBuilder) WithSize(w, h int) *RequestBuilder {
	return b.WithWidth(w).WithHeight(h)
}

// WithCharacterSet sets the character set used for byte segments.
func (b *RequestBuilder) WithCharacterSet(cs string) *RequestBuilder {
	b.req.CharacterSet = strings.TrimSpace(cs)
	return b
}

// WithForeground sets the colour of set modules.
func (b *RequestBuilder) WithForeground(c render.Color) *RequestBuilder {
	b.req.Foreground = c
	b.fgSet = true
	return b
}

// WithBackground sets the colour of unset modules.
func (b *RequestBuilder) WithBackground(c render.Color) *RequestBuilder {
	b.req.Background = c
	b.bgSet = true
	return b
}

// WithMargin sets the quiet zone in modules.
func (b *RequestBuilder) WithMargin(modules int) *RequestBuilder {
	m := modules
	b.req.Margin = &m
	return b
}

// Build applies defaults and validates. Errors wrap barcode.ErrInvalidRequest.
func (b *RequestBuilder) Build() (Request, error) {
	req := b.req
	if !b.formatSet {
		req.Format = barcode.DefaultFormat
	}
	if req.CharacterSet == "" {
		req.CharacterSet = DefaultCharacterSet
	}
	if !b.fgSet {
		req.Foreground = render.Black
	}
	if !b.bgSet {
		req.Background = render.White
	}
	if req.Margin != nil {
		m := *req.Margin
		req.Margin = &m
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	cs, _ := canonicalCharset(req.CharacterSet)
	req.CharacterSet = cs
	return req, nil
}
