package barcode

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest marks render parameters rejected before encoding.
	ErrInvalidRequest = errors.New("barcode: invalid request")

	// ErrEncoding marks text the encoder cannot represent in the requested format.
	ErrEncoding = errors.New("barcode: encoding failed")

	// ErrDecodeMiss means no symbol was recognized. It is the steady state
	// while nothing is in view and is never surfaced to capture consumers.
	ErrDecodeMiss = errors.New("barcode: no symbol found")
)

// RequestError describes a rejected request field.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

// EncodingError wraps an encoder failure for a given format.
type EncodingError struct {
	Format Format
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

// Is lets errors.Is match both ErrEncoding and the wrapped cause.
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

func (e *EncodingError) Unwrap() error { return e.Err }

// IsDecodeMiss reports whether err means no symbol was found.
func IsDecodeMiss(err error) bool { return errors.Is(err, ErrDecodeMiss) }
