package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// ErrCameraOpen marks a failure to acquire the frame source.
var ErrCameraOpen = errors.New("camera: open failed")

// ErrClosed is returned when pushing to a closed source.
var ErrClosed = errors.New("camera: source closed")

// OpenError reports why a source could not be opened.
type OpenError struct {
	Source string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open camera %s: %v", e.Source, e.Err)
}

// Is lets errors.Is match ErrCameraOpen.
func (e *OpenError) Is(target error) bool { return target == ErrCameraOpen }

func (e *OpenError) Unwrap() error { return e.Err }

// Frame is one preview image.
type Frame struct {
	Image     image.Image
	Seq       uint64
	Timestamp time.Time
}

// Source is a camera-like producer of preview frames.
//
// RequestFrame is one-shot: fn is called at most once, on a goroutine owned by
// the source, with the next preview frame. Requests made while preview is
// stopped are dropped.
type Source interface {
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool
	StartPreview() error
	StopPreview() error
	RequestFrame(fn func(Frame))
	Torch() bool
	SetTorch(on bool) error
}
