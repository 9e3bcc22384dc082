package capture

import (
	"image"
	"time"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
)

// State is the capture session state.
type State int32

const (
	StateIdle State = iota
	StatePreviewing
	StateAwaitingDecode
	StateSucceeded
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreviewing:
		return "previewing"
	case StateAwaitingDecode:
		return "awaiting_decode"
	case StateSucceeded:
		return "succeeded"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Config controls a Coordinator.
type Config struct {
	// DecodeOptions are passed to every decode call. PointCallback is
	// replaced by the coordinator.
	DecodeOptions barcode.Options

	// AutoRestart resumes scanning RestartDelay after each success. When
	// false the consumer calls RestartAfterDelay.
	AutoRestart  bool
	RestartDelay time.Duration

	// JoinTimeout bounds how long Stop waits for the decode worker.
	JoinTimeout time.Duration

	// ThumbnailSize is the longest side of the thumbnail passed to OnDecoded.
	// Zero disables thumbnails.
	ThumbnailSize int
}

// DefaultJoinTimeout is used when Config.JoinTimeout is zero.
const DefaultJoinTimeout = 500 * time.Millisecond

// DefaultConfig returns a configuration that waits for the consumer to restart.
func DefaultConfig() Config {
	return Config{
		JoinTimeout:   DefaultJoinTimeout,
		ThumbnailSize: 256,
	}
}

// Listener receives session events. Methods run on the coordinator's loop
// goroutine and must not call Stop.
type Listener interface {
	// OnDecoded reports a decoded symbol with a greyscale thumbnail of the
	// frame; scale is thumbnail width divided by frame width.
	OnDecoded(result barcode.Result, thumbnail image.Image, scale float64)
	// OnFatalError reports a failure that ends the session, at most once.
	OnFatalError(err error)
}

// PointListener is optionally implemented by a Listener to observe candidate
// finder points while frames are decoded.
type PointListener interface {
	OnResultPoint(p barcode.Point)
}

// ListenerFuncs adapts plain functions to Listener and PointListener.
type ListenerFuncs struct {
	Decoded    func(result barcode.Result, thumbnail image.Image, scale float64)
	FatalError func(err error)
	Point      func(p barcode.Point)
}

func (l ListenerFuncs) OnDecoded(result barcode.Result, thumbnail image.Image, scale float64) {
	if l.Decoded != nil {
		l.Decoded(result, thumbnail, scale)
	}
}

func (l ListenerFuncs) OnFatalError(err error) {
	if l.FatalError != nil {
		l.FatalError(err)
	}
}

func (l ListenerFuncs) OnResultPoint(p barcode.Point) {
	if l.Point != nil {
		l.Point(p)
	}
}

// Outcome is the worker's answer to one decode request: Success or Miss.
type Outcome interface {
	isOutcome()
}

// Success carries a decoded symbol.
type Success struct {
	Result    barcode.Result
	Thumbnail image.Image
	Scale     float64
}

// Miss means nothing was decoded from the frame.
type Miss struct{}

func (Success) isOutcome() {}
func (Miss) isOutcome()    {}
