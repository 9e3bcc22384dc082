package camera

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"
)

// StreamSource delivers frames pushed by a producer. Only the newest unclaimed
// frame is kept; older ones are dropped.
type StreamSource struct {
	name     string
	settings Settings

	mu         sync.Mutex
	params     Parameters
	open       bool
	closed     bool
	previewing bool
	latest     *Frame
	waiting    func(Frame)
	seq        uint64
	dropped    uint64
}

// NewStreamSource returns a source fed by Push.
func NewStreamSource(name string, settings Settings) *StreamSource {
	return &StreamSource{name: name, settings: settings, params: SoftwareParameters()}
}

// Open configures parameters.
func (s *StreamSource) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &OpenError{Source: s.name, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &OpenError{Source: s.name, Err: ErrClosed}
	}
	if !s.open {
		Configure(&s.params, s.settings, false)
		s.open = true
	}
	return nil
}

// Close releases the source. Later pushes fail with ErrClosed.
func (s *StreamSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.closed = true
	s.previewing = false
	s.latest = nil
	s.waiting = nil
	return nil
}

// IsOpen reports whether the source is open.
func (s *StreamSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// StartPreview enables delivery.
func (s *StreamSource) StartPreview() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errors.New("camera: preview on closed source")
	}
	s.previewing = true
	return nil
}

// StopPreview disables delivery and drops the pending request.
func (s *StreamSource) StopPreview() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previewing = false
	s.waiting = nil
	return nil
}

// Push offers a frame. It is handed to a waiting request right away,
// otherwise it replaces any frame not yet claimed.
func (s *StreamSource) Push(img image.Image) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	f := Frame{Image: img, Seq: s.seq, Timestamp: time.Now()}
	s.seq++
	fn := s.waiting
	if fn != nil && s.previewing {
		s.waiting = nil
		s.mu.Unlock()
		fn(f)
		return nil
	}
	if s.latest != nil {
		s.dropped++
	}
	s.latest = &f
	s.mu.Unlock()
	return nil
}

// RequestFrame claims the newest pushed frame, or waits for the next push.
// A buffered frame is delivered on a new goroutine.
func (s *StreamSource) RequestFrame(fn func(Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.previewing {
		return
	}
	if s.latest != nil {
		f := *s.latest
		s.latest = nil
		go fn(f)
		return
	}
	s.waiting = fn
}

// Dropped returns how many pushed frames were replaced before being claimed.
func (s *StreamSource) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Torch reports whether the simulated flash is lit.
func (s *StreamSource) Torch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params.TorchOn()
}

// SetTorch switches the simulated flash.
func (s *StreamSource) SetTorch(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errors.New("camera: torch on closed source")
	}
	SetTorch(&s.params, s.settings, on)
	return nil
}
