package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/barcodekit/internal/utils"
)

// DefaultFrameInterval approximates a 10 fps preview.
const DefaultFrameInterval = 100 * time.Millisecond

// SequenceSource replays a fixed list of images as preview frames, at most one
// per frame interval.
type SequenceSource struct {
	name     string
	frames   []image.Image
	interval time.Duration
	loop     bool
	settings Settings
	safeMode bool

	mu         sync.Mutex
	params     Parameters
	open       bool
	previewing bool
	next       int
	seq        uint64
	last       time.Time
	pending    *time.Timer
	requests   uint64
	exhausted  chan struct{}
	done       bool
	exhaust    sync.Once
}

// SequenceOption configures a SequenceSource.
type SequenceOption func(*SequenceSource)

// WithFrameInterval sets the minimum time between delivered frames.
func WithFrameInterval(d time.Duration) SequenceOption {
	return func(s *SequenceSource) {
		if d >= 0 {
			s.interval = d
		}
	}
}

// WithLoop restarts from the first frame after the last one.
func WithLoop(loop bool) SequenceOption {
	return func(s *SequenceSource) { s.loop = loop }
}

// WithSettings sets the camera settings applied on Open.
func WithSettings(settings Settings, safeMode bool) SequenceOption {
	return func(s *SequenceSource) {
		s.settings = settings
		s.safeMode = safeMode
	}
}

// WithName sets the name reported in errors and logs.
func WithName(name string) SequenceOption {
	return func(s *SequenceSource) { s.name = name }
}

// NewSequenceSource replays frames.
func NewSequenceSource(frames []image.Image, opts ...SequenceOption) *SequenceSource {
	s := &SequenceSource{
		name:      "sequence",
		frames:    frames,
		interval:  DefaultFrameInterval,
		settings:  DefaultSettings(),
		params:    SoftwareParameters(),
		exhausted: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LoadSequence reads image files into a SequenceSource. Unreadable files fail
// the whole load.
func LoadSequence(paths []string, opts ...SequenceOption) (*SequenceSource, error) {
	frames := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		img, _, err := utils.LoadImage(p)
		if err != nil {
			return nil, fmt.Errorf("load frame %s: %w", p, err)
		}
		frames = append(frames, img)
	}
	return NewSequenceSource(frames, opts...), nil
}

// Open configures parameters. A sequence without frames cannot be opened.
func (s *SequenceSource) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &OpenError{Source: s.name, Err: err}
	}
	if len(s.frames) == 0 {
		return &OpenError{Source: s.name, Err: errors.New("no frames")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}
	Configure(&s.params, s.settings, s.safeMode)
	s.open = true
	slog.Debug("Sequence source opened", "source", s.name, "frames", len(s.frames), "interval", s.interval)
	return nil
}

// Close stops preview and releases the source.
func (s *SequenceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.open = false
	return nil
}

// IsOpen reports whether Open succeeded and Close was not called since.
func (s *SequenceSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// StartPreview enables frame delivery.
func (s *SequenceSource) StartPreview() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errors.New("camera: preview on closed source")
	}
	s.previewing = true
	return nil
}

// StopPreview disables frame delivery and drops a pending request.
func (s *SequenceSource) StopPreview() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return nil
}

func (s *SequenceSource) stopLocked() {
	s.previewing = false
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// RequestFrame delivers the next frame once the frame interval has passed
// since the previous delivery. A non-looping sequence delivers nothing after
// its last frame; the first request past the end closes Exhausted.
func (s *SequenceSource) RequestFrame(fn func(Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		s.exhaust.Do(func() { close(s.exhausted) })
		return
	}
	if !s.previewing || s.pending != nil {
		return
	}
	delay := time.Until(s.last.Add(s.interval))
	if delay < 0 {
		delay = 0
	}
	s.requests++
	id := s.requests
	s.pending = time.AfterFunc(delay, func() { s.deliver(id, fn) })
}

func (s *SequenceSource) deliver(id uint64, fn func(Frame)) {
	s.mu.Lock()
	if s.pending == nil || s.requests != id || !s.previewing {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	frame := Frame{Image: s.frames[s.next], Seq: s.seq, Timestamp: time.Now()}
	s.seq++
	s.next++
	if s.next == len(s.frames) {
		if s.loop {
			s.next = 0
		} else {
			s.done = true
		}
	}
	s.last = frame.Timestamp
	s.mu.Unlock()

	fn(frame)
}

// Exhausted is closed once a frame is requested after a non-looping sequence
// ran out, which means every frame has been fully consumed.
func (s *SequenceSource) Exhausted() <-chan struct{} { return s.exhausted }

// Torch reports whether the simulated flash is lit.
func (s *SequenceSource) Torch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params.TorchOn()
}

// SetTorch switches the simulated flash.
func (s *SequenceSource) SetTorch(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errors.New("camera: torch on closed source")
	}
	SetTorch(&s.params, s.settings, on)
	return nil
}

// Parameters returns a copy of the current parameters.
func (s *SequenceSource) Parameters() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}
