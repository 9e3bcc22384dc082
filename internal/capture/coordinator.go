package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/camera"
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("capture: coordinator already started")

// ErrNotRunning is returned by operations that need a running session.
var ErrNotRunning = errors.New("capture: coordinator not running")

const pointBuffer = 32

// Coordinator drives one capture session.
type Coordinator struct {
	cfg      Config
	listener Listener
	points   PointListener

	state atomic.Int32

	// mu guards the lifecycle flags. Start sets running only while stopping
	// is false; Stop sets stopping and then waits on startDone.
	mu         sync.Mutex
	started    bool
	running    bool
	stopping   bool
	openCancel context.CancelFunc
	startDone  chan struct{}
	restart    *time.Duration // pending restart request, consumed by the loop
	src        camera.Source

	frames     chan camera.Frame
	outcomes   chan Outcome
	pointCh    chan barcode.Point
	wake       chan struct{}
	requests   chan decodeRequest
	quitLoop   chan struct{}
	loopDone   chan struct{}
	quitWorker chan struct{}
	worker     *worker
	cancel     context.CancelFunc

	stopOnce sync.Once
}

// New returns an idle coordinator. If l also implements PointListener it
// receives candidate result points.
func New(cfg Config, l Listener) *Coordinator {
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}
	if cfg.RestartDelay < 0 {
		cfg.RestartDelay = 0
	}
	c := &Coordinator{
		cfg:        cfg,
		listener:   l,
		frames:     make(chan camera.Frame),
		outcomes:   make(chan Outcome, 1),
		pointCh:    make(chan barcode.Point, pointBuffer),
		wake:       make(chan struct{}, 1),
		requests:   make(chan decodeRequest, 1),
		quitLoop:   make(chan struct{}),
		loopDone:   make(chan struct{}),
		quitWorker: make(chan struct{}),
		startDone:  make(chan struct{}),
	}
	if pl, ok := l.(PointListener); ok {
		c.points = pl
	}
	return c
}

// State returns the current state.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Start opens src, starts the decode worker and the event loop, starts
// preview and requests the first frame. ctx bounds opening the camera; the
// session itself runs until Stop. An open failure is reported to
// OnFatalError once and returned, and the session is then Done. A Stop that
// overlaps Start cancels the open; Start then releases the camera, skips the
// Listener and returns ErrNotRunning.
func (c *Coordinator) Start(ctx context.Context, src camera.Source, dec barcode.Decoder) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.src = src
	openCtx, openCancel := context.WithCancel(ctx)
	c.openCancel = openCancel
	c.mu.Unlock()
	defer close(c.startDone)
	defer openCancel()

	if err := src.Open(openCtx); err != nil {
		if !errors.Is(err, camera.ErrCameraOpen) {
			err = &camera.OpenError{Source: fmt.Sprintf("%T", src), Err: err}
		}
		return c.fail(err)
	}
	if err := src.StartPreview(); err != nil {
		_ = src.Close()
		return c.fail(fmt.Errorf("start preview: %w", err))
	}

	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		c.abandonOpened(src)
		return ErrNotRunning
	}
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.worker = &worker{
		dec:       dec,
		opts:      c.cfg.DecodeOptions,
		thumbSize: c.cfg.ThumbnailSize,
		requests:  c.requests,
		outcomes:  c.outcomes,
		points:    c.pointCh,
		quit:      c.quitWorker,
		done:      make(chan struct{}),
	}
	go c.worker.run(wctx)
	go c.loop()
	c.state.Store(int32(StatePreviewing))
	c.running = true
	c.mu.Unlock()

	activeSessions.Inc()
	slog.Debug("Capture session started")
	src.RequestFrame(c.onFrame)
	return nil
}

// fail ends a session that never ran. The Listener hears about it unless a
// Stop already began.
func (c *Coordinator) fail(err error) error {
	c.mu.Lock()
	stopping := c.stopping
	c.state.Store(int32(StateDone))
	c.mu.Unlock()
	close(c.loopDone)

	if stopping {
		slog.Debug("Capture session stopped while opening", "error", err)
		return ErrNotRunning
	}
	slog.Error("Capture session failed", "error", err)
	if c.listener != nil {
		c.listener.OnFatalError(err)
	}
	return err
}

// abandonOpened releases a camera that finished opening after Stop.
func (c *Coordinator) abandonOpened(src camera.Source) {
	close(c.loopDone)
	if err := src.StopPreview(); err != nil {
		slog.Warn("Stop preview failed", "error", err)
	}
	if err := src.Close(); err != nil {
		slog.Warn("Camera close failed", "error", err)
	}
	slog.Debug("Capture session stopped while opening")
}

// onFrame runs on the camera's goroutine.
func (c *Coordinator) onFrame(f camera.Frame) {
	select {
	case c.frames <- f:
	case <-c.loopDone:
	}
}

func (c *Coordinator) loop() {
	defer close(c.loopDone)
	var restartTimer *time.Timer
	var restartC <-chan time.Time
	defer func() {
		if restartTimer != nil {
			restartTimer.Stop()
		}
	}()

	for {
		select {
		case <-c.quitLoop:
			return

		case f := <-c.frames:
			if c.State() != StatePreviewing {
				continue
			}
			c.state.Store(int32(StateAwaitingDecode))
			c.requests <- decodeRequest{frame: f}

		case out := <-c.outcomes:
			switch o := out.(type) {
			case Success:
				c.state.Store(int32(StateSucceeded))
				if c.listener != nil {
					c.listener.OnDecoded(o.Result, o.Thumbnail, o.Scale)
				}
				if c.cfg.AutoRestart {
					c.RestartAfterDelay(c.cfg.RestartDelay)
				}
			case Miss:
				c.state.Store(int32(StatePreviewing))
				c.src.RequestFrame(c.onFrame)
			}

		case p := <-c.pointCh:
			if c.points != nil {
				c.points.OnResultPoint(p)
			}

		case <-c.wake:
			c.mu.Lock()
			d := c.restart
			c.restart = nil
			c.mu.Unlock()
			if d == nil || c.State() != StateSucceeded {
				continue
			}
			if restartTimer != nil {
				restartTimer.Stop()
				restartC = nil
			}
			if *d == 0 {
				c.resume()
				continue
			}
			restartTimer = time.NewTimer(*d)
			restartC = restartTimer.C

		case <-restartC:
			restartTimer, restartC = nil, nil
			if c.State() == StateSucceeded {
				c.resume()
			}
		}
	}
}

func (c *Coordinator) resume() {
	c.state.Store(int32(StatePreviewing))
	c.src.RequestFrame(c.onFrame)
}

// RestartAfterDelay resumes frame submission d after a success. It is
// ignored unless the session is in StateSucceeded when the loop handles it.
// It never blocks and may be called from a Listener callback.
func (c *Coordinator) RestartAfterDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	switch c.State() {
	case StateIdle, StateDone:
		return
	}
	c.mu.Lock()
	c.restart = &d
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// ToggleTorch flips the camera torch and returns the new state.
func (c *Coordinator) ToggleTorch() (bool, error) {
	switch c.State() {
	case StateIdle, StateDone:
		return false, ErrNotRunning
	}
	on := !c.src.Torch()
	if err := c.src.SetTorch(on); err != nil {
		return !on, fmt.Errorf("set torch: %w", err)
	}
	return on, nil
}

// Stop ends the session. It stops the event loop, stops preview, asks the
// worker to quit and waits at most JoinTimeout for it, discards any outcome
// the worker already produced and closes the camera. No Listener method is
// called after Stop returns. Stop during Start cancels the Open context and
// waits at most JoinTimeout for Start to return; Start then closes whatever it
// opened and returns ErrNotRunning. Stop is idempotent and must not be called
// from a Listener callback.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(c.stop)
}

func (c *Coordinator) stop() {
	c.mu.Lock()
	entered := c.started
	c.started = true // a stopped coordinator cannot be started
	c.stopping = true
	openCancel := c.openCancel
	prev := State(c.state.Swap(int32(StateDone)))
	c.mu.Unlock()

	if !entered {
		return
	}
	if openCancel != nil {
		openCancel()
	}
	if !c.awaitStart() {
		return
	}
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return
	}

	close(c.quitLoop)
	<-c.loopDone
	// The loop may have written a transition after the swap above.
	c.state.Store(int32(StateDone))

	if err := c.src.StopPreview(); err != nil {
		slog.Warn("Stop preview failed", "error", err)
	}

	close(c.quitWorker)
	c.cancel()
	timer := time.NewTimer(c.cfg.JoinTimeout)
	select {
	case <-c.worker.done:
		timer.Stop()
	case <-timer.C:
		slog.Warn("Decode worker did not stop in time, abandoning it", "timeout", c.cfg.JoinTimeout)
	}

	c.purge()
	if err := c.src.Close(); err != nil {
		slog.Warn("Camera close failed", "error", err)
	}
	activeSessions.Dec()
	slog.Debug("Capture session stopped", "previous_state", prev.String())
}

// awaitStart waits at most JoinTimeout for a concurrent Start to return.
// Past the bound Start finds stopping set and cleans up by itself.
func (c *Coordinator) awaitStart() bool {
	timer := time.NewTimer(c.cfg.JoinTimeout)
	defer timer.Stop()
	select {
	case <-c.startDone:
		return true
	case <-timer.C:
		slog.Warn("Camera did not finish opening in time, abandoning it", "timeout", c.cfg.JoinTimeout)
		return false
	}
}

// purge drops messages the worker queued before quitting.
func (c *Coordinator) purge() {
	for {
		select {
		case <-c.outcomes:
		case <-c.pointCh:
		default:
			return
		}
	}
}
