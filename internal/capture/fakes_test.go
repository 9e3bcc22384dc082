package capture

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/camera"
)

// fakeCamera records requests and delivers frames when the test says so.
type fakeCamera struct {
	openErr error
	// openFn replaces the default Open behaviour when set.
	openFn func(ctx context.Context) error

	mu         sync.Mutex
	open       bool
	closed     bool
	previewing bool
	torch      bool
	requests   int
	pending    []func(camera.Frame)
	seq        uint64
}

func (f *fakeCamera) Open(ctx context.Context) error {
	if f.openFn != nil {
		if err := f.openFn(ctx); err != nil {
			return err
		}
	} else if f.openErr != nil {
		return f.openErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = true
	return nil
}

func (f *fakeCamera) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closed = true
	return nil
}

func (f *fakeCamera) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeCamera) StartPreview() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previewing = true
	return nil
}

func (f *fakeCamera) StopPreview() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previewing = false
	f.pending = nil
	return nil
}

func (f *fakeCamera) RequestFrame(fn func(camera.Frame)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	f.pending = append(f.pending, fn)
}

func (f *fakeCamera) Torch() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.torch
}

func (f *fakeCamera) SetTorch(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.torch = on
	return nil
}

func (f *fakeCamera) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeCamera) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// deliver hands a frame to the oldest pending request. It reports false when
// nothing was pending.
func (f *fakeCamera) deliver(img image.Image) bool {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return false
	}
	fn := f.pending[0]
	f.pending = f.pending[1:]
	frame := camera.Frame{Image: img, Seq: f.seq, Timestamp: time.Now()}
	f.seq++
	f.mu.Unlock()
	fn(frame)
	return true
}

// scriptedDecoder answers each call from replies, or misses when replies is nil.
// When block is set every call waits for it to be closed, ignoring ctx.
type scriptedDecoder struct {
	replies chan []barcode.Result
	block   chan struct{}
	point   *barcode.Point

	mu    sync.Mutex
	calls int
}

func (d *scriptedDecoder) Decode(_ context.Context, _ image.Image, opts barcode.Options) ([]barcode.Result, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.point != nil && opts.PointCallback != nil {
		opts.PointCallback(*d.point)
	}
	if d.block != nil {
		<-d.block
	}
	if d.replies == nil {
		return nil, barcode.ErrDecodeMiss
	}
	res := <-d.replies
	if len(res) == 0 {
		return nil, barcode.ErrDecodeMiss
	}
	return res, nil
}

func (d *scriptedDecoder) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// recorder is a Listener and PointListener that records every callback.
type recorder struct {
	mu      sync.Mutex
	decoded []barcode.Result
	thumbs  []image.Image
	scales  []float64
	fatal   []error
	points  []barcode.Point
	at      []time.Time

	decodedCh chan struct{}
}

func newRecorder() *recorder {
	return &recorder{decodedCh: make(chan struct{}, 16)}
}

func (r *recorder) OnDecoded(res barcode.Result, thumb image.Image, scale float64) {
	r.mu.Lock()
	r.decoded = append(r.decoded, res)
	r.thumbs = append(r.thumbs, thumb)
	r.scales = append(r.scales, scale)
	r.at = append(r.at, time.Now())
	r.mu.Unlock()
	r.decodedCh <- struct{}{}
}

func (r *recorder) OnFatalError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal = append(r.fatal, err)
}

func (r *recorder) OnResultPoint(p barcode.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, p)
}

func (r *recorder) decodedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.decoded)
}

func frameImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	return img
}
