// Package scope schedules scope draws. Frames, mode changes and resizes arrive
// asynchronously through mailboxes; Tick, called once per display refresh, turns them
// into at most one in-flight draw on the device queue.
package scope

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ivlev/vectorscope/internal/calibration"
	"github.com/ivlev/vectorscope/internal/colorspace"
	"github.com/ivlev/vectorscope/internal/gpu"
	"github.com/ivlev/vectorscope/internal/ingest"
	"github.com/ivlev/vectorscope/internal/kernels"
	"github.com/ivlev/vectorscope/internal/overlay"
)

var (
	ErrClosed      = errors.New("scope: scheduler closed")
	ErrNilSurface  = errors.New("scope: nil surface")
	ErrKernelBuild = errors.New("scope: kernel build failed")
)

// Surface is where resolved scope images are presented. Present runs on the device
// queue goroutine and img is only valid for the duration of the call.
type Surface interface {
	Size() (w, h int)
	Present(img *image.RGBA) error
}

// State is the scheduler state.
type State int

const (
	Idle State = iota
	Ready
	Drawing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Drawing:
		return "drawing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type trigger uint8

const (
	trigFrame trigger = 1 << iota
	trigMode
	trigSize
	trigFirst
)

// Options configures a Scheduler.
type Options struct {
	Device         *gpu.Device
	Scope          calibration.ScopeConfig
	Matrix         *colorspace.Matrix
	Mode           DisplayMode
	SaturationHits int
	MaxInputPixels int
	Overlay        bool
	Logger         *slog.Logger
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	State     State
	Mode      DisplayMode
	Size      image.Point
	Suspended bool

	Draws     uint64
	Completed uint64
	Failed    uint64
	Dropped   uint64
	Rejected  uint64
	Coalesced uint64
}

type counters struct {
	draws, completed, failed, dropped, rejected, coalesced atomic.Uint64
}

// Scheduler owns the analysis image and drives the draw sequence.
type Scheduler struct {
	dev      *gpu.Device
	queue    *gpu.Queue
	lib      *kernels.Library
	ingester *ingest.Ingester
	overlay  *overlay.Renderer
	log      *slog.Logger
	metrics  metrics
	counts   counters

	scope          calibration.ScopeConfig
	matrix         *colorspace.Matrix
	saturationHits int

	frames *Mailbox[*ingest.Frame]
	modes  *Mailbox[DisplayMode]
	sizes  *Mailbox[image.Point]

	mu        sync.Mutex
	state     State
	mode      DisplayMode
	requested image.Point // latest OnResize size, zero until one arrives
	size      image.Point // size of the last draw
	suspended image.Point // size at which allocation failed
	triggers  trigger
	next      *ingest.Frame // arrived, not yet bound
	frame     *ingest.Frame // last frame that bound successfully
	img       *gpu.StorageImage
	fence     *gpu.Fence
	seq       uint64
	closed    bool
}

// New compiles the kernel library and returns an idle scheduler. A kernel build failure
// is returned wrapped in ErrKernelBuild.
func New(opts Options) (*Scheduler, error) {
	lib, err := kernels.NewLibrary()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKernelBuild, err)
	}
	ms, err := newMetrics()
	if err != nil {
		return nil, err
	}

	dev := opts.Device
	if dev == nil {
		dev = gpu.NewDevice(gpu.Options{})
	}
	matrix := opts.Matrix
	if matrix == nil {
		matrix = colorspace.MustNew(colorspace.BT601)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hits := opts.SaturationHits
	if hits <= 0 {
		hits = kernels.DefaultSaturationHits
	}

	s := &Scheduler{
		dev:            dev,
		queue:          dev.NewQueue(),
		lib:            lib,
		ingester:       ingest.NewIngester(dev.Buffers(), opts.MaxInputPixels),
		log:            logger,
		metrics:        ms,
		scope:          opts.Scope,
		matrix:         matrix,
		saturationHits: hits,
		mode:           opts.Mode,
		modes:          NewMailbox[DisplayMode](nil),
		sizes:          NewMailbox[image.Point](nil),
	}
	s.frames = NewMailbox(func(*ingest.Frame) { s.dropFrame() })
	if opts.Overlay {
		s.overlay = overlay.NewRenderer(opts.Scope)
	}
	return s, nil
}

// SubmitFrame hands f to the scheduler. f must not be modified afterwards. A frame not
// yet drawn when the next one arrives is discarded.
func (s *Scheduler) SubmitFrame(f *ingest.Frame) {
	if f == nil {
		return
	}
	s.frames.Put(f)
}

// SetMode switches the display mode from the next draw on.
func (s *Scheduler) SetMode(m DisplayMode) {
	s.modes.Put(m)
}

// OnResize records a new surface size for the next draw.
func (s *Scheduler) OnResize(w, h int) {
	s.sizes.Put(image.Pt(w, h))
}

// Tick is called once per display refresh. It completes a finished draw and, when
// something changed, submits the next one. It returns nil when there is nothing to draw.
func (s *Scheduler) Tick(ctx context.Context, surface Surface) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if surface == nil {
		return ErrNilSurface
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	arrived := s.drain()
	if s.state == Drawing {
		if !s.fence.Signaled() {
			if arrived > 0 {
				s.counts.coalesced.Add(uint64(arrived))
				s.metrics.coalesced.Add(ctx, int64(arrived))
			}
			return nil
		}
		s.complete()
	}

	size := s.requested
	if size == (image.Point{}) {
		w, h := surface.Size()
		size = image.Pt(w, h)
	}
	if size.X <= 0 || size.Y <= 0 {
		s.state = Idle
		return nil
	}
	if size != s.size {
		s.size = size
		s.triggers |= trigSize
	}
	if s.state == Idle {
		s.state = Ready
		s.triggers |= trigFirst
	}

	if s.triggers == 0 {
		return nil
	}
	if s.suspended == size {
		return nil
	}
	return s.draw(ctx, surface)
}

// drain moves mailbox contents into scheduler state and reports how many triggers arrived.
func (s *Scheduler) drain() int {
	n := 0
	if f, ok := s.frames.Take(); ok {
		if s.next != nil {
			s.dropFrame()
		}
		s.next = f
		s.triggers |= trigFrame
		n++
	}
	if m, ok := s.modes.Take(); ok && m != s.mode {
		s.mode = m
		s.triggers |= trigMode
		n++
	}
	if sz, ok := s.sizes.Take(); ok && sz != s.requested {
		s.requested = sz
		n++
	}
	return n
}

func (s *Scheduler) dropFrame() {
	s.counts.dropped.Add(1)
	s.metrics.dropped.Add(context.Background(), 1)
}

// complete moves a finished draw back to Ready. Callers hold s.mu.
func (s *Scheduler) complete() {
	if err := s.fence.Err(); err != nil {
		s.log.Warn("scope: draw failed", "err", err)
	}
	s.fence = nil
	s.state = Ready
}

// draw records and submits one draw. Callers hold s.mu and s.state is Ready.
func (s *Scheduler) draw(ctx context.Context, surface Surface) error {
	if err := s.ensureImage(); err != nil {
		if errors.Is(err, gpu.ErrOutOfMemory) {
			s.suspended = s.size
			s.log.Warn("scope: drawing suspended until resize", "size", s.size, "err", err)
			return nil
		}
		return err
	}
	s.suspended = image.Point{}

	in, err := s.bind()
	if err != nil {
		s.counts.rejected.Add(1)
		s.metrics.rejected.Add(ctx, 1)
		s.triggers &^= trigFrame
		s.log.Warn("scope: frame skipped", "err", err)
		return nil
	}

	mode := s.mode
	panels := Layout(mode, s.size)
	img := s.img
	u := kernels.Uniforms{Scope: s.scope, Matrix: s.matrix, SaturationHits: s.saturationHits}

	s.seq++
	cb := gpu.NewCommandBuffer(fmt.Sprintf("draw-%d", s.seq))
	for _, p := range panels {
		u.Viewport = p.Viewport
		cb.Dispatch(p.Clear(s.lib, img, u))
	}
	if in != nil {
		for _, p := range panels {
			u.Viewport = p.Viewport
			cb.Dispatch(p.Accumulate(s.lib, img, in, u))
		}
	}

	staging := s.dev.Staging().Get(img.Bounds())
	cb.Dispatch(s.lib.Resolve(img, staging, s.saturationHits))
	ov := s.overlay
	cb.Func("present", func(context.Context) error {
		if ov != nil {
			ov.Draw(staging, overlayPanels(panels))
		}
		return surface.Present(staging)
	})
	cb.OnComplete(func(err error) {
		in.Release()
		s.dev.Staging().Put(staging)
		if err != nil {
			s.counts.failed.Add(1)
		} else {
			s.counts.completed.Add(1)
		}
	})

	s.triggers = 0
	s.state = Drawing
	s.fence = s.queue.Submit(cb)
	s.counts.draws.Add(1)
	s.metrics.draws.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode.String())))
	s.log.Debug("scope: draw submitted", "seq", s.seq, "mode", mode, "size", s.size, "frame", in != nil)
	return nil
}

// ensureImage reallocates the analysis image when the size changed. The old image is
// released once the new one is allocated; if the budget cannot hold both, the old one is
// released first and the allocation retried. Callers hold s.mu and no draw is in flight.
func (s *Scheduler) ensureImage() error {
	if s.img != nil && s.img.Size() == s.size {
		return nil
	}
	img, err := s.dev.NewStorageImage(s.size.X, s.size.Y)
	if err != nil && s.img != nil && errors.Is(err, gpu.ErrOutOfMemory) {
		s.img.Destroy()
		s.img = nil
		img, err = s.dev.NewStorageImage(s.size.X, s.size.Y)
	}
	if err != nil {
		return fmt.Errorf("scope: allocating %dx%d analysis image: %w", s.size.X, s.size.Y, err)
	}
	if s.img != nil {
		s.img.Destroy()
	}
	s.img = img
	return nil
}

// bind prepares the input image for the next draw. A newly arrived frame replaces the
// last good frame only if it binds; with no frame at all it returns nil, nil.
func (s *Scheduler) bind() (*gpu.InputImage, error) {
	if f := s.next; f != nil {
		s.next = nil
		in, err := s.ingester.Ingest(f)
		if err != nil {
			return nil, fmt.Errorf("scope: binding frame %d: %w", f.Seq, err)
		}
		s.frame = f
		return in, nil
	}
	if s.frame == nil {
		return nil, nil
	}
	return s.ingester.Ingest(s.frame)
}

// WaitIdle blocks until the in-flight draw, if any, has completed.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	s.mu.Lock()
	f := s.fence
	s.mu.Unlock()
	if f == nil {
		return nil
	}

	select {
	case <-f.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	if s.fence == f {
		s.complete()
	}
	s.mu.Unlock()
	return nil
}

// Close waits for the in-flight draw, then stops the queue and frees the analysis image.
// If ctx ends first, resources stay alive and Close may be called again.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if err := s.WaitIdle(ctx); err != nil {
		return fmt.Errorf("scope: close: %w", err)
	}
	s.queue.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img != nil {
		s.img.Destroy()
		s.img = nil
	}
	s.next, s.frame = nil, nil
	s.state = Idle
	return nil
}

// Mode returns the mode of the next draw.
func (s *Scheduler) Mode() DisplayMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		State:     s.state,
		Mode:      s.mode,
		Size:      s.size,
		Suspended: s.suspended != (image.Point{}) && s.suspended == s.size,
	}
	s.mu.Unlock()

	st.Draws = s.counts.draws.Load()
	st.Completed = s.counts.completed.Load()
	st.Failed = s.counts.failed.Load()
	st.Dropped = s.counts.dropped.Load()
	st.Rejected = s.counts.rejected.Load()
	st.Coalesced = s.counts.coalesced.Load()
	return st
}
