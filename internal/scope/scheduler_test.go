package scope

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/vectorscope/internal/calibration"
	"github.com/ivlev/vectorscope/internal/colorspace"
	"github.com/ivlev/vectorscope/internal/gpu"
	"github.com/ivlev/vectorscope/internal/ingest"
	"github.com/ivlev/vectorscope/internal/kernels"
)

type testSurface struct {
	mu        sync.Mutex
	w, h      int
	presented []*image.RGBA
	gate      chan struct{}
}

func newSurface(w, h int) *testSurface { return &testSurface{w: w, h: h} }

func (s *testSurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w, s.h
}

func (s *testSurface) Present(img *image.RGBA) error {
	if s.gate != nil {
		<-s.gate
	}
	cp := image.NewRGBA(img.Rect)
	copy(cp.Pix, img.Pix)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented = append(s.presented, cp)
	return nil
}

func (s *testSurface) last() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.presented) == 0 {
		return nil
	}
	return s.presented[len(s.presented)-1]
}

func (s *testSurface) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.presented)
}

func testDevice(budget uint64) *gpu.Device {
	return gpu.NewDevice(gpu.Options{
		Workers:         4,
		MemoryBudget:    budget,
		AvailableMemory: func() (uint64, error) { return 1 << 40, nil },
	})
}

func newScheduler(t *testing.T, budget uint64) *Scheduler {
	t.Helper()
	s, err := New(Options{
		Device: testDevice(budget),
		Scope:  calibration.MustBuild(calibration.Default()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func solidFrame(w, h int, r, g, b uint8) *ingest.Frame {
	pix := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		pix[i*4], pix[i*4+1], pix[i*4+2], pix[i*4+3] = b, g, r, 0xff
	}
	return &ingest.Frame{Pix: pix, Width: w, Height: h, Format: ingest.BGRA8}
}

// reference draws mode directly through the kernels, bypassing the scheduler.
func reference(t *testing.T, mode DisplayMode, size image.Point, f *ingest.Frame) *image.RGBA {
	t.Helper()
	ctx := context.Background()
	dev := testDevice(0)
	lib, err := kernels.NewLibrary()
	require.NoError(t, err)
	img, err := dev.NewStorageImage(size.X, size.Y)
	require.NoError(t, err)
	defer img.Destroy()

	u := kernels.Uniforms{
		Scope:          calibration.MustBuild(calibration.Default()),
		Matrix:         colorspace.MustNew(colorspace.BT601),
		SaturationHits: kernels.DefaultSaturationHits,
	}
	panels := Layout(mode, size)
	for _, p := range panels {
		u.Viewport = p.Viewport
		require.NoError(t, dev.Dispatch(ctx, p.Clear(lib, img, u)))
	}
	if f != nil {
		in, err := ingest.NewIngester(nil, 0).Ingest(f)
		require.NoError(t, err)
		defer in.Release()
		for _, p := range panels {
			u.Viewport = p.Viewport
			require.NoError(t, dev.Dispatch(ctx, p.Accumulate(lib, img, in, u)))
		}
	}
	dst := image.NewRGBA(image.Rectangle{Max: size})
	require.NoError(t, dev.Dispatch(ctx, lib.Resolve(img, dst, kernels.DefaultSaturationHits)))
	return dst
}

func tickAndWait(t *testing.T, s *Scheduler, surf Surface) {
	t.Helper()
	require.NoError(t, s.Tick(context.Background(), surf))
	require.NoError(t, s.WaitIdle(context.Background()))
}

func TestNoFrameDrawsGraticuleOnly(t *testing.T) {
	s := newScheduler(t, 0)
	surf := newSurface(200, 160)

	tickAndWait(t, s, surf)

	require.Equal(t, 1, surf.count())
	assert.Equal(t, reference(t, VectorScope, image.Pt(200, 160), nil).Pix, surf.last().Pix)
	assert.Equal(t, Ready, s.State())
}

func TestTickWithoutChangesIsNoop(t *testing.T) {
	s := newScheduler(t, 0)
	surf := newSurface(64, 64)

	tickAndWait(t, s, surf)
	tickAndWait(t, s, surf)
	tickAndWait(t, s, surf)

	assert.Equal(t, 1, surf.count())
	assert.EqualValues(t, 1, s.Stats().Draws)
}

func TestZeroSizedSurfaceStaysIdle(t *testing.T) {
	s := newScheduler(t, 0)
	surf := newSurface(0, 0)

	tickAndWait(t, s, surf)

	assert.Equal(t, Idle, s.State())
	assert.Zero(t, surf.count())
}

func TestModeSwitchTakesEffectOnNextDraw(t *testing.T) {
	s := newScheduler(t, 0)
	surf := newSurface(120, 90)
	f := solidFrame(8, 8, 200, 40, 90)

	s.SubmitFrame(f)
	tickAndWait(t, s, surf)
	assert.Equal(t, reference(t, VectorScope, image.Pt(120, 90), f).Pix, surf.last().Pix)

	s.SetMode(RGBParade)
	tickAndWait(t, s, surf)
	require.Equal(t, 2, surf.count())
	assert.Equal(t, reference(t, RGBParade, image.Pt(120, 90), f).Pix, surf.last().Pix)

	s.SetMode(Split)
	tickAndWait(t, s, surf)
	assert.Equal(t, reference(t, Split, image.Pt(120, 90), f).Pix, surf.last().Pix)
}

func TestResizeAllocatesNewImage(t *testing.T) {
	s := newScheduler(t, 0)
	surf := newSurface(10, 10)
	f := solidFrame(4, 4, 255, 255, 255)

	s.OnResize(512, 512)
	s.SubmitFrame(f)
	tickAndWait(t, s, surf)
	assert.Equal(t, image.Rect(0, 0, 512, 512), surf.last().Rect)

	s.OnResize(800, 600)
	tickAndWait(t, s, surf)
	require.Equal(t, 2, surf.count())
	assert.Equal(t, image.Rect(0, 0, 800, 600), surf.last().Rect)
	assert.Equal(t, reference(t, VectorScope, image.Pt(800, 600), f).Pix, surf.last().Pix)

	used, _ := s.dev.MemoryStats()
	assert.EqualValues(t, 800*600*12, used)
}

func TestLatestFrameWins(t *testing.T) {
	s := newScheduler(t, 0)
	surf := newSurface(100, 100)
	red := solidFrame(4, 4, 191, 0, 0)
	blue := solidFrame(4, 4, 0, 0, 191)

	s.SubmitFrame(red)
	s.SubmitFrame(blue)
	tickAndWait(t, s, surf)

	assert.EqualValues(t, 1, s.Stats().Dropped)
	assert.Equal(t, reference(t, VectorScope, image.Pt(100, 100), blue).Pix, surf.last().Pix)
}

func TestTriggersDuringDrawAreCoalesced(t *testing.T) {
	s := newScheduler(t, 0)
	surf := newSurface(64, 64)
	surf.gate = make(chan struct{})
	ctx := context.Background()

	require.NoError(t, s.Tick(ctx, surf))
	require.Equal(t, Drawing, s.State())

	for i := 0; i < 5; i++ {
		s.SubmitFrame(solidFrame(4, 4, uint8(i*40), 10, 10))
		s.SetMode(DisplayMode(i % 3))
		require.NoError(t, s.Tick(ctx, surf))
	}
	st := s.Stats()
	assert.EqualValues(t, 1, st.Draws)
	assert.Positive(t, st.Coalesced)

	close(surf.gate)
	require.NoError(t, s.WaitIdle(ctx))

	tickAndWait(t, s, surf)
	tickAndWait(t, s, surf)
	tickAndWait(t, s, surf)

	assert.EqualValues(t, 2, s.Stats().Draws)
	assert.Equal(t, 2, surf.count())
}

func TestBindFailureKeepsLastGoodFrame(t *testing.T) {
	s := newScheduler(t, 0)
	surf := newSurface(90, 90)
	good := solidFrame(4, 4, 30, 180, 60)

	s.SubmitFrame(good)
	tickAndWait(t, s, surf)
	before := surf.last()

	s.SubmitFrame(&ingest.Frame{Pix: []byte{1, 2, 3}, Width: 0, Height: 4, Format: ingest.BGRA8})
	tickAndWait(t, s, surf)

	st := s.Stats()
	assert.EqualValues(t, 1, st.Rejected)
	assert.EqualValues(t, 1, st.Draws)
	assert.Same(t, before, surf.last())

	s.SetMode(RGBParade)
	tickAndWait(t, s, surf)
	assert.Equal(t, reference(t, RGBParade, image.Pt(90, 90), good).Pix, surf.last().Pix)
}

func TestResizeReleasesOldImageAfterNewIsReady(t *testing.T) {
	var old *gpu.StorageImage
	var oldAliveDuringAlloc bool
	dev := gpu.NewDevice(gpu.Options{
		Workers: 4,
		AvailableMemory: func() (uint64, error) {
			if old != nil {
				oldAliveDuringAlloc = !old.Destroyed()
			}
			return 1 << 40, nil
		},
	})
	s, err := New(Options{Device: dev, Scope: calibration.MustBuild(calibration.Default())})
	require.NoError(t, err)
	defer s.Close(context.Background())
	surf := newSurface(10, 10)

	s.OnResize(64, 64)
	tickAndWait(t, s, surf)
	old = s.img
	require.NotNil(t, old)

	s.OnResize(96, 80)
	tickAndWait(t, s, surf)
	assert.True(t, oldAliveDuringAlloc)
	assert.True(t, old.Destroyed())
	assert.NotSame(t, old, s.img)
	used, _ := dev.MemoryStats()
	assert.EqualValues(t, 96*80*12, used)
}

func TestResizeFitsBudgetForOneImage(t *testing.T) {
	// room for the 800x600 image alone, not alongside the 512x512 one
	s := newScheduler(t, 800*600*12+100)
	surf := newSurface(10, 10)

	s.OnResize(512, 512)
	tickAndWait(t, s, surf)
	s.OnResize(800, 600)
	tickAndWait(t, s, surf)

	st := s.Stats()
	assert.False(t, st.Suspended)
	assert.EqualValues(t, 2, st.Draws)
	assert.Equal(t, image.Rect(0, 0, 800, 600), surf.last().Rect)
}

func TestAllocationFailureSuspendsUntilResize(t *testing.T) {
	s := newScheduler(t, 100*100*12+1)
	surf := newSurface(10, 10)

	s.OnResize(200, 200)
	tickAndWait(t, s, surf)
	tickAndWait(t, s, surf)

	st := s.Stats()
	assert.True(t, st.Suspended)
	assert.Zero(t, st.Draws)
	assert.Zero(t, surf.count())

	s.OnResize(100, 100)
	tickAndWait(t, s, surf)

	st = s.Stats()
	assert.False(t, st.Suspended)
	assert.EqualValues(t, 1, st.Draws)
	assert.Equal(t, image.Rect(0, 0, 100, 100), surf.last().Rect)
}

func TestCloseWaitsForInFlightDraw(t *testing.T) {
	s := newScheduler(t, 0)
	surf := newSurface(64, 64)
	surf.gate = make(chan struct{})

	require.NoError(t, s.Tick(context.Background(), surf))

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Close(short), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- s.Close(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Close returned while a draw was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(surf.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, surf.count())

	used, _ := s.dev.MemoryStats()
	assert.Zero(t, used)
	assert.ErrorIs(t, s.Tick(context.Background(), surf), ErrClosed)
}

func TestTickRejectsNilSurface(t *testing.T) {
	s := newScheduler(t, 0)
	assert.ErrorIs(t, s.Tick(context.Background(), nil), ErrNilSurface)
}
