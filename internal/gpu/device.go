// Package gpu is the compute device the scope kernels run on: storage images with atomic
// counters, WGSL programs validated through naga, and a workgroup dispatcher that executes
// every invocation of a kernel in parallel across worker goroutines.
package gpu

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"
)

// WorkgroupSize is the edge of the square workgroup a dispatch is split into.
const WorkgroupSize = 16

// DefaultMemoryBudget is the device memory budget used when Options leaves it zero.
const DefaultMemoryBudget = 256 << 20

var (
	ErrOutOfMemory    = errors.New("gpu: out of memory")
	ErrInvalidSize    = errors.New("gpu: invalid image size")
	ErrImageDestroyed = errors.New("gpu: image destroyed")
	ErrQueueClosed    = errors.New("gpu: queue closed")
	ErrKernelFault    = errors.New("gpu: kernel fault")
)

// Kernel is a compute entry point bound to its resources. Run executes the invocations
// whose grid coordinates fall inside tile; distinct tiles may run concurrently.
type Kernel interface {
	Label() string
	Grid() image.Point
	Run(tile image.Rectangle)
}

// Options configures a Device.
type Options struct {
	// Workers bounds concurrently executing workgroups. Zero means the logical CPU count.
	Workers int
	// MemoryBudget is the byte budget for storage images. Zero means DefaultMemoryBudget.
	MemoryBudget uint64
	// AvailableMemory reports free host memory. Nil uses gopsutil.
	AvailableMemory func() (uint64, error)
}

// Device owns the memory budget and executes kernel dispatches.
type Device struct {
	workers   int
	budget    uint64
	available func() (uint64, error)

	mu   sync.Mutex
	used uint64

	staging *ImagePool
	buffers *BufferPool
}

// NewDevice creates a device.
func NewDevice(opts Options) *Device {
	workers := opts.Workers
	if workers <= 0 {
		workers = logicalCPUs()
	}
	budget := opts.MemoryBudget
	if budget == 0 {
		budget = DefaultMemoryBudget
	}
	available := opts.AvailableMemory
	if available == nil {
		available = hostAvailableMemory
	}

	d := &Device{
		workers:   workers,
		budget:    budget,
		available: available,
		staging:   NewImagePool(),
		buffers:   NewBufferPool(),
	}
	Logger().Info("gpu: device created", "workers", workers, "budget_mb", budget>>20)
	return d
}

func logicalCPUs() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

func hostAvailableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

func (d *Device) Workers() int { return d.workers }

// Staging returns the pool of RGBA staging images used for surface copies.
func (d *Device) Staging() *ImagePool { return d.staging }

// Buffers returns the pool of byte buffers used for frame conversions.
func (d *Device) Buffers() *BufferPool { return d.buffers }

// MemoryStats reports the budget and the bytes held by live storage images.
func (d *Device) MemoryStats() (used, budget uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used, d.budget
}

func (d *Device) reserve(size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.used+size > d.budget {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrOutOfMemory, size, d.used, d.budget)
	}
	if avail, err := d.available(); err == nil && avail < size {
		return fmt.Errorf("%w: host has %d bytes available, %d requested", ErrOutOfMemory, avail, size)
	} else if err != nil {
		Logger().Debug("gpu: host memory probe failed", "err", err)
	}
	d.used += size
	return nil
}

func (d *Device) release(size uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if size > d.used {
		size = d.used
	}
	d.used -= size
}

// Dispatch runs k over its whole grid, one workgroup per task, and returns when every
// invocation has finished. A panicking invocation is reported as ErrKernelFault.
func (d *Device) Dispatch(ctx context.Context, k Kernel) error {
	grid := k.Grid()
	if grid.X <= 0 || grid.Y <= 0 {
		return nil
	}

	groupsX := (grid.X + WorkgroupSize - 1) / WorkgroupSize
	groupsY := (grid.Y + WorkgroupSize - 1) / WorkgroupSize

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for gy := 0; gy < groupsY; gy++ {
		for gx := 0; gx < groupsX; gx++ {
			if gctx.Err() != nil {
				break
			}
			tile := image.Rect(
				gx*WorkgroupSize, gy*WorkgroupSize,
				min((gx+1)*WorkgroupSize, grid.X), min((gy+1)*WorkgroupSize, grid.Y),
			)
			g.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %s at %v: %v", ErrKernelFault, k.Label(), tile, r)
					}
				}()
				k.Run(tile)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	Logger().Debug("gpu: dispatch", "kernel", k.Label(), "grid", grid, "workgroups", groupsX*groupsY)
	return nil
}
