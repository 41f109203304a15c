package gpu

import (
	"image"
	"sync"
)

// ImagePool reuses *image.RGBA staging images by rectangle to keep per-frame copies off
// the garbage collector.
type ImagePool struct {
	pools map[image.Rectangle]*sync.Pool
	mu    sync.RWMutex
}

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Rectangle]*sync.Pool)}
}

// Get returns an image for rect, pooled or newly allocated. Contents are unspecified.
func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	return p.pool(rect).Get().(*image.RGBA)
}

// Put returns img for reuse.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, ok := p.pools[img.Rect]
	p.mu.RUnlock()
	if ok {
		pool.Put(img)
	}
}

func (p *ImagePool) pool(rect image.Rectangle) *sync.Pool {
	p.mu.RLock()
	pool, ok := p.pools[rect]
	p.mu.RUnlock()
	if ok {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Double check
	if pool, ok = p.pools[rect]; !ok {
		pool = &sync.Pool{
			New: func() any { return image.NewRGBA(rect) },
		}
		p.pools[rect] = pool
	}
	return pool
}

// BufferPool reuses byte slices by exact length.
type BufferPool struct {
	pools map[int]*sync.Pool
	mu    sync.RWMutex
}

func NewBufferPool() *BufferPool {
	return &BufferPool{pools: make(map[int]*sync.Pool)}
}

// Get returns a slice of length n.
func (p *BufferPool) Get(n int) []byte {
	return *p.pool(n).Get().(*[]byte)
}

// Put returns buf for reuse.
func (p *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	p.mu.RLock()
	pool, ok := p.pools[len(buf)]
	p.mu.RUnlock()
	if ok {
		pool.Put(&buf)
	}
}

func (p *BufferPool) pool(n int) *sync.Pool {
	p.mu.RLock()
	pool, ok := p.pools[n]
	p.mu.RUnlock()
	if ok {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pool, ok = p.pools[n]; !ok {
		pool = &sync.Pool{
			New: func() any {
				b := make([]byte, n)
				return &b
			},
		}
		p.pools[n] = pool
	}
	return pool
}
