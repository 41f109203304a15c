package gpu

import (
	"context"
	"fmt"
	"sync"
)

type command struct {
	label string
	run   func(ctx context.Context, d *Device) error
}

// CommandBuffer records an ordered list of dispatches and host steps. Commands run in
// recording order; each starts only after the previous one has fully completed, so a
// dispatch never observes another dispatch's in-progress writes.
//
// The first failing command stops the buffer. Completion handlers always run, after the
// last command, with the buffer's error.
type CommandBuffer struct {
	label      string
	cmds       []command
	onComplete []func(error)
}

func NewCommandBuffer(label string) *CommandBuffer {
	return &CommandBuffer{label: label}
}

func (cb *CommandBuffer) Label() string { return cb.label }

// Len returns the number of recorded commands.
func (cb *CommandBuffer) Len() int { return len(cb.cmds) }

// Labels lists the recorded commands in order.
func (cb *CommandBuffer) Labels() []string {
	out := make([]string, len(cb.cmds))
	for i, c := range cb.cmds {
		out[i] = c.label
	}
	return out
}

// Dispatch records a kernel dispatch over its full grid.
func (cb *CommandBuffer) Dispatch(k Kernel) {
	cb.cmds = append(cb.cmds, command{
		label: k.Label(),
		run: func(ctx context.Context, d *Device) error {
			return d.Dispatch(ctx, k)
		},
	})
}

// Func records a host step, such as presenting a resolved image.
func (cb *CommandBuffer) Func(label string, fn func(ctx context.Context) error) {
	cb.cmds = append(cb.cmds, command{
		label: label,
		run: func(ctx context.Context, _ *Device) error {
			return fn(ctx)
		},
	})
}

// OnComplete registers fn to run once the buffer has finished or failed.
func (cb *CommandBuffer) OnComplete(fn func(err error)) {
	cb.onComplete = append(cb.onComplete, fn)
}

func (cb *CommandBuffer) execute(ctx context.Context, d *Device) (err error) {
	defer func() {
		for _, fn := range cb.onComplete {
			fn(err)
		}
	}()
	for _, c := range cb.cmds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.run(ctx, d); err != nil {
			return fmt.Errorf("%s/%s: %w", cb.label, c.label, err)
		}
	}
	return nil
}

// Fence signals completion of one submission.
type Fence struct {
	done chan struct{}
	err  error
}

func newFence() *Fence {
	return &Fence{done: make(chan struct{})}
}

func (f *Fence) signal(err error) {
	f.err = err
	close(f.done)
}

// Done is closed when the submission has completed.
func (f *Fence) Done() <-chan struct{} { return f.done }

// Signaled reports completion without blocking.
func (f *Fence) Signaled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err returns the submission error. Only meaningful after Done is closed.
func (f *Fence) Err() error {
	if !f.Signaled() {
		return nil
	}
	return f.err
}

// Wait blocks until the submission completes or ctx ends.
func (f *Fence) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type submission struct {
	cb    *CommandBuffer
	fence *Fence
}

// Queue executes submitted command buffers one at a time, in submission order, on its
// own goroutine.
type Queue struct {
	dev    *Device
	subs   chan submission
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts a queue on d.
func (d *Device) NewQueue() *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		dev:    d,
		subs:   make(chan submission, 4),
		ctx:    ctx,
		cancel: cancel,
	}
	q.wg.Add(1)
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for s := range q.subs {
		err := s.cb.execute(q.ctx, q.dev)
		if err != nil {
			Logger().Warn("gpu: submission failed", "label", s.cb.label, "err", err)
		}
		s.fence.signal(err)
	}
}

// Submit enqueues cb and returns its fence. Submitting to a closed queue returns a fence
// already signalled with ErrQueueClosed.
func (q *Queue) Submit(cb *CommandBuffer) *Fence {
	f := newFence()

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		f.signal(ErrQueueClosed)
		return f
	}
	q.subs <- submission{cb: cb, fence: f}
	return f
}

// Close drains pending submissions and stops the queue goroutine. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.subs)
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()
}
