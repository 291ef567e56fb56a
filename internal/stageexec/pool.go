package stageexec

import "context"

// WorkerPool bounds how many items a stage processes at once.
type WorkerPool struct {
	sem chan struct{}
}

// NewWorkerPool creates a pool with size slots; size <= 0 means one slot.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{sem: make(chan struct{}, size)}
}

// Size returns the number of slots.
func (p *WorkerPool) Size() int {
	return cap(p.sem)
}

// Acquire blocks until a slot is free or ctx is done.
func (p *WorkerPool) Acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot to the pool.
func (p *WorkerPool) Release() {
	<-p.sem
}
