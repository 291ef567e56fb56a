package whisperx

import (
	"context"
	"errors"
)

// Pool hands out transcriber instances for exclusive use. A borrowed instance
// is never shared until it is returned, so the pool size is the maximum
// number of concurrent transcriptions.
type Pool struct {
	free chan Transcriber
	size int
}

// NewPool builds a pool over instances.
func NewPool(instances ...Transcriber) (*Pool, error) {
	if len(instances) == 0 {
		return nil, errors.New("transcriber pool needs at least one instance")
	}
	free := make(chan Transcriber, len(instances))
	for _, inst := range instances {
		if inst == nil {
			return nil, errors.New("transcriber pool: nil instance")
		}
		free <- inst
	}
	return &Pool{free: free, size: len(instances)}, nil
}

// Size returns the number of instances.
func (p *Pool) Size() int {
	return p.size
}

// Acquire borrows an instance, waiting until one is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (Transcriber, error) {
	select {
	case inst := <-p.free:
		return inst, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a borrowed instance.
func (p *Pool) Release(inst Transcriber) {
	if inst == nil {
		return
	}
	p.free <- inst
}

// Transcribe borrows an instance for one call.
func (p *Pool) Transcribe(ctx context.Context, audioPath, outDir string) (string, error) {
	inst, err := p.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer p.Release(inst)
	return inst.Transcribe(ctx, audioPath, outDir)
}
