package queue

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs a fixed number of independent Workers against the same queue.
// Workers share nothing but the Queueable; the claim protocol keeps them apart.
type WorkerPool struct {
	workers []*Worker
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewWorkerPool creates size workers configured with opts
func NewWorkerPool(q Queueable, registry *Registry, size int, opts ...WorkerOption) (*WorkerPool, error) {
	if q == nil {
		return nil, ErrQueueNil
	}
	if registry == nil {
		return nil, ErrRegistryNil
	}

	options := defaultWorkerOptions()
	for _, opt := range opts {
		opt(options)
	}

	size = max(size, 1)
	workers := make([]*Worker, 0, size)
	for range size {
		workers = append(workers, newWorker(q, registry, options))
	}

	return &WorkerPool{
		workers: workers,
		logger:  options.logger,
	}, nil
}

// Size returns the number of workers in the pool
func (p *WorkerPool) Size() int {
	return len(p.workers)
}

// Start launches every worker
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrWorkerAlreadyStarted
	}

	for i, w := range p.workers {
		if err := w.Start(ctx); err != nil {
			// Roll back the workers that already started
			for _, started := range p.workers[:i] {
				_ = started.Stop()
			}
			return err
		}
	}
	p.running = true

	p.logger.Info("worker pool started", slog.Int("workers", len(p.workers)))
	return nil
}

// Stop signals every worker to stop polling and waits until all in-flight
// tasks are resolved. Running tasks are never interrupted.
func (p *WorkerPool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrWorkerNotStarted
	}
	p.running = false

	var g errgroup.Group
	for _, w := range p.workers {
		g.Go(w.Stop)
	}
	err := g.Wait()

	p.logger.Info("worker pool stopped", slog.Int("workers", len(p.workers)))
	return err
}

// Run starts the pool and returns a function suitable for errgroup
func (p *WorkerPool) Run(ctx context.Context) func() error {
	return func() error {
		if err := p.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return p.Stop()
	}
}
