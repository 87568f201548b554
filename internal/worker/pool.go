// Package worker provides the bounded pool that decouples webhook
// acknowledgment from message processing. The webhook handler answers the
// provider immediately and hands the event to the pool; backpressure and
// shutdown draining are explicit instead of detached goroutines.
package worker

import (
	"context"
	"sync"

	"screening-engine/internal/common/logger"
	"screening-engine/internal/common/metrics"
)

// Task is one unit of background work.
type Task func(ctx context.Context)

type Pool struct {
	workers int
	queue   chan Task
	logger  logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewPool(workers, queueSize int, log logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		workers: workers,
		queue:   make(chan Task, queueSize),
		logger:  log,
		done:    make(chan struct{}),
	}
}

// Start launches the workers. Each task runs under the given base
// context.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.run(ctx)
		}
	})
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for task := range p.queue {
		metrics.QueueDepth.Set(float64(len(p.queue)))
		p.execute(ctx, task)
	}
}

func (p *Pool) execute(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", map[string]interface{}{
				"panic": r,
			})
		}
	}()
	task(ctx)
}

// TrySubmit enqueues a task without blocking. It reports false when the
// queue is full or the pool is shutting down; the caller decides what to
// do with the dropped event.
func (p *Pool) TrySubmit(task Task) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.queue <- task:
		metrics.QueueDepth.Set(float64(len(p.queue)))
		return true
	default:
		metrics.QueueRejections.Inc()
		return false
	}
}

// Shutdown stops intake and drains the queue. It returns early with the
// context's error when draining exceeds the deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.done)
		close(p.queue)
	})

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
