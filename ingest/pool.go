package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/termhub/termsync/errors"
)

const (
	// PoolWorkers is the number of concurrent batch workers per phase.
	PoolWorkers = 16
	// PoolQueueDepth bounds the pending-batch queue. A full queue blocks the
	// submitter, throttling decoding to worker throughput.
	PoolQueueDepth = PoolWorkers / 2
	// DrainTimeout bounds how long a phase may keep working after its last
	// batch was submitted.
	DrainTimeout = 5 * time.Minute
)

// Task is one unit of pool work.
type Task func(ctx context.Context) error

// Pool executes batch tasks on a fixed set of workers with a bounded pending
// queue. One pool serves one phase of a run and is not reused after Drain.
type Pool struct {
	tasks  chan Task
	wg     sync.WaitGroup
	closed sync.Once
	logger *zap.SugaredLogger

	mu  sync.Mutex
	err error
}

// NewPool starts workers reading from a queue of the given depth.
func NewPool(ctx context.Context, workers, depth int, logger *zap.SugaredLogger) *Pool {
	if workers <= 0 {
		workers = PoolWorkers
	}
	if depth <= 0 {
		depth = PoolQueueDepth
	}
	p := &Pool{
		tasks:  make(chan Task, depth),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	return p
}

// Submit queues a task, blocking while the queue is full.
func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// Drain closes the queue and waits for in-flight work, up to the timeout.
// Returns the first task error, or ErrTimeout when workers do not finish in
// time.
func (p *Pool) Drain(timeout time.Duration) error {
	p.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return p.firstErr()
	case <-time.After(timeout):
		return errors.Wrapf(errors.ErrTimeout, "workers did not finish within %s", timeout)
	}
}

// Close stops accepting tasks. Safe to call more than once.
func (p *Pool) Close() {
	p.closed.Do(func() {
		close(p.tasks)
	})
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for task := range p.tasks {
		if err := task(ctx); err != nil {
			p.setErr(err)
			if p.logger != nil {
				p.logger.Errorw("Batch failed", "error", err)
			}
		}
	}
}

func (p *Pool) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

func (p *Pool) firstErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
