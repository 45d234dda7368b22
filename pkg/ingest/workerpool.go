package ingest

import (
	"context"
	"sync"
)

// Job is a unit of work submitted to the WorkerPool.
type Job func(ctx context.Context) error

// WorkerPool runs jobs using a fixed number of goroutines. Importers use it to
// decompress and parse independent archive members (banks, index files) in
// parallel before the import transaction opens.
//
// The first error returned by any job is kept and reported by Close; once a
// job has failed, jobs still queued are skipped.
type WorkerPool struct {
	jobs    chan Job
	quit    chan struct{}
	wg      sync.WaitGroup
	senders sync.WaitGroup
	workers int

	closeMu sync.Mutex
	closed  bool

	errMu sync.Mutex
	err   error
}

// NewWorkerPool creates a new worker pool with the specified number of workers
// and job queue capacity.
func NewWorkerPool(workers, queue int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 2
	}
	return &WorkerPool{
		jobs:    make(chan Job, queue),
		quit:    make(chan struct{}),
		workers: workers,
	}
}

// Start begins the worker goroutines. They run until ctx is done or Close has
// been called and the queue is drained.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					p.setErr(ctx.Err())
					return
				case job, ok := <-p.jobs:
					if !ok {
						return
					}
					if p.Err() != nil {
						continue
					}
					if err := job(ctx); err != nil {
						p.setErr(err)
					}
				}
			}
		}()
	}
}

// Submit enqueues a job, blocking while the queue is full. It returns
// ErrPoolClosed if the pool is closed before the job is accepted.
func (p *WorkerPool) Submit(job Job) error {
	return p.SubmitCtx(context.Background(), job)
}

// SubmitCtx is Submit that also gives up when ctx is done.
func (p *WorkerPool) SubmitCtx(ctx context.Context, job Job) error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return ErrPoolClosed
	}
	p.senders.Add(1)
	p.closeMu.Unlock()
	defer p.senders.Done()

	select {
	case p.jobs <- job:
		return nil
	case <-p.quit:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new jobs, waits for the workers to drain the queue and
// returns the first job error, if any.
func (p *WorkerPool) Close() error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return p.Err()
	}
	p.closed = true
	close(p.quit)
	p.closeMu.Unlock()

	p.senders.Wait()
	close(p.jobs)
	p.wg.Wait()
	return p.Err()
}

// Err returns the first job error seen so far.
func (p *WorkerPool) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

func (p *WorkerPool) setErr(err error) {
	p.errMu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.errMu.Unlock()
}

// ErrPoolClosed is returned if a Submit is attempted after Close.
var ErrPoolClosed = &PoolError{"worker pool closed"}

// PoolError provides a simple typed error for pool operations.
type PoolError struct{ msg string }

func (e *PoolError) Error() string { return e.msg }
