package execpool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for the thread backend.
const (
	ThreadBackendExecutedTotal = metricz.Key("backend.thread.executed.total")
	ThreadBackendQueueDepth    = metricz.Key("backend.thread.queue_depth")
	ThreadBackendExecuteSpan   = tracez.Key("backend.thread.execute")
)

type threadJob struct {
	ctx    context.Context
	cmd    Command
	result chan execOutcome
}

// ThreadBackend runs a fixed-size pool of goroutine workers, each blocking on
// its own subprocess via a shared Runner, draining an internal job channel
// buffered to four times the worker count. The queue is bounded: once the
// buffer is full, Execute blocks until a worker takes a job or ctx is done.
// An optional Semaphore additionally gates the number of live subprocesses
// below the worker count.
type ThreadBackend struct {
	runner  *Runner
	sem     *Semaphore
	jobs    chan threadJob
	wg      sync.WaitGroup
	stopped atomic.Bool
	metrics *metricz.Registry
	tracer  *tracez.Tracer
}

// NewThreadBackend starts workers goroutine workers immediately. workers must
// be positive. A nil sem means the worker count alone bounds concurrency.
func NewThreadBackend(workers int, sem *Semaphore) *ThreadBackend {
	if workers <= 0 {
		workers = 1
	}
	metrics := metricz.New()
	metrics.Counter(ThreadBackendExecutedTotal)
	metrics.Gauge(ThreadBackendQueueDepth)

	b := &ThreadBackend{
		runner:  NewRunner(),
		sem:     sem,
		jobs:    make(chan threadJob, workers*4),
		metrics: metrics,
		tracer:  tracez.New(),
	}

	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *ThreadBackend) worker() {
	defer b.wg.Done()
	for job := range b.jobs {
		res, err := b.runWithSemaphore(job.ctx, job.cmd)
		job.result <- execOutcome{res: res, err: err}
	}
}

func (b *ThreadBackend) runWithSemaphore(ctx context.Context, cmd Command) (ExecResult, *Error) {
	guard, err := b.sem.AcquireGuard(ctx)
	if err != nil {
		return ExecResult{}, newIOError(err)
	}
	defer guard.Release()
	return b.runner.Run(ctx, cmd)
}

// Execute implements Executor, submitting cmd to the internal queue and
// blocking until a worker completes it or ctx is done.
func (b *ThreadBackend) Execute(ctx context.Context, cmd Command) (ExecResult, *Error) {
	if b.stopped.Load() {
		return ExecResult{}, newQueueClosedError()
	}

	ctx, span := b.tracer.StartSpan(ctx, ThreadBackendExecuteSpan)
	defer span.Finish()

	b.metrics.Gauge(ThreadBackendQueueDepth).Set(float64(len(b.jobs)))
	resultCh := make(chan execOutcome, 1)
	job := threadJob{ctx: ctx, cmd: cmd, result: resultCh}

	select {
	case b.jobs <- job:
	case <-ctx.Done():
		return ExecResult{}, newIOError(ctx.Err())
	}

	b.metrics.Counter(ThreadBackendExecutedTotal).Inc()

	select {
	case out := <-resultCh:
		return out.res, out.err
	case <-ctx.Done():
		return ExecResult{}, newIOError(ctx.Err())
	}
}

// Close stops accepting new work and waits for in-flight jobs to drain.
func (b *ThreadBackend) Close() error {
	if !b.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(b.jobs)
	b.wg.Wait()
	return nil
}
