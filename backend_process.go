package execpool

import (
	"context"

	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for the process backend.
const (
	ProcessBackendExecutedTotal = metricz.Key("backend.process.executed.total")
	ProcessBackendExecuteSpan   = tracez.Key("backend.process.execute")
)

// ProcessBackend spawns one subprocess per Command via a Runner, optionally
// gated by a Semaphore bounding the number of live children.
type ProcessBackend struct {
	runner  *Runner
	sem     *Semaphore
	metrics *metricz.Registry
	tracer  *tracez.Tracer
}

// NewProcessBackend creates a ProcessBackend. A nil sem means unbounded
// concurrency.
func NewProcessBackend(sem *Semaphore) *ProcessBackend {
	metrics := metricz.New()
	metrics.Counter(ProcessBackendExecutedTotal)
	return &ProcessBackend{
		runner:  NewRunner(),
		sem:     sem,
		metrics: metrics,
		tracer:  tracez.New(),
	}
}

// Execute implements Executor.
func (b *ProcessBackend) Execute(ctx context.Context, cmd Command) (ExecResult, *Error) {
	ctx, span := b.tracer.StartSpan(ctx, ProcessBackendExecuteSpan)
	defer span.Finish()

	guard, err := b.sem.AcquireGuard(ctx)
	if err != nil {
		return ExecResult{}, newIOError(err)
	}
	defer guard.Release()

	b.metrics.Counter(ProcessBackendExecutedTotal).Inc()
	return b.runner.Run(ctx, cmd)
}

// Close is a no-op: ProcessBackend holds no persistent resources between
// calls to Execute.
func (b *ProcessBackend) Close() error { return nil }
