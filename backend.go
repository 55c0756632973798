package execpool

import "context"

// Executor is the single-method contract every Backend implements. A Pool
// dispatches every dequeued Command through an Executor without caring which
// concrete strategy (process, thread, process-pool) is behind it.
type Executor interface {
	// Execute runs cmd to completion and returns its result, or a non-nil
	// *Error describing why it could not be run to completion.
	Execute(ctx context.Context, cmd Command) (ExecResult, *Error)
	// Close releases any resources (worker goroutines, resident child
	// processes) held by the backend. Close is idempotent.
	Close() error
}

// Backend is an alias for Executor, kept for readability at call sites that
// talk about "the backend" rather than "an executor".
type Backend = Executor

// BuildBackend constructs the Backend named by cfg.Mode. It is the single
// seam through which a Pool is wired to a concrete execution strategy.
func BuildBackend(cfg ExecConfig) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeProcess:
		var sem *Semaphore
		if cfg.ConcurrencyLimit > 0 {
			sem = NewSemaphore(cfg.ConcurrencyLimit)
		}
		return NewProcessBackend(sem), nil
	case ModeThread:
		var sem *Semaphore
		if cfg.ConcurrencyLimit > 0 {
			sem = NewSemaphore(cfg.ConcurrencyLimit)
		}
		return NewThreadBackend(cfg.Workers, sem), nil
	case ModeProcessPool:
		var sem *Semaphore
		if cfg.ConcurrencyLimit > 0 {
			sem = NewSemaphore(cfg.ConcurrencyLimit)
		}
		return NewProcessPoolBackend(cfg.Workers, cfg.WorkerProgram, cfg.WorkerArgs, sem)
	default:
		return nil, ErrInvalidConfig
	}
}
