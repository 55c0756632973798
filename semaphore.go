package execpool

import (
	"context"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Semaphore is a counting gate on the number of concurrently live
// subprocesses. A nil *Semaphore is a valid, unbounded gate: Acquire and
// Release are no-ops and AcquireGuard's release is a no-op too, so backends
// can hold an optional *Semaphore without branching on configuration at
// every call site.
type Semaphore struct {
	ch    chan struct{}
	clock clockz.Clock
}

// NewSemaphore creates a Semaphore with the given number of permits. permits
// must be positive; use a nil *Semaphore for an unbounded gate.
func NewSemaphore(permits int) *Semaphore {
	if permits <= 0 {
		permits = 1
	}
	return &Semaphore{
		ch:    make(chan struct{}, permits),
		clock: clockz.RealClock,
	}
}

// WithClock returns a copy of s holding clock. No Semaphore method reads the
// clock.
func (s *Semaphore) WithClock(clock clockz.Clock) *Semaphore {
	if s == nil {
		return nil
	}
	cp := *s
	cp.clock = clock
	return &cp
}

// Acquire blocks until a permit is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if s == nil {
		return nil
	}
	permits := cap(s.ch)
	active := len(s.ch)
	if active >= permits {
		capitan.Warn(ctx, SignalSemaphoreSaturated,
			FieldPermits.Field(permits),
			FieldActivePermits.Field(active),
		)
	}

	select {
	case s.ch <- struct{}{}:
		capitan.Info(ctx, SignalSemaphoreAcquired,
			FieldPermits.Field(permits),
			FieldActivePermits.Field(len(s.ch)),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the semaphore. Calling Release without a
// matching successful Acquire corrupts the permit count.
func (s *Semaphore) Release() {
	if s == nil {
		return
	}
	<-s.ch
	capitan.Info(context.Background(), SignalSemaphoreReleased,
		FieldPermits.Field(cap(s.ch)),
		FieldActivePermits.Field(len(s.ch)),
	)
}

// TryAcquire attempts to acquire a permit without blocking.
func (s *Semaphore) TryAcquire() bool {
	if s == nil {
		return true
	}
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Guard releases its semaphore exactly once, regardless of how many times
// Release is called on it.
type Guard struct {
	sem  *Semaphore
	once chan struct{}
}

// AcquireGuard acquires a permit and returns a Guard whose Release call
// returns it. Calling Release more than once is a no-op.
func (s *Semaphore) AcquireGuard(ctx context.Context) (*Guard, error) {
	if err := s.Acquire(ctx); err != nil {
		return nil, err
	}
	return &Guard{sem: s, once: make(chan struct{}, 1)}, nil
}

// Release returns the guard's permit exactly once.
func (g *Guard) Release() {
	select {
	case g.once <- struct{}{}:
		g.sem.Release()
	default:
	}
}
