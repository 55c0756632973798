package execpool

import (
	"context"
	"sync"
	"sync/atomic"
)

// fakeBackend is a deterministic Executor stand-in for exercising Pool and
// LockFreePool dispatch logic without spawning real subprocesses. Execute
// blocks on gate, if set, until it is closed, letting tests control exactly
// when dispatch proceeds.
type fakeBackend struct {
	mu       sync.Mutex
	executed []Command
	gate     chan struct{}
	fail     bool
	closed   atomic.Bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{}
}

func (b *fakeBackend) Execute(ctx context.Context, cmd Command) (ExecResult, *Error) {
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return ExecResult{}, newIOError(ctx.Err())
		}
	}

	b.mu.Lock()
	b.executed = append(b.executed, cmd)
	b.mu.Unlock()

	if b.fail {
		return ExecResult{}, newChildError("fake backend configured to fail")
	}
	return ExecResult{ExitCode: 0, Stdout: []byte(cmd.Program)}, nil
}

func (b *fakeBackend) Close() error {
	b.closed.Store(true)
	return nil
}

func (b *fakeBackend) executedCommands() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Command, len(b.executed))
	copy(out, b.executed)
	return out
}
