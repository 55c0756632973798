package execpool

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for the process-pool backend.
const (
	PoolBackendExecutedTotal = metricz.Key("backend.pool.executed.total")
	PoolBackendCrashesTotal  = metricz.Key("backend.pool.crashes.total")
	PoolBackendExecuteSpan   = tracez.Key("backend.pool.execute")
)

// poolWorker is one resident child process speaking the ipc.go protocol over
// its stdin/stdout.
type poolWorker struct {
	slot       int
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	generation uint64
	mu         sync.Mutex
}

// ProcessPoolBackend keeps a fixed set of long-lived child processes,
// dispatching each Execute call to whichever worker is free, per the
// roadrunner StaticPool allocator/free-list shape: spawn starts a
// replacement and a free-list channel hands out idle workers, so each
// worker serves one Execute call at a time. Each slot's generation counts
// how many times it has been respawned; nothing compares it.
type ProcessPoolBackend struct {
	program string
	args    []string

	free    chan *poolWorker
	workers []*poolWorker
	mu      sync.Mutex

	sem     *Semaphore
	clock   clockz.Clock
	metrics *metricz.Registry
	tracer  *tracez.Tracer

	idGen  *IDGenerator
	closed atomic.Bool
}

// NewProcessPoolBackend spawns n resident workers running program with args
// and returns a ready ProcessPoolBackend. sem, if non-nil, caps the number
// of requests dispatched to the pool concurrently (independent of n).
func NewProcessPoolBackend(n int, program string, args []string, sem *Semaphore) (*ProcessPoolBackend, error) {
	if n <= 0 {
		n = 1
	}
	metrics := metricz.New()
	metrics.Counter(PoolBackendExecutedTotal)
	metrics.Counter(PoolBackendCrashesTotal)

	b := &ProcessPoolBackend{
		program: program,
		args:    args,
		free:    make(chan *poolWorker, n),
		workers: make([]*poolWorker, n),
		sem:     sem,
		clock:   clockz.RealClock,
		metrics: metrics,
		tracer:  tracez.New(),
		idGen:   NewIDGenerator(),
	}

	for i := 0; i < n; i++ {
		w, err := b.spawn(i)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.workers[i] = w
		b.free <- w
	}
	return b, nil
}

func (b *ProcessPoolBackend) spawn(slot int) (*poolWorker, error) {
	cmd := exec.Command(b.program, b.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, newIOError(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, newIOError(err)
	}
	if err := cmd.Start(); err != nil {
		return nil, newIOError(err)
	}
	return &poolWorker{
		slot:   slot,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

// respawn kills a crashed worker and replaces it in its slot with a new
// process whose generation is the old one's plus one.
func (b *ProcessPoolBackend) respawn(old *poolWorker) (*poolWorker, error) {
	_ = old.cmd.Process.Kill()
	replacement, err := b.spawn(old.slot)
	if err != nil {
		return nil, err
	}
	replacement.generation = old.generation + 1

	b.mu.Lock()
	b.workers[old.slot] = replacement
	b.mu.Unlock()

	capitan.Warn(context.Background(), SignalBackendPoolWorkerRespawned,
		FieldWorkerSlot.Field(old.slot),
	)
	return replacement, nil
}

// Execute implements Executor: it takes a free worker, sends the request,
// reads the response, and returns the worker to the free list. A protocol
// error or dead worker triggers respawn and surfaces ChildError to the
// caller, matching spec's "catches a worker crash locally and respawns;
// the in-flight request is surfaced as ChildError" behavior.
func (b *ProcessPoolBackend) Execute(ctx context.Context, cmd Command) (ExecResult, *Error) {
	if b.closed.Load() {
		return ExecResult{}, newQueueClosedError()
	}

	guard, err := b.sem.AcquireGuard(ctx)
	if err != nil {
		return ExecResult{}, newIOError(err)
	}
	defer guard.Release()

	ctx, span := b.tracer.StartSpan(ctx, PoolBackendExecuteSpan)
	defer span.Finish()

	var w *poolWorker
	select {
	case w = <-b.free:
	case <-ctx.Done():
		return ExecResult{}, newIOError(ctx.Err())
	}

	id := uint64(b.idGen.Next())
	req := requestFromCommand(id, cmd)

	w.mu.Lock()
	werr := writeRequest(w.stdin, req)
	var resp workerResponse
	if werr == nil {
		resp, werr = readResponse(w.stdout)
	}
	w.mu.Unlock()
	if werr == nil && resp.RequestID != req.RequestID {
		werr = fmt.Errorf("response request_id %d does not match request %d: IPC stream out of sync", resp.RequestID, req.RequestID)
	}

	if werr != nil {
		b.metrics.Counter(PoolBackendCrashesTotal).Inc()
		capitan.Warn(ctx, SignalBackendPoolWorkerCrashed, FieldWorkerSlot.Field(w.slot))
		replacement, respawnErr := b.respawn(w)
		if respawnErr != nil {
			return ExecResult{}, newChildError(fmt.Sprintf("worker slot %d crashed and could not be respawned: %v", w.slot, respawnErr))
		}
		b.free <- replacement
		return ExecResult{}, newChildError(fmt.Sprintf("worker slot %d crashed mid-request: %v", w.slot, werr))
	}

	b.free <- w
	b.metrics.Counter(PoolBackendExecutedTotal).Inc()

	return resp.toExecResult(cmd.Timeout)
}

// Close kills every resident worker.
func (b *ProcessPoolBackend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.workers {
		if w != nil && w.cmd.Process != nil {
			_ = w.cmd.Process.Kill()
		}
	}
	return nil
}
