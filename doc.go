// Package execpool runs external OS commands at scale behind a bounded or
// unbounded queue, a pluggable execution backend, and per-command timeouts.
//
// # Overview
//
// Producers submit Command descriptors to a Pool. A background dispatch loop
// drains the queue and forwards each Command to a Backend, which actually
// spawns the subprocess. Three backend strategies trade off differently:
//
//   - ModeProcess: spawn one subprocess per Command, optionally gated by a
//     counting Semaphore on the number of live children.
//   - ModeThread: a fixed pool of goroutine workers drains an internal queue,
//     each blocking on its own subprocess.
//   - ModeProcessPool: a fixed set of long-lived resident child processes
//     speak a length-framed binary protocol over stdin/stdout; commands are
//     dispatched to whichever worker is free.
//
// Results (exit code, stdout, stderr) are available three ways: synchronously
// via Pool.ExecuteTask, by polling a StatusTracker, or by waiting on a
// ResultHandle.
//
// # Core Concepts
//
//   - Command: an immutable (program, argv, working dir, timeout) descriptor.
//   - Backend: the single-method Executor contract a Pool dispatches through.
//   - Pool / LockFreePool: the queue plus its worker set.
//   - Semaphore: a counting gate on the number of live subprocesses.
//   - StatusTracker: a registry of task-ID to lifecycle state.
//   - ResultHandle: a one-shot rendezvous delivering a result to a waiter.
//
// # Quick Start
//
//	cfg := execpool.ExecConfig{Mode: execpool.ModeProcess, Workers: 4}
//	backend, err := execpool.BuildBackend(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pool := execpool.NewPool(backend, nil)
//	pool.StartExecutor(100 * time.Millisecond)
//	defer pool.Stop()
//
//	pool.Enqueue(context.Background(), execpool.NewCommand("echo", []string{"hello"}))
//
// For a result you can wait on, use ResultHandle:
//
//	cmd := execpool.NewCommand("sleep", []string{"1"})
//	sender, handle := execpool.NewResultHandle(0)
//	pool.EnqueueWithResult(context.Background(), cmd, sender)
//	res, err := handle.Wait(context.Background())
//
// # Error Handling
//
// Execution, queueing and result-handle operations return a *execpool.Error
// carrying one of the taxonomy's Kind values (IOError, TimeoutError,
// ChildError, QueueFullError, QueueClosedError, HandleSenderGoneError). Use
// errors.As to recover it, or the IsTimeout/IsIOError/... predicates for
// quick checks. ExecConfig.Validate, BuildBackend and the StatusTracker
// methods return plain error values instead. A non-zero exit
// code is never an error by itself — it is carried in ExecResult.ExitCode.
//
// # Observability
//
// Every component emits structured signals through github.com/zoobzio/capitan
// (queue state changes, semaphore saturation, subprocess timeouts, backend
// worker crashes). Pools, backends and the Runner each keep an internal
// *metricz.Registry of counters/gauges, and backends and the Runner a
// *tracez.Tracer producing one span per execute call; Runner.Metrics is the
// only exported accessor to them. Deadlines are always
// expressed against a github.com/zoobzio/clockz.Clock so tests can advance
// time deterministically instead of sleeping.
//
// # Concurrency Model
//
// Pools spawn real OS worker threads (goroutines blocking on subprocess I/O),
// not a cooperative task system. Stop() is cooperative: it sets an atomic
// flag that rejects further enqueues, and dispatch loops exit once the
// queue is empty, so tasks queued before Stop still run; in-flight
// subprocesses are not killed. ForceStop calls Stop and then closes the
// backend; it does not kill subprocesses that are still running.
package execpool
