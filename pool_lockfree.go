package execpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
)

// lfNode is an intrusive node in the lock-free MPSC queue backing
// LockFreePool, the same shape as LockFreeIngress's node: a payload plus an
// atomic pointer to the next node.
type lfNode struct {
	task poolTask
	next atomic.Pointer[lfNode]
}

// LockFreePool is a Pool with the same external contract as Pool, backed by
// an intrusive multi-producer queue instead of a mutex-guarded slice. It is
// always unbounded: Enqueue never blocks on queue capacity and TryEnqueue
// never returns QueueFullError. Push (producer side) is lock-free, swapping
// the tail pointer with an atomic CAS and linking the previous tail;
// dequeue is guarded by a small mutex so multiple dispatch-loop workers can
// consume safely, since the underlying push/link pair is only safe for a
// single consumer walking the list unsynchronized. len() is therefore exact
// between dequeues but may be transiently stale to a concurrent Enqueue
// observer, matching the spec's "not guaranteed accurate under contention"
// allowance.
type LockFreePool struct {
	head atomic.Pointer[lfNode]
	tail atomic.Pointer[lfNode]
	stub lfNode
	size atomic.Int64

	popMu sync.Mutex

	backend Backend
	status  *StatusTracker
	idGen   *IDGenerator
	clock   clockz.Clock

	stopped atomic.Bool
	notify  chan struct{}
	wg      sync.WaitGroup

	metrics *metricz.Registry
}

// NewLockFreePool creates an empty, always-unbounded LockFreePool.
func NewLockFreePool(backend Backend, status *StatusTracker) *LockFreePool {
	metrics := metricz.New()
	metrics.Gauge(PoolQueueDepthGauge)
	metrics.Counter(PoolEnqueuedTotal)
	metrics.Counter(PoolDequeuedTotal)

	if status == nil {
		status = NewStatusTracker()
	}

	p := &LockFreePool{
		backend: backend,
		status:  status,
		idGen:   NewIDGenerator(),
		clock:   clockz.RealClock,
		notify:  make(chan struct{}, 1),
		metrics: metrics,
	}
	p.head.Store(&p.stub)
	p.tail.Store(&p.stub)
	return p
}

// WithClock returns p after switching its dispatch poll clock.
func (p *LockFreePool) WithClock(clock clockz.Clock) *LockFreePool {
	p.clock = clock
	return p
}

func (p *LockFreePool) push(task poolTask) {
	n := &lfNode{task: task}
	prev := p.tail.Swap(n)
	prev.next.Store(n)
	p.size.Add(1)

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *LockFreePool) pop() (poolTask, bool) {
	p.popMu.Lock()
	defer p.popMu.Unlock()

	head := p.head.Load()
	next := head.next.Load()
	if next == nil {
		return poolTask{}, false
	}
	task := next.task
	next.task = poolTask{}
	p.head.Store(next)
	p.size.Add(-1)
	return task, true
}

// Enqueue adds cmd to the queue and returns its TaskID. LockFreePool is
// always unbounded, so Enqueue never blocks on capacity; only ctx
// cancellation or the pool being stopped can make it return an error.
func (p *LockFreePool) Enqueue(ctx context.Context, cmd Command) (TaskID, *Error) {
	return p.enqueue(ctx, cmd, nil)
}

// EnqueueWithResult behaves like Enqueue but delivers the task's outcome to
// sender on completion.
func (p *LockFreePool) EnqueueWithResult(ctx context.Context, cmd Command, sender *ResultSender) (TaskID, *Error) {
	return p.enqueue(ctx, cmd, sender)
}

func (p *LockFreePool) enqueue(ctx context.Context, cmd Command, sender *ResultSender) (TaskID, *Error) {
	if p.stopped.Load() {
		return 0, newQueueClosedError()
	}
	if ctx.Err() != nil {
		return 0, newIOError(ctx.Err())
	}

	id := p.idGen.Next()
	p.push(poolTask{id: id, cmd: cmd, sender: sender})

	p.status.Register(id)
	p.metrics.Counter(PoolEnqueuedTotal).Inc()
	p.metrics.Gauge(PoolQueueDepthGauge).Set(float64(p.size.Load()))
	capitan.Info(ctx, SignalPoolEnqueued,
		FieldTaskID.Field(int(id)),
		FieldProgram.Field(cmd.Program),
		FieldQueueLen.Field(int(p.size.Load())),
	)
	return id, nil
}

// TryEnqueue is equivalent to Enqueue for LockFreePool: the queue is always
// unbounded, so there is no full-queue case to reject.
func (p *LockFreePool) TryEnqueue(ctx context.Context, cmd Command) (TaskID, *Error) {
	return p.Enqueue(ctx, cmd)
}

// Len returns the approximate queue length; it may be transiently stale
// under concurrent Enqueue/dequeue but never negative and never deadlocks.
func (p *LockFreePool) Len() int {
	n := p.size.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// IsRunning reports whether Stop has not yet been called.
func (p *LockFreePool) IsRunning() bool {
	return !p.stopped.Load()
}

// StartExecutor spawns a single dispatch-loop worker.
func (p *LockFreePool) StartExecutor(pollInterval time.Duration) {
	p.StartExecutorWithWorkers(pollInterval, 1)
}

// StartExecutorWithWorkers spawns workers dispatch-loop goroutines.
func (p *LockFreePool) StartExecutorWithWorkers(pollInterval time.Duration, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.dispatchLoop(i, pollInterval)
	}
}

func (p *LockFreePool) dispatchLoop(workerIndex int, pollInterval time.Duration) {
	defer p.wg.Done()
	ctx := context.Background()
	for {
		task, ok := p.pop()
		if !ok {
			if p.stopped.Load() {
				return
			}
			select {
			case <-p.notify:
			case <-p.after(pollInterval):
			}
			continue
		}

		p.metrics.Counter(PoolDequeuedTotal).Inc()
		capitan.Info(ctx, SignalPoolDequeued,
			FieldTaskID.Field(int(task.id)),
			FieldWorkerIndex.Field(workerIndex),
		)

		_ = p.status.Update(ctx, task.id, TaskRunning)
		result, err := p.backend.Execute(ctx, task.cmd)
		if err != nil {
			_ = p.status.Update(ctx, task.id, TaskFailed)
		} else {
			_ = p.status.Update(ctx, task.id, TaskCompleted)
		}

		if task.sender != nil {
			task.sender.Send(ctx, TaskResult{Value: result, Err: err})
		}
	}
}

func (p *LockFreePool) after(d time.Duration) <-chan time.Time {
	if d <= 0 {
		d = 50 * time.Millisecond
	}
	return p.clock.After(d)
}

// ExecuteTask enqueues cmd and blocks until it completes.
func (p *LockFreePool) ExecuteTask(ctx context.Context, cmd Command) (ExecResult, *Error) {
	sender, handle := NewResultHandle(0)
	if _, err := p.EnqueueWithResult(ctx, cmd, sender); err != nil {
		return ExecResult{}, err
	}
	return handle.Wait(ctx)
}

// Stop sets the cooperative stop flag, rejects further Enqueue calls, and
// waits for every dispatch-loop goroutine to exit. Workers keep popping
// until the queue is empty, so tasks already queued when Stop is called
// still run; in-flight subprocesses are not killed.
func (p *LockFreePool) Stop() {
	p.stopped.Store(true)
	select {
	case p.notify <- struct{}{}:
	default:
	}
	p.wg.Wait()
	capitan.Info(context.Background(), SignalPoolStopped)
}

// ForceStop behaves like Stop but additionally closes the backend.
func (p *LockFreePool) ForceStop() error {
	p.Stop()
	return p.backend.Close()
}
