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

// Observability constants for the command pool.
const (
	PoolQueueDepthGauge = metricz.Key("pool.queue_depth")
	PoolEnqueuedTotal   = metricz.Key("pool.enqueued.total")
	PoolDequeuedTotal   = metricz.Key("pool.dequeued.total")
)

type poolTask struct {
	id     TaskID
	cmd    Command
	sender *ResultSender
}

// Pool is a bounded or unbounded FIFO command queue backed by a mutex and
// condition variable, paired with a configurable number of dispatch-loop
// worker goroutines that forward dequeued tasks to a Backend. maxSize of 0
// means unbounded.
type Pool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	queue    []poolTask
	maxSize  int

	backend Backend
	status  *StatusTracker
	idGen   *IDGenerator
	clock   clockz.Clock

	stopped atomic.Bool
	wg      sync.WaitGroup

	metrics *metricz.Registry
}

// NewPool creates an unbounded Pool dispatching through backend. Pass a
// StatusTracker to have every enqueued task's lifecycle published to it, or
// nil to skip status tracking.
func NewPool(backend Backend, status *StatusTracker) *Pool {
	return NewBoundedPool(backend, status, 0)
}

// NewBoundedPool creates a Pool whose queue never holds more than maxSize
// tasks. maxSize <= 0 means unbounded.
func NewBoundedPool(backend Backend, status *StatusTracker, maxSize int) *Pool {
	metrics := metricz.New()
	metrics.Gauge(PoolQueueDepthGauge)
	metrics.Counter(PoolEnqueuedTotal)
	metrics.Counter(PoolDequeuedTotal)

	if status == nil {
		status = NewStatusTracker()
	}

	p := &Pool{
		maxSize: maxSize,
		backend: backend,
		status:  status,
		idGen:   NewIDGenerator(),
		clock:   clockz.RealClock,
		metrics: metrics,
	}
	p.notEmpty = sync.NewCond(&p.mu)
	p.notFull = sync.NewCond(&p.mu)
	return p
}

// WithClock returns p after switching its dispatch poll clock to clock. Call
// before StartExecutor.
func (p *Pool) WithClock(clock clockz.Clock) *Pool {
	p.clock = clock
	return p
}

func (p *Pool) isBounded() bool { return p.maxSize > 0 }

// Enqueue adds cmd to the queue, blocking while the queue is full (bounded
// pools only) until a slot frees or the pool is stopped. It returns the
// assigned TaskID, or a QueueClosedError if the pool has been stopped.
func (p *Pool) Enqueue(ctx context.Context, cmd Command) (TaskID, *Error) {
	return p.enqueue(ctx, cmd, nil)
}

// EnqueueWithResult behaves like Enqueue but additionally delivers the
// task's outcome to sender when it completes.
func (p *Pool) EnqueueWithResult(ctx context.Context, cmd Command, sender *ResultSender) (TaskID, *Error) {
	return p.enqueue(ctx, cmd, sender)
}

func (p *Pool) enqueue(ctx context.Context, cmd Command, sender *ResultSender) (TaskID, *Error) {
	p.mu.Lock()
	if p.isBounded() {
		// sync.Cond.Wait has no way to watch ctx itself, so a canceled ctx
		// would otherwise leave Enqueue parked until something else signals
		// notFull. AfterFunc gives the waiter its own wakeup: once ctx is
		// done it re-broadcasts notFull, the loop below wakes, rechecks
		// ctx.Err(), and returns instead of waiting for an unrelated
		// dequeue/Clear/Stop.
		stop := context.AfterFunc(ctx, func() {
			p.mu.Lock()
			p.notFull.Broadcast()
			p.mu.Unlock()
		})
		defer stop()
	}
	for p.isBounded() && len(p.queue) >= p.maxSize && !p.stopped.Load() {
		if ctx.Err() != nil {
			p.mu.Unlock()
			return 0, newIOError(ctx.Err())
		}
		p.notFull.Wait()
	}
	if p.stopped.Load() {
		p.mu.Unlock()
		return 0, newQueueClosedError()
	}

	id := p.idGen.Next()
	p.queue = append(p.queue, poolTask{id: id, cmd: cmd, sender: sender})
	depth := len(p.queue)
	p.mu.Unlock()

	p.status.Register(id)
	p.metrics.Counter(PoolEnqueuedTotal).Inc()
	p.metrics.Gauge(PoolQueueDepthGauge).Set(float64(depth))
	capitan.Info(ctx, SignalPoolEnqueued,
		FieldTaskID.Field(int(id)),
		FieldProgram.Field(cmd.Program),
		FieldQueueLen.Field(depth),
	)
	p.notEmpty.Signal()
	return id, nil
}

// TryEnqueue behaves like Enqueue but never blocks: against a full bounded
// queue it immediately returns a QueueFullError.
func (p *Pool) TryEnqueue(ctx context.Context, cmd Command) (TaskID, *Error) {
	p.mu.Lock()
	if p.stopped.Load() {
		p.mu.Unlock()
		return 0, newQueueClosedError()
	}
	if p.isBounded() && len(p.queue) >= p.maxSize {
		p.mu.Unlock()
		capitan.Warn(ctx, SignalPoolQueueFull, FieldMaxSize.Field(p.maxSize))
		return 0, newQueueFullError()
	}

	id := p.idGen.Next()
	p.queue = append(p.queue, poolTask{id: id, cmd: cmd})
	depth := len(p.queue)
	p.mu.Unlock()

	p.status.Register(id)
	p.metrics.Counter(PoolEnqueuedTotal).Inc()
	p.metrics.Gauge(PoolQueueDepthGauge).Set(float64(depth))
	p.notEmpty.Signal()
	return id, nil
}

// EnqueueBatch enqueues every command in cmds, in order, by calling Enqueue
// once per command. It blocks like Enqueue if the pool is bounded and full,
// and on the first error returns the IDs enqueued so far with that error.
func (p *Pool) EnqueueBatch(ctx context.Context, cmds []Command) ([]TaskID, *Error) {
	ids := make([]TaskID, 0, len(cmds))
	for _, cmd := range cmds {
		id, err := p.Enqueue(ctx, cmd)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Len returns the current queue depth.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Clear discards every currently queued (not yet dispatched) task and
// returns how many were removed.
func (p *Pool) Clear() int {
	p.mu.Lock()
	removed := len(p.queue)
	p.queue = nil
	p.mu.Unlock()
	p.notFull.Broadcast()
	capitan.Info(context.Background(), SignalPoolCleared, FieldRemoved.Field(removed))
	return removed
}

// IsRunning reports whether Stop has not yet been called.
func (p *Pool) IsRunning() bool {
	return !p.stopped.Load()
}

func (p *Pool) dequeue() (poolTask, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.stopped.Load() {
		p.notEmpty.Wait()
	}
	if len(p.queue) == 0 {
		return poolTask{}, false
	}
	task := p.queue[0]
	p.queue = p.queue[1:]
	if p.isBounded() {
		p.notFull.Signal()
	}
	p.metrics.Gauge(PoolQueueDepthGauge).Set(float64(len(p.queue)))
	return task, true
}

// StartExecutor spawns a single dispatch-loop worker. An idle worker blocks
// on the queue's condition variable, which Enqueue and Stop signal, so it
// wakes immediately. That wait has no timeout, and dequeue only comes back
// empty after Stop, when the worker exits, so pollInterval does not bound
// how long an idle worker waits.
func (p *Pool) StartExecutor(pollInterval time.Duration) {
	p.StartExecutorWithWorkers(pollInterval, 1)
}

// StartExecutorWithWorkers spawns workers dispatch-loop goroutines.
func (p *Pool) StartExecutorWithWorkers(pollInterval time.Duration, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.dispatchLoop(i, pollInterval)
	}
}

func (p *Pool) dispatchLoop(workerIndex int, pollInterval time.Duration) {
	defer p.wg.Done()
	ctx := context.Background()
	for {
		if p.stopped.Load() {
			p.mu.Lock()
			empty := len(p.queue) == 0
			p.mu.Unlock()
			if empty {
				return
			}
		}

		task, ok := p.dequeue()
		if !ok {
			if p.stopped.Load() {
				return
			}
			if pollInterval > 0 {
				<-p.clock.After(pollInterval)
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

// ExecuteTask enqueues cmd and blocks until it completes, returning its
// result synchronously without requiring a ResultHandle or StatusTracker
// poll.
func (p *Pool) ExecuteTask(ctx context.Context, cmd Command) (ExecResult, *Error) {
	sender, handle := NewResultHandle(0)
	if _, err := p.EnqueueWithResult(ctx, cmd, sender); err != nil {
		return ExecResult{}, err
	}
	return handle.Wait(ctx)
}

// Stop sets the cooperative stop flag and rejects further Enqueue calls.
// Dispatch loops keep dequeuing until the queue is empty and then exit, so
// tasks already queued when Stop is called still run; in-flight
// subprocesses are not killed. Stop returns once every dispatch-loop
// goroutine has exited.
func (p *Pool) Stop() {
	p.stopped.Store(true)
	p.mu.Lock()
	p.notEmpty.Broadcast()
	p.notFull.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
	capitan.Info(context.Background(), SignalPoolStopped)
}

// ForceStop calls Stop, which waits for the queued and in-flight tasks to
// finish, and then calls Close on the backend. It does not kill
// subprocesses that are still running.
func (p *Pool) ForceStop() error {
	p.Stop()
	return p.backend.Close()
}
