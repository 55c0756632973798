package execpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
)

// TaskState is a task's position in its lifecycle.
type TaskState string

// Task lifecycle states. Valid transitions: Queued->Running, Queued->Canceled,
// Running->Completed, Running->Failed. All other transitions are rejected.
const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCanceled  TaskState = "canceled"
)

var validTransitions = map[TaskState]map[TaskState]bool{
	TaskQueued:  {TaskRunning: true, TaskCanceled: true},
	TaskRunning: {TaskCompleted: true, TaskFailed: true},
}

// StatusEventTransition is the hookz key for TransitionEvent.
const StatusEventTransition = hookz.Key("status.transition")

// TransitionEvent is emitted via hookz whenever a task's state changes.
type TransitionEvent struct {
	TaskID   TaskID
	Previous TaskState
	Current  TaskState
}

// ErrUnknownTask is returned by Get/Update/Remove for an unregistered TaskID.
var ErrUnknownTask = fmt.Errorf("execpool: unknown task id")

// ErrInvalidTransition is returned by Update when the requested state change
// is not permitted from the task's current state.
var ErrInvalidTransition = fmt.Errorf("execpool: invalid state transition")

// taskRecord is one registry entry: the task's current state plus the time
// it was first registered.
type taskRecord struct {
	state        TaskState
	registeredAt time.Time
}

// StatusTracker is a registry mapping TaskID to its current TaskState (and
// insertion timestamp), guarding every transition against validTransitions
// the way CircuitBreaker guards its own closed/open/half-open moves.
type StatusTracker struct {
	mu    sync.RWMutex
	tasks map[TaskID]taskRecord
	hooks *hookz.Hooks[TransitionEvent]
	clock clockz.Clock
}

// NewStatusTracker creates an empty StatusTracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		tasks: make(map[TaskID]taskRecord),
		hooks: hookz.New[TransitionEvent](),
		clock: clockz.RealClock,
	}
}

// WithClock switches s to clock for insertion timestamps and returns s.
func (s *StatusTracker) WithClock(clock clockz.Clock) *StatusTracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
	return s
}

// Register adds id to the tracker in TaskQueued state, stamped with the
// current time. Registering an already-known id is a no-op.
func (s *StatusTracker) Register(id TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; ok {
		return
	}
	s.tasks[id] = taskRecord{state: TaskQueued, registeredAt: s.clock.Now()}
}

// Get returns the current state of id.
func (s *StatusTracker) Get(id TaskID) (TaskState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tasks[id]
	if !ok {
		return "", ErrUnknownTask
	}
	return rec.state, nil
}

// RegisteredAt returns the time id was first registered.
func (s *StatusTracker) RegisteredAt(id TaskID) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tasks[id]
	if !ok {
		return time.Time{}, ErrUnknownTask
	}
	return rec.registeredAt, nil
}

// Update transitions id to next, rejecting the move if it is not listed in
// validTransitions for the task's current state.
func (s *StatusTracker) Update(ctx context.Context, id TaskID, next TaskState) error {
	s.mu.Lock()
	rec, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownTask
	}
	current := rec.state
	if !validTransitions[current][next] {
		s.mu.Unlock()
		capitan.Warn(ctx, SignalStatusRejected,
			FieldTaskID.Field(int(id)),
			FieldState.Field(string(next)),
			FieldPrevious.Field(string(current)),
		)
		return ErrInvalidTransition
	}
	rec.state = next
	s.tasks[id] = rec
	s.mu.Unlock()

	capitan.Info(ctx, SignalStatusTransitioned,
		FieldTaskID.Field(int(id)),
		FieldState.Field(string(next)),
		FieldPrevious.Field(string(current)),
	)
	_ = s.hooks.Emit(ctx, StatusEventTransition, TransitionEvent{TaskID: id, Previous: current, Current: next}) //nolint:errcheck
	return nil
}

// Remove deletes id from the tracker.
func (s *StatusTracker) Remove(id TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// CountByStatus returns how many tracked tasks are currently in state.
func (s *StatusTracker) CountByStatus(state TaskState) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.tasks {
		if rec.state == state {
			n++
		}
	}
	return n
}

// OnTransition registers a callback invoked after every accepted transition.
func (s *StatusTracker) OnTransition(fn func(context.Context, TransitionEvent) error) error {
	_, err := s.hooks.Hook(StatusEventTransition, fn)
	return err
}
