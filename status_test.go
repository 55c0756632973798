package execpool

import (
	"context"
	"testing"

	"github.com/zoobzio/clockz"
)

func TestStatusTracker_RegisterAndGet(t *testing.T) {
	tr := NewStatusTracker()
	tr.Register(1)

	state, err := tr.Get(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != TaskQueued {
		t.Errorf("expected TaskQueued, got %v", state)
	}
}

func TestStatusTracker_RegisterIsIdempotent(t *testing.T) {
	tr := NewStatusTracker()
	tr.Register(1)
	if err := tr.Update(context.Background(), 1, TaskRunning); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr.Register(1) // re-registering an in-flight task must not reset it

	state, _ := tr.Get(1)
	if state != TaskRunning {
		t.Errorf("expected Register on a known id to be a no-op, state is %v", state)
	}
}

func TestStatusTracker_Get_UnknownID(t *testing.T) {
	tr := NewStatusTracker()
	if _, err := tr.Get(999); err != ErrUnknownTask {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
}

func TestStatusTracker_ValidTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []TaskState
	}{
		{"queued to running to completed", []TaskState{TaskRunning, TaskCompleted}},
		{"queued to running to failed", []TaskState{TaskRunning, TaskFailed}},
		{"queued to canceled", []TaskState{TaskCanceled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewStatusTracker()
			tr.Register(1)

			for _, next := range tt.path {
				if err := tr.Update(context.Background(), 1, next); err != nil {
					t.Fatalf("unexpected error transitioning to %v: %v", next, err)
				}
			}

			got, _ := tr.Get(1)
			want := tt.path[len(tt.path)-1]
			if got != want {
				t.Errorf("expected final state %v, got %v", want, got)
			}
		})
	}
}

func TestStatusTracker_InvalidTransitionsRejected(t *testing.T) {
	tests := []struct {
		name    string
		initial TaskState
		next    TaskState
	}{
		{"completed is terminal", TaskCompleted, TaskRunning},
		{"failed is terminal", TaskFailed, TaskRunning},
		{"cannot skip running", TaskQueued, TaskCompleted},
		{"cannot go backward", TaskRunning, TaskQueued},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewStatusTracker()
			tr.Register(1)
			if tt.initial != TaskQueued {
				// drive to the initial state via a legal path first.
				switch tt.initial {
				case TaskRunning:
					_ = tr.Update(context.Background(), 1, TaskRunning)
				case TaskCompleted:
					_ = tr.Update(context.Background(), 1, TaskRunning)
					_ = tr.Update(context.Background(), 1, TaskCompleted)
				case TaskFailed:
					_ = tr.Update(context.Background(), 1, TaskRunning)
					_ = tr.Update(context.Background(), 1, TaskFailed)
				}
			}

			before, _ := tr.Get(1)
			err := tr.Update(context.Background(), 1, tt.next)
			if err != ErrInvalidTransition {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			after, _ := tr.Get(1)
			if after != before {
				t.Errorf("rejected transition must leave state intact: was %v, now %v", before, after)
			}
		})
	}
}

func TestStatusTracker_CountByStatus(t *testing.T) {
	tr := NewStatusTracker()
	tr.Register(1)
	tr.Register(2)
	tr.Register(3)
	_ = tr.Update(context.Background(), 1, TaskRunning)
	_ = tr.Update(context.Background(), 2, TaskRunning)
	_ = tr.Update(context.Background(), 2, TaskCompleted)

	if n := tr.CountByStatus(TaskQueued); n != 1 {
		t.Errorf("expected 1 queued, got %d", n)
	}
	if n := tr.CountByStatus(TaskRunning); n != 1 {
		t.Errorf("expected 1 running, got %d", n)
	}
	if n := tr.CountByStatus(TaskCompleted); n != 1 {
		t.Errorf("expected 1 completed, got %d", n)
	}
}

func TestStatusTracker_Remove(t *testing.T) {
	tr := NewStatusTracker()
	tr.Register(1)
	tr.Remove(1)

	if _, err := tr.Get(1); err != ErrUnknownTask {
		t.Errorf("expected ErrUnknownTask after Remove, got %v", err)
	}
}

func TestStatusTracker_RegisteredAt(t *testing.T) {
	clock := clockz.NewFakeClock()
	tr := NewStatusTracker().WithClock(clock)

	before := clock.Now()
	tr.Register(1)

	ts, err := tr.RegisteredAt(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ts.Equal(before) {
		t.Errorf("expected registration timestamp %v, got %v", before, ts)
	}
}

func TestStatusTracker_OnTransition(t *testing.T) {
	tr := NewStatusTracker()
	tr.Register(1)

	events := make(chan TransitionEvent, 1)
	if err := tr.OnTransition(func(_ context.Context, e TransitionEvent) error {
		events <- e
		return nil
	}); err != nil {
		t.Fatalf("unexpected error registering hook: %v", err)
	}

	if err := tr.Update(context.Background(), 1, TaskRunning); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case e := <-events:
		if e.Previous != TaskQueued || e.Current != TaskRunning {
			t.Errorf("unexpected transition event: %+v", e)
		}
	default:
		t.Error("expected OnTransition hook to fire")
	}
}
