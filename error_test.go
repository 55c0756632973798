package execpool

import (
	"errors"
	"testing"
	"time"
)

func TestError_Predicates(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want Kind
	}{
		{"io", newIOError(errors.New("boom")), IOErrorKind},
		{"timeout", newTimeoutError(time.Second), TimeoutErrorKind},
		{"child", newChildError("signal killed"), ChildErrorKind},
		{"queue full", newQueueFullError(), QueueFullErrorKind},
		{"queue closed", newQueueClosedError(), QueueClosedErrorKind},
		{"sender gone", newHandleSenderGoneError(), HandleSenderGoneErrorKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.want {
				t.Fatalf("expected kind %v, got %v", tt.want, tt.err.Kind)
			}

			preds := map[Kind]func() bool{
				IOErrorKind:               tt.err.IsIOError,
				TimeoutErrorKind:          tt.err.IsTimeout,
				ChildErrorKind:            tt.err.IsChildError,
				QueueFullErrorKind:        tt.err.IsQueueFull,
				QueueClosedErrorKind:      tt.err.IsQueueClosed,
				HandleSenderGoneErrorKind: tt.err.IsHandleSenderGone,
			}
			for kind, pred := range preds {
				if got := pred(); got != (kind == tt.want) {
					t.Errorf("predicate for %v returned %v", kind, got)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	err := newIOError(cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through Unwrap to the cause")
	}
}

func TestError_TimeoutCarriesDuration(t *testing.T) {
	err := newTimeoutError(250 * time.Millisecond)
	if err.Duration != 250*time.Millisecond {
		t.Errorf("expected duration 250ms, got %v", err.Duration)
	}
}

func TestError_NilSafety(t *testing.T) {
	var err *Error
	if err.Error() != "<nil>" {
		t.Errorf("expected <nil> string, got %q", err.Error())
	}
	if err.Unwrap() != nil {
		t.Error("expected nil Unwrap on nil *Error")
	}
	if err.IsTimeout() {
		t.Error("nil *Error must not report any Kind")
	}
}
