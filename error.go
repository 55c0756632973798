package execpool

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies which of the six error categories an Error belongs to.
type Kind int

// Error kinds. See spec §7.
const (
	// IOErrorKind wraps a spawn failure, pipe-read failure, wait failure, or
	// IPC read/write failure.
	IOErrorKind Kind = iota
	// TimeoutErrorKind carries the duration that was exceeded.
	TimeoutErrorKind
	// ChildErrorKind carries a description of abnormal child/worker state:
	// signal death, IPC protocol violation, or kill failure. A non-zero exit
	// status alone is never a ChildError — see ExecResult.ExitCode.
	ChildErrorKind
	// QueueFullErrorKind is returned by TryEnqueue against a full bounded pool.
	QueueFullErrorKind
	// QueueClosedErrorKind is returned by Enqueue after Stop.
	QueueClosedErrorKind
	// HandleSenderGoneErrorKind is returned by ResultHandle reads after the
	// sender was dropped without sending.
	HandleSenderGoneErrorKind
)

func (k Kind) String() string {
	switch k {
	case IOErrorKind:
		return "io"
	case TimeoutErrorKind:
		return "timeout"
	case ChildErrorKind:
		return "child"
	case QueueFullErrorKind:
		return "queue_full"
	case QueueClosedErrorKind:
		return "queue_closed"
	case HandleSenderGoneErrorKind:
		return "handle_sender_gone"
	default:
		return "unknown"
	}
}

// Error is the single result type that threads through every execpool layer.
// Each boundary maps a foreign error (OS errno, IPC decode failure, ...) into
// one of the Kind values rather than letting it propagate unwrapped.
type Error struct {
	Err      error
	Duration time.Duration
	Kind     Kind
}

// newIOError wraps a system error as an IOErrorKind Error.
func newIOError(err error) *Error {
	return &Error{Kind: IOErrorKind, Err: err}
}

// newTimeoutError reports that the given duration was exceeded.
func newTimeoutError(d time.Duration) *Error {
	return &Error{Kind: TimeoutErrorKind, Duration: d, Err: fmt.Errorf("timed out after %v", d)}
}

// newChildError reports abnormal child/worker state.
func newChildError(msg string) *Error {
	return &Error{Kind: ChildErrorKind, Err: errors.New(msg)}
}

// ErrQueueFull is returned (wrapped in an *Error) by TryEnqueue against a
// full bounded pool.
var ErrQueueFull = errors.New("execpool: queue is full")

// ErrQueueClosed is returned (wrapped in an *Error) by Enqueue after Stop.
var ErrQueueClosed = errors.New("execpool: queue is stopped")

// ErrHandleSenderGone is returned (wrapped in an *Error) when a ResultHandle
// is read after its sender was dropped without ever sending a result.
var ErrHandleSenderGone = errors.New("execpool: result sender dropped without sending")

func newQueueFullError() *Error {
	return &Error{Kind: QueueFullErrorKind, Err: ErrQueueFull}
}

func newQueueClosedError() *Error {
	return &Error{Kind: QueueClosedErrorKind, Err: ErrQueueClosed}
}

func newHandleSenderGoneError() *Error {
	return &Error{Kind: HandleSenderGoneErrorKind, Err: ErrHandleSenderGone}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Kind == TimeoutErrorKind {
		return fmt.Sprintf("timeout: %v", e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTimeout reports whether the error is a TimeoutErrorKind.
func (e *Error) IsTimeout() bool {
	return e != nil && e.Kind == TimeoutErrorKind
}

// IsIOError reports whether the error is an IOErrorKind.
func (e *Error) IsIOError() bool {
	return e != nil && e.Kind == IOErrorKind
}

// IsChildError reports whether the error is a ChildErrorKind.
func (e *Error) IsChildError() bool {
	return e != nil && e.Kind == ChildErrorKind
}

// IsQueueFull reports whether the error is a QueueFullErrorKind.
func (e *Error) IsQueueFull() bool {
	return e != nil && e.Kind == QueueFullErrorKind
}

// IsQueueClosed reports whether the error is a QueueClosedErrorKind.
func (e *Error) IsQueueClosed() bool {
	return e != nil && e.Kind == QueueClosedErrorKind
}

// IsHandleSenderGone reports whether the error is a HandleSenderGoneErrorKind.
func (e *Error) IsHandleSenderGone() bool {
	return e != nil && e.Kind == HandleSenderGoneErrorKind
}
