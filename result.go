package execpool

import (
	"context"
	"sync"

	"github.com/zoobzio/hookz"
)

// TaskResult bundles ExecResult with the *Error (if any) produced for a
// single Command.
type TaskResult struct {
	Value ExecResult
	Err   *Error
}

// ResultEventDelivered is the hookz key for ResultEvent.
const ResultEventDelivered = hookz.Key("result.delivered")

// ResultEvent is emitted via hookz whenever a ResultSender delivers a value.
type ResultEvent struct {
	TaskID TaskID
	Result TaskResult
}

// ResultSender is the write half of a one-shot result rendezvous created by
// NewResultHandle. Send may be called at most once; subsequent calls are
// no-ops.
type ResultSender struct {
	taskID TaskID
	ch     chan TaskResult
	once   *sync.Once
	hooks  *hookz.Hooks[ResultEvent]
}

// ResultHandle is the read half of a one-shot result rendezvous. Wait blocks
// until a value is sent or ctx is done; TryGet returns immediately.
type ResultHandle struct {
	taskID TaskID
	ch     chan TaskResult
}

// NewResultHandle creates a linked ResultSender/ResultHandle pair for id.
func NewResultHandle(id TaskID) (*ResultSender, *ResultHandle) {
	ch := make(chan TaskResult, 1)
	sender := &ResultSender{
		taskID: id,
		ch:     ch,
		once:   &sync.Once{},
		hooks:  hookz.New[ResultEvent](),
	}
	return sender, &ResultHandle{taskID: id, ch: ch}
}

// Send delivers result to the paired ResultHandle. Only the first call has
// any effect; the channel is closed afterward so a Handle read after a
// sender was dropped without sending observes HandleSenderGoneError instead
// of blocking forever.
func (s *ResultSender) Send(ctx context.Context, result TaskResult) {
	s.once.Do(func() {
		s.ch <- result
		close(s.ch)
		_ = s.hooks.Emit(ctx, ResultEventDelivered, ResultEvent{TaskID: s.taskID, Result: result}) //nolint:errcheck
	})
}

// OnResult registers a callback invoked when Send delivers a value.
func (s *ResultSender) OnResult(fn func(context.Context, ResultEvent) error) error {
	_, err := s.hooks.Hook(ResultEventDelivered, fn)
	return err
}

// Close releases the sender without delivering a value, causing any waiter
// to observe HandleSenderGoneError. Safe to call after Send; it is then a
// no-op.
func (s *ResultSender) Close() {
	s.once.Do(func() {
		close(s.ch)
	})
}

// Wait blocks until a result is sent, the sender is closed without sending,
// or ctx is done.
func (h *ResultHandle) Wait(ctx context.Context) (ExecResult, *Error) {
	select {
	case result, ok := <-h.ch:
		if !ok {
			return ExecResult{}, newHandleSenderGoneError()
		}
		return result.Value, result.Err
	case <-ctx.Done():
		return ExecResult{}, newIOError(ctx.Err())
	}
}

// TryGet returns immediately: (result, true) if one is already available, or
// (TaskResult{}, false) if none has arrived yet. Once a sent result has been
// taken by a Wait or TryGet call, the channel is drained and closed, so
// later calls report HandleSenderGoneError rather than the result again:
// a closed, drained channel cannot distinguish "already consumed" from
// "sender gone".
func (h *ResultHandle) TryGet() (TaskResult, bool) {
	select {
	case result, ok := <-h.ch:
		if !ok {
			return TaskResult{Err: newHandleSenderGoneError()}, true
		}
		return result, true
	default:
		return TaskResult{}, false
	}
}
