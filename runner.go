package execpool

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for the runner.
const (
	RunnerProcessedTotal = metricz.Key("runner.processed.total")
	RunnerSuccessesTotal = metricz.Key("runner.successes.total")
	RunnerTimeoutsTotal  = metricz.Key("runner.timeouts.total")
	RunnerDurationMs     = metricz.Key("runner.duration.ms")

	RunnerExecuteSpan = tracez.Key("runner.execute")

	RunnerTagProgram  = tracez.Tag("runner.program")
	RunnerTagTimedOut = tracez.Tag("runner.timed_out")
	RunnerTagExitCode = tracez.Tag("runner.exit_code")
)

// Runner spawns a single Command and enforces its Timeout, if any, racing
// subprocess completion against a deadline derived from clock.
type Runner struct {
	clock   clockz.Clock
	metrics *metricz.Registry
	tracer  *tracez.Tracer
}

// NewRunner creates a Runner using clockz.RealClock. Pass a clockz.FakeClock
// via WithClock in tests to control deadline expiry deterministically.
func NewRunner() *Runner {
	metrics := metricz.New()
	metrics.Counter(RunnerProcessedTotal)
	metrics.Counter(RunnerSuccessesTotal)
	metrics.Counter(RunnerTimeoutsTotal)
	metrics.Gauge(RunnerDurationMs)

	return &Runner{
		clock:   clockz.RealClock,
		metrics: metrics,
		tracer:  tracez.New(),
	}
}

// WithClock returns a copy of r using clock for deadlines.
func (r *Runner) WithClock(clock clockz.Clock) *Runner {
	cp := *r
	cp.clock = clock
	return &cp
}

// Metrics returns the runner's metric registry.
func (r *Runner) Metrics() *metricz.Registry { return r.metrics }

type execOutcome struct {
	res ExecResult
	err *Error
}

// Run executes cmd to completion, or until ctx is canceled or cmd.Timeout
// elapses, whichever happens first. On timeout the child process is killed
// and a TimeoutErrorKind *Error is returned.
func (r *Runner) Run(ctx context.Context, cmd Command) (ExecResult, *Error) {
	r.metrics.Counter(RunnerProcessedTotal).Inc()
	start := r.clock.Now()

	ctx, span := r.tracer.StartSpan(ctx, RunnerExecuteSpan)
	span.SetTag(RunnerTagProgram, cmd.Program)
	defer func() {
		elapsed := r.clock.Now().Sub(start)
		r.metrics.Gauge(RunnerDurationMs).Set(float64(elapsed.Milliseconds()))
		span.Finish()
	}()

	runCtx := ctx
	var cancel context.CancelFunc
	if cmd.HasTimeout() {
		runCtx, cancel = r.clock.WithTimeout(runCtx, cmd.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(runCtx, cmd.Program, cmd.Args...)
	if cmd.WorkingDir != "" {
		execCmd.Dir = cmd.WorkingDir
	}
	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	resultCh := make(chan execOutcome, 1)

	if err := execCmd.Start(); err != nil {
		return ExecResult{}, newIOError(err)
	}

	capitan.Info(ctx, SignalRunnerSpawned, FieldProgram.Field(cmd.Program))

	go func() {
		waitErr := execCmd.Wait()
		elapsed := r.clock.Now().Sub(start)
		res := ExecResult{
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			Duration: elapsed,
		}

		var execErr *Error
		if waitErr != nil {
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				if exitErr.ProcessState != nil && !exitErr.ProcessState.Exited() {
					execErr = newChildError("child process terminated by signal: " + exitErr.Error())
				} else {
					res.ExitCode = exitErr.ExitCode()
				}
			} else {
				execErr = newIOError(waitErr)
			}
		}

		// Unconditional: resultCh is buffered 1 and this is the only sender,
		// so the send never blocks. The caller may already have taken the
		// runCtx.Done() branch below and be waiting on this exact send to
		// finish killing/draining the child; racing it against runCtx.Done()
		// here would let this goroutine bail out too, leaving that wait
		// blocked forever.
		resultCh <- execOutcome{res: res, err: execErr}
	}()

	select {
	case out := <-resultCh:
		if out.err == nil {
			r.metrics.Counter(RunnerSuccessesTotal).Inc()
		}
		span.SetTag(RunnerTagExitCode, strconv.Itoa(out.res.ExitCode))
		return out.res, out.err
	case <-runCtx.Done():
		if cmd.HasTimeout() && runCtx.Err() == context.DeadlineExceeded {
			_ = execCmd.Process.Kill()
			r.metrics.Counter(RunnerTimeoutsTotal).Inc()
			span.SetTag(RunnerTagTimedOut, "true")
			capitan.Warn(ctx, SignalRunnerTimeout,
				FieldProgram.Field(cmd.Program),
				FieldDuration.Field(cmd.Timeout.Seconds()),
			)
			capitan.Warn(ctx, SignalRunnerKilled, FieldProgram.Field(cmd.Program))
			<-resultCh
			return ExecResult{}, newTimeoutError(cmd.Timeout)
		}
		_ = execCmd.Process.Kill()
		<-resultCh
		return ExecResult{}, newIOError(runCtx.Err())
	}
}
