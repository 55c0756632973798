package execpool

import (
	"errors"
	"runtime"
)

// Mode selects which Backend strategy BuildBackend constructs.
type Mode int

const (
	// ModeProcess spawns one subprocess per Command, optionally gated by a
	// counting Semaphore on the number of live children.
	ModeProcess Mode = iota
	// ModeThread runs a fixed pool of goroutine workers, each blocking on its
	// own subprocess, draining an internal queue.
	ModeThread
	// ModeProcessPool runs a fixed set of long-lived resident child processes
	// speaking the length-framed IPC protocol over stdin/stdout.
	ModeProcessPool
)

func (m Mode) String() string {
	switch m {
	case ModeProcess:
		return "process"
	case ModeThread:
		return "thread"
	case ModeProcessPool:
		return "process_pool"
	default:
		return "unknown"
	}
}

// ExecConfig configures BuildBackend. Workers is the resident worker count
// for ModeThread and ModeProcessPool; it is ignored by ModeProcess.
// ConcurrencyLimit, if positive, gates the backend's simultaneously
// dispatched requests with a Semaphore of that many permits (live
// subprocesses for ModeProcess/ModeThread, in-flight IPC round-trips for
// ModeProcessPool); zero means unbounded.
type ExecConfig struct {
	Mode             Mode
	Workers          int
	ConcurrencyLimit int
	WorkerProgram    string
	WorkerArgs       []string
}

// ErrInvalidConfig is returned, as a plain error, by BuildBackend when
// cfg.Mode matches none of its cases. Field-level problems are reported by
// the errors Validate returns.
var ErrInvalidConfig = errors.New("execpool: invalid config")

// DefaultWorkers returns the detected hardware parallelism, falling back to
// 4 when the runtime reports a non-positive value.
func DefaultWorkers() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 4
}

// NewExecConfig returns an ExecConfig for mode with Workers defaulted via
// DefaultWorkers and no concurrency limit.
func NewExecConfig(mode Mode) ExecConfig {
	return ExecConfig{Mode: mode, Workers: DefaultWorkers()}
}

// Validate checks that cfg's fields are consistent with its Mode.
func (cfg ExecConfig) Validate() error {
	switch cfg.Mode {
	case ModeProcess:
		if cfg.ConcurrencyLimit < 0 {
			return errors.New("execpool: negative ConcurrencyLimit")
		}
	case ModeThread:
		if cfg.Workers <= 0 {
			return errors.New("execpool: ModeThread requires Workers > 0")
		}
	case ModeProcessPool:
		if cfg.Workers <= 0 {
			return errors.New("execpool: ModeProcessPool requires Workers > 0")
		}
		if cfg.WorkerProgram == "" {
			return errors.New("execpool: ModeProcessPool requires WorkerProgram")
		}
	default:
		return errors.New("execpool: unknown Mode")
	}
	return nil
}
