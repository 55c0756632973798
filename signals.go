package execpool

import "github.com/zoobzio/capitan"

// Signal constants for execpool component events.
// Signals follow the pattern: <component>.<event>.
const (
	// Pool signals.
	SignalPoolEnqueued  capitan.Signal = "pool.enqueued"
	SignalPoolQueueFull capitan.Signal = "pool.queue_full"
	SignalPoolDequeued  capitan.Signal = "pool.dequeued"
	SignalPoolStopped   capitan.Signal = "pool.stopped"
	SignalPoolCleared   capitan.Signal = "pool.cleared"

	// Semaphore signals.
	SignalSemaphoreSaturated capitan.Signal = "semaphore.saturated"
	SignalSemaphoreAcquired  capitan.Signal = "semaphore.acquired"
	SignalSemaphoreReleased  capitan.Signal = "semaphore.released"

	// Runner (C4) signals.
	SignalRunnerSpawned capitan.Signal = "runner.spawned"
	SignalRunnerTimeout capitan.Signal = "runner.timeout"
	SignalRunnerKilled  capitan.Signal = "runner.killed"

	// Process-pool backend signals.
	SignalBackendPoolWorkerCrashed   capitan.Signal = "backend.pool_worker_crashed"
	SignalBackendPoolWorkerRespawned capitan.Signal = "backend.pool_worker_respawned"

	// Status tracker signals.
	SignalStatusTransitioned capitan.Signal = "status.transitioned"
	SignalStatusRejected     capitan.Signal = "status.transition_rejected"
)

// Common field keys using capitan primitive types.
// All keys use primitive types to avoid custom struct serialization.
var (
	// Common fields.
	FieldTaskID    = capitan.NewIntKey("task_id")       // Task identifier (truncated to int for capitan)
	FieldProgram   = capitan.NewStringKey("program")     // Command program name
	FieldError     = capitan.NewStringKey("error")       // Error message
	FieldTimestamp = capitan.NewFloat64Key("timestamp") // Unix timestamp

	// Pool fields.
	FieldQueueLen    = capitan.NewIntKey("queue_len")    // Current queue length
	FieldMaxSize     = capitan.NewIntKey("max_size")     // Bounded queue capacity
	FieldWorkerIndex = capitan.NewIntKey("worker_index") // Dispatch-loop worker index
	FieldRemoved     = capitan.NewIntKey("removed")      // Tasks discarded by Clear

	// Semaphore fields.
	FieldPermits       = capitan.NewIntKey("permits")        // Total permit count
	FieldActivePermits = capitan.NewIntKey("active_permits") // Currently held permits

	// Runner fields.
	FieldDuration = capitan.NewFloat64Key("duration") // Elapsed/timeout duration in seconds
	FieldExitCode = capitan.NewIntKey("exit_code")    // Subprocess exit code

	// Process-pool backend fields.
	FieldWorkerSlot = capitan.NewIntKey("worker_slot") // Index of the resident worker slot

	// Status tracker fields.
	FieldState    = capitan.NewStringKey("state")    // Task lifecycle state
	FieldPrevious = capitan.NewStringKey("previous") // Previous task lifecycle state
)
