// Package workers provides an async worker pool for background task execution.
// Tasks are routed to the executor registered for their type; results are
// published on a buffered channel for optional monitoring.
package workers

import (
	"context"
	"errors"
	"time"
)

// Task represents a unit of work to be executed by a worker.
type Task struct {
	ID      string          // Unique task identifier
	Type    string          // Task type, selects the executor
	Payload any             // Executor-specific payload
	Context context.Context // Task-specific context for cancellation/timeout
}

// Result represents the outcome of a task execution.
type Result struct {
	TaskID   string        // ID of the executed task
	Type     string        // Type of the executed task
	Error    error         // Error if execution failed
	Duration time.Duration // Execution duration
}

// PoolMetrics tracks execution metrics for the worker pool.
type PoolMetrics struct {
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksFailed    uint64
	ResultsDropped uint64
	TotalDuration  time.Duration
}

// TaskExecutor runs tasks of one type.
type TaskExecutor func(ctx context.Context, task Task) error

var (
	ErrPoolStopped   = errors.New("worker pool is stopped")
	ErrQueueFull     = errors.New("worker pool queue is full")
	ErrUnknownTask   = errors.New("unknown task type")
	ErrTaskCancelled = errors.New("task cancelled")
)

// Constants for worker pool configuration
const (
	DefaultTaskTimeout = 30 * time.Second
	DefaultPoolSize    = 1
	DefaultQueueSize   = 256
)
