package task

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// TaskTypeReport identifies report generation tasks in logs.
const TaskTypeReport = "report"

var (
	// ErrQueueFull is returned by Runner.Submit when no queue slot is free.
	ErrQueueFull = errors.New("task queue is full")

	// ErrRunnerStopped is returned by Runner.Submit after Stop.
	ErrRunnerStopped = errors.New("task runner is stopped")
)

// Task is a unit of background work.
type Task interface {
	// ID is the reference the runner assigns when the task is accepted.
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic. The task bounds its own duration.
	Execute(ctx context.Context) error
}

// Dispatcher accepts tasks for asynchronous execution without blocking.
type Dispatcher interface {
	Submit(task Task) error
}
