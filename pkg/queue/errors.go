package queue

import "errors"

var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("queue: repository cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload
	ErrPayloadNil = errors.New("queue: payload cannot be nil")

	// ErrInvalidPriority is returned when priority is outside valid range
	ErrInvalidPriority = errors.New("queue: priority must be between 0 and 100")

	// ErrQueueFull is returned by storage that has reached its capacity.
	ErrQueueFull = errors.New("queue: capacity reached")

	// ErrTaskExists is returned when a task ID is already stored.
	ErrTaskExists = errors.New("queue: task already exists")

	// ErrTaskNotFound is returned for unknown task IDs.
	ErrTaskNotFound = errors.New("queue: task not found")

	// ErrTaskNotProcessing is returned when completing or failing a task that
	// is not claimed.
	ErrTaskNotProcessing = errors.New("queue: task is not in processing state")

	// ErrNoTaskToClaim is returned by ClaimTask when nothing is due.
	ErrNoTaskToClaim = errors.New("queue: no task to claim")

	// ErrHandlerNotFound is returned when no handler is registered for a task
	ErrHandlerNotFound = errors.New("queue: no handler registered for task")

	// ErrNoHandlers is returned when worker has no handlers registered
	ErrNoHandlers = errors.New("queue: no task handlers registered")

	ErrWorkerStarted    = errors.New("queue: worker already started")
	ErrWorkerNotStarted = errors.New("queue: worker not started")
)
