package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrUnknownJobType is returned when no executor handles a job type
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrJobAlreadyQueued is returned when a job of the same type is pending or running
	ErrJobAlreadyQueued = errors.New("job of this type already queued")
)
