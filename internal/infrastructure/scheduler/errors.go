package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when work is submitted to a stopped component
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the dispatch queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrJobInProgress is returned when a run is requested while the previous one is still going
	ErrJobInProgress = errors.New("job already in progress")

	// ErrLeaseHeld is returned when another instance holds the job's lease
	ErrLeaseHeld = errors.New("lease held by another instance")
)
