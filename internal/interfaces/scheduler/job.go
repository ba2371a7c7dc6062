package scheduler

import "context"

// Job is a unit of work run by the worker pool.
type Job interface {
	// Execute runs the job. ctx carries the pool's per-job timeout.
	Execute(ctx context.Context) error

	// Key identifies what the job works on, for logs and traces.
	Key() string

	Description() string
}
