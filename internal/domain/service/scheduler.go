package service

import (
	"context"

	"parkshare/internal/domain/entity"
)

// JobHandler runs a due job. A returned error makes durable schedulers retry the job.
type JobHandler func(ctx context.Context, job entity.Job) error

// Scheduler runs jobs at a point in time.
// Scheduling a job with an existing key replaces the previous one.
type Scheduler interface {
	// Register binds the handler of a job kind. It must be called before Run.
	Register(kind entity.JobKind, handler JobHandler)

	// Schedule stores the job until its run time.
	Schedule(ctx context.Context, job entity.Job) error

	// Cancel removes a pending job. Cancelling an unknown key is not an error.
	Cancel(ctx context.Context, key string) error

	// Run dispatches due jobs until ctx is done.
	Run(ctx context.Context) error
}
