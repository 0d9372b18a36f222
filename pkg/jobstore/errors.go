package jobstore

import "errors"

var (
	// ErrJobNotFound is returned when no job exists with the requested id.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobTypeRequired is returned when creating a job without a type label.
	ErrJobTypeRequired = errors.New("job type cannot be empty")

	// ErrEmptyUpdate is returned when an update mentions no fields at all.
	ErrEmptyUpdate = errors.New("update must set at least one field")

	// ErrFailedToCreateJob is returned when the backend rejects a job insert.
	ErrFailedToCreateJob = errors.New("failed to create job in storage")

	// ErrFailedToUpdateJob is returned when the backend rejects a job update.
	ErrFailedToUpdateJob = errors.New("failed to update job in storage")

	// ErrFailedToListJobs is returned when the backend cannot list jobs.
	ErrFailedToListJobs = errors.New("failed to list jobs from storage")
)
