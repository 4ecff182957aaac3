// Package classify defines the contract for batch paragraph-role
// classification. Submission is asynchronous: the classifier drops its
// result file into storage, and the pipeline picks it up from the storage
// trigger rather than by waiting on the job.
package classify

import "context"

// Request names the feature CSV to score and the prefix the result files
// are written under.
type Request struct {
	// InputURI is the storage URI of the feature CSV.
	InputURI string
	// OutputPrefix is the storage URI prefix for the result files.
	OutputPrefix string
}

// JobState is the coarse lifecycle of a classification job.
type JobState int

const (
	JobRunning JobState = iota
	JobDone
	JobFailed
)

// JobStatus is a point-in-time snapshot of a submitted job.
type JobStatus struct {
	State JobState
	Err   error
}

// Job is a handle to a submitted classification run.
type Job interface {
	ID() string
	Status(ctx context.Context) (JobStatus, error)
}

// Classifier submits feature rows for scoring.
type Classifier interface {
	Name() string
	Submit(ctx context.Context, req Request) (Job, error)
}
