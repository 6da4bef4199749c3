package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores for unknown job ids.
var ErrNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExtract reads and extracts the file of an import session.
	JobTypeExtract JobType = "extract"
	// JobTypeSubmitPassword retries a session's extraction with a password.
	JobTypeSubmitPassword JobType = "submit_password"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ExtractJob moves one import session through reading and parsing in the
// background. The password, when set, is never persisted in the job store.
type ExtractJob struct {
	JobID     string  `json:"job_id"`
	Type      JobType `json:"type"`
	SessionID string  `json:"session_id"`
	FileName  string  `json:"file_name,omitempty"`

	Password string `json:"-"`

	Status JobStatus `json:"status"`
	// Phase is the session phase the job left behind, e.g. ready or needs_password.
	Phase string `json:"phase,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error string `json:"error,omitempty"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ExtractJob) GetID() string {
	return j.JobID
}

func (j *ExtractJob) GetType() JobType {
	if j.Type == "" {
		return JobTypeExtract
	}
	return j.Type
}

func (j *ExtractJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishExtract(ctx context.Context, job *ExtractJob) error
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start begins consuming jobs. The handler is called for each job.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job failed.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job status for the API.
type JobStore interface {
	SaveJob(ctx context.Context, job *ExtractJob) error
	GetJob(ctx context.Context, jobID string) (*ExtractJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExtractJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	SessionID string
	Status    JobStatus
	Limit     int
	Offset    int
}
