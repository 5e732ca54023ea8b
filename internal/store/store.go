package store

import (
	"context"
	"errors"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, uid uuid.UUID) (*models.Job, error)
	GetJobByHash(ctx context.Context, hashedUID string) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, uid uuid.UUID, status string, opts ...JobUpdateOption) error
	CompleteJob(ctx context.Context, uid uuid.UUID, inputStructure string, expiresAt *time.Time) error
	FinalizeProcessingTime(ctx context.Context, uid uuid.UUID) error
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)
	CountJobsWithNamePrefix(ctx context.Context, prefix string) (int, error)

	CreateJobResult(ctx context.Context, result *models.JobResult) error
	ListJobResults(ctx context.Context, jobUID uuid.UUID) ([]*models.JobResult, error)
	CountJobResults(ctx context.Context, jobUID uuid.UUID) (int, error)

	GetExampleJob(ctx context.Context, exampleID int) (*models.Job, error)
	SetExampleJob(ctx context.Context, exampleID int, jobUID uuid.UUID) error

	DeleteExpiredJobs(ctx context.Context, now time.Time) ([]ExpiredJob, error)
}

// JobFilter selects either in-flight (Submitted, Queued, Running) or
// finished (Completed, Error) jobs.
type JobFilter struct {
	Finished bool
	Page     int
	Limit    int
}

// ExpiredJob is a deleted job together with the artifact paths its results
// referenced, so the caller can remove the files.
type ExpiredJob struct {
	UID       uuid.UUID
	HashedUID string
	Paths     []string
}

// JobUpdate collects the optional columns written together with a status
// change.
type JobUpdate struct {
	ErrorMessage   *string
	InputStructure *string
	ExpiresAt      *time.Time
}

type JobUpdateOption func(*JobUpdate)

// ApplyJobUpdateOptions folds opts into a JobUpdate.
func ApplyJobUpdateOptions(opts ...JobUpdateOption) JobUpdate {
	var p JobUpdate
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ErrorMessage = &msg
	}
}

func WithInputStructure(input string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.InputStructure = &input
	}
}

func WithExpiresAt(t time.Time) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ExpiresAt = &t
	}
}

var validTransitions = map[string][]string{
	models.JobStatusSubmitted: {models.JobStatusQueued},
	models.JobStatusQueued:    {models.JobStatusRunning, models.JobStatusError},
	models.JobStatusRunning:   {models.JobStatusCompleted, models.JobStatusError},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to string) bool {
	for _, a := range validTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}
