package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a generation job
type JobStatus string

// Possible job status values. Transitions are strictly forward:
// pending -> running -> {completed, failed}, with pending -> failed
// allowed for jobs that fail before any work is dispatched.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobKind identifies the type of work a job performs
type JobKind string

// Possible job kind values
const (
	JobKindBatchDescriptionGeneration JobKind = "batch_description_generation"
	JobKindBatchImageGeneration       JobKind = "batch_image_generation"
	JobKindSingleImageGeneration      JobKind = "single_image_generation"
	JobKindImageEdit                  JobKind = "image_edit"
	JobKindMaterialGeneration         JobKind = "material_generation"
	JobKindExport                     JobKind = "export"
)

// Common validation errors for Job
var (
	ErrEmptyJobID           = errors.New("job ID cannot be empty")
	ErrInvalidJobKind       = errors.New("invalid job kind")
	ErrInvalidJobStatus     = errors.New("invalid job status")
	ErrInvalidJobTransition = errors.New("invalid job status transition")
	ErrNegativeJobTotal     = errors.New("job total cannot be negative")
	ErrInvalidJobProgress   = errors.New("invalid job progress")
)

// Progress holds the aggregate per-item counters for a job.
// Completed and Failed only ever increase, and their sum never
// exceeds Total. Total is fixed when the job is created.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Done reports whether every item has reached a terminal outcome.
func (p Progress) Done() bool {
	return p.Completed+p.Failed == p.Total
}

// Validate checks the internal consistency of the progress counters.
func (p Progress) Validate() error {
	if p.Total < 0 {
		return ErrNegativeJobTotal
	}
	if p.Completed < 0 || p.Failed < 0 {
		return fmt.Errorf("%w: counters cannot be negative", ErrInvalidJobProgress)
	}
	if p.Completed+p.Failed > p.Total {
		return fmt.Errorf("%w: completed+failed (%d) exceeds total (%d)",
			ErrInvalidJobProgress, p.Completed+p.Failed, p.Total)
	}
	return nil
}

// Job is the durable record tracking one batch (or single) generation
// request's lifecycle and aggregate progress. It is exclusively owned
// by the runner while running and read-only to everyone else; once
// terminal it is immutable.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Kind        JobKind    `json:"kind"`
	Status      JobStatus  `json:"status"`
	Progress    Progress   `json:"progress"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a new pending Job of the given kind covering total items.
// It generates a new UUID and sets the creation timestamp.
// Returns an error if validation fails.
func NewJob(kind JobKind, total int) (*Job, error) {
	job := &Job{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    JobStatusPending,
		Progress:  Progress{Total: total},
		CreatedAt: time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks that the job data is valid.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}
	if !IsValidJobKind(j.Kind) {
		return fmt.Errorf("%w: %q", ErrInvalidJobKind, j.Kind)
	}
	if !IsValidJobStatus(j.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidJobStatus, j.Status)
	}
	return j.Progress.Validate()
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// IsValidJobStatus checks if the provided status is a valid job status.
func IsValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsValidJobKind checks if the provided kind is a valid job kind.
func IsValidJobKind(kind JobKind) bool {
	switch kind {
	case JobKindBatchDescriptionGeneration,
		JobKindBatchImageGeneration,
		JobKindSingleImageGeneration,
		JobKindImageEdit,
		JobKindMaterialGeneration,
		JobKindExport:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from one job status to another
// is allowed. Terminal states have no outgoing transitions. A job may
// fail directly from pending when provider resolution fails before
// any item is dispatched.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusRunning || to == JobStatusFailed
	case JobStatusRunning:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}
