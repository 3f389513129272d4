package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prenwyn/deckgen/internal/domain"
)

// MemoryJobStore is an in-process JobStore used in tests and when no
// database is configured. All operations serialize through one mutex,
// which gives the same atomic-update guarantee a single-row database
// update provides.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[uuid.UUID]*domain.Job),
	}
}

// Create persists a new pending job.
func (s *MemoryJobStore) Create(ctx context.Context, kind domain.JobKind, total int) (*domain.Job, error) {
	job, err := domain.NewJob(kind, total)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job

	return copyJob(job), nil
}

// Transition moves a job to a new status. Terminal jobs are left
// untouched and the call reports success, so finalization is
// idempotent under races.
func (s *MemoryJobStore) Transition(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	if job.IsTerminal() {
		return nil
	}

	if !domain.CanTransition(job.Status, status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidJobTransition, job.Status, status)
	}

	job.Status = status
	if status == domain.JobStatusFailed {
		job.Error = errMsg
	}
	if job.IsTerminal() {
		now := time.Now().UTC()
		job.CompletedAt = &now
	}

	return nil
}

// RecordProgress writes an absolute progress snapshot. Regressing or
// overflowing counters are rejected to protect the progress invariant.
func (s *MemoryJobStore) RecordProgress(ctx context.Context, id uuid.UUID, completed, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	next := domain.Progress{Total: job.Progress.Total, Completed: completed, Failed: failed}
	if err := next.Validate(); err != nil {
		return err
	}
	if completed < job.Progress.Completed || failed < job.Progress.Failed {
		return fmt.Errorf("%w: progress counters cannot decrease", domain.ErrInvalidJobProgress)
	}

	job.Progress = next
	return nil
}

// Get retrieves the latest committed state of a job.
func (s *MemoryJobStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	return copyJob(job), nil
}

// copyJob returns a defensive copy so callers never share memory with
// the stored record.
func copyJob(job *domain.Job) *domain.Job {
	out := *job
	if job.CompletedAt != nil {
		at := *job.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}
