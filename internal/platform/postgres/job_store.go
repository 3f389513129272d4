package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prenwyn/deckgen/internal/domain"
	"github.com/prenwyn/deckgen/internal/jobs"
	"github.com/prenwyn/deckgen/internal/platform/logger"
)

// DBTX abstracts the database access layer. It is implemented by both
// *sql.DB and *sql.Tx, allowing the store to work with either a
// connection pool or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// JobStore implements the jobs.JobStore interface using PostgreSQL.
type JobStore struct {
	db DBTX
}

// NewJobStore creates a new JobStore.
func NewJobStore(db DBTX) *JobStore {
	return &JobStore{
		db: db,
	}
}

// Create persists a new pending job and returns it.
func (s *JobStore) Create(ctx context.Context, kind domain.JobKind, total int) (*domain.Job, error) {
	log := logger.FromContext(ctx)

	job, err := domain.NewJob(kind, total)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO jobs (id, kind, status, total, completed, failed, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		job.Kind,
		job.Status,
		job.Progress.Total,
		job.Progress.Completed,
		job.Progress.Failed,
		job.Error,
		job.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create job",
			"job_id", job.ID,
			"job_kind", job.Kind,
			"error", err)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// Transition moves a job to a new status. The WHERE clause excludes
// terminal rows, so a raced finalization updates exactly one of the
// two attempts and the loser degrades to a no-op.
func (s *JobStore) Transition(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg string) error {
	log := logger.FromContext(ctx)

	var completedAt any
	if status == domain.JobStatusCompleted || status == domain.JobStatusFailed {
		completedAt = time.Now().UTC()
	}

	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, completed_at = $3
		WHERE id = $4 AND status NOT IN ('completed', 'failed')
	`

	result, err := s.db.ExecContext(ctx, query,
		status,
		errMsg,
		completedAt,
		id,
	)
	if err != nil {
		log.Error("failed to transition job",
			"job_id", id,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to transition job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Either the job does not exist or it is already terminal.
		// The former is a caller bug surfaced by Get; the latter is
		// the idempotent-finalization path.
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.IsTerminal() {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidJobTransition, current.Status, status)
	}

	return nil
}

// RecordProgress durably writes an absolute progress snapshot. The
// GREATEST guards keep counters monotonic even if a stale snapshot
// arrives after a newer one.
func (s *JobStore) RecordProgress(ctx context.Context, id uuid.UUID, completed, failed int) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET completed = GREATEST(completed, $1), failed = GREATEST(failed, $2)
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, completed, failed, id)
	if err != nil {
		log.Error("failed to record progress",
			"job_id", id,
			"completed", completed,
			"failed", failed,
			"error", err)
		return fmt.Errorf("failed to record progress: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, id)
	}

	return nil
}

// Get retrieves the latest committed state of a job.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT id, kind, status, total, completed, failed, error_message, created_at, completed_at
		FROM jobs
		WHERE id = $1
	`

	var job domain.Job
	var errorMessage sql.NullString
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID,
		&job.Kind,
		&job.Status,
		&job.Progress.Total,
		&job.Progress.Completed,
		&job.Progress.Failed,
		&errorMessage,
		&job.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.Error = errorMessage.String
	if completedAt.Valid {
		at := completedAt.Time
		job.CompletedAt = &at
	}

	return &job, nil
}

var _ jobs.JobStore = (*JobStore)(nil)
