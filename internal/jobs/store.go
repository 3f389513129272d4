package jobs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/prenwyn/deckgen/internal/domain"
)

// Common errors returned by job store implementations
var (
	// ErrJobNotFound is returned when the requested job does not exist.
	ErrJobNotFound = errors.New("job not found")
)

// JobStore defines the interface for persisting job records.
// Writes must be atomic and durable; a single-row update is sufficient,
// no cross-row transaction is required. Status transitions committed
// through the store are immediately visible to pollers via Get.
type JobStore interface {
	// Create persists a new pending job of the given kind covering
	// total work items and returns it.
	Create(ctx context.Context, kind domain.JobKind, total int) (*domain.Job, error)

	// Transition moves a job to a new status. errMsg is recorded only
	// for failed transitions. Transitioning a job that is already
	// terminal is a no-op, so a raced finalization commits exactly one
	// terminal status. Invalid non-terminal transitions return
	// domain.ErrInvalidJobTransition.
	Transition(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg string) error

	// RecordProgress durably writes a progress snapshot. Counters are
	// absolute values, not deltas; callers serialize updates so
	// snapshots never regress.
	RecordProgress(ctx context.Context, id uuid.UUID, completed, failed int) error

	// Get retrieves the latest committed state of a job.
	// Returns ErrJobNotFound if the job does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}

// ArtifactWriter records the terminal outcome of one work item on the
// business artifact the item was meant to update (e.g. a page's
// description or image path). Exactly one of the two methods is called
// per work item, never both, never zero.
type ArtifactWriter interface {
	// WriteSuccess records the item's result payload on the artifact
	// identified by identity.
	WriteSuccess(ctx context.Context, identity, payload string) error

	// WriteFailure records a human-readable error message on the
	// artifact identified by identity.
	WriteFailure(ctx context.Context, identity, message string) error
}
