package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prenwyn/deckgen/internal/domain"
	"github.com/prenwyn/deckgen/internal/redact"
)

// Common errors returned by Runner.Submit
var (
	ErrNilStore      = errors.New("job store cannot be nil")
	ErrNilLogger     = errors.New("logger cannot be nil")
	ErrNilPrepare    = errors.New("prepare function cannot be nil")
	ErrNoWorkItems   = errors.New("job must contain at least one work item")
	ErrProviderSetup = errors.New("provider resolution failed")
)

// RunnerConfig holds configuration for the job runner.
type RunnerConfig struct {
	// TextConcurrency is the default worker count for text jobs.
	TextConcurrency int

	// ImageConcurrency is the default worker count for image jobs.
	ImageConcurrency int

	// Executor carries the retry policy applied to every item.
	Executor ExecutorConfig
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		TextConcurrency:  5,
		ImageConcurrency: 8,
		Executor:         DefaultExecutorConfig(),
	}
}

// SubmitSpec describes one job submission.
type SubmitSpec struct {
	// Kind is the job type.
	Kind domain.JobKind

	// Items are the independent units of work, dispatched
	// first-submitted-first-dispatched as pool slots free up.
	Items []domain.WorkItem

	// Artifacts receives exactly one terminal write per item.
	Artifacts ArtifactWriter

	// Prepare resolves the provider (or any other per-job resources)
	// exactly once, before any item is dispatched. A failure here
	// fails the whole job without touching any artifact.
	Prepare func(ctx context.Context) (Operation, error)

	// Concurrency overrides the kind-based default worker count when
	// positive.
	Concurrency int
}

// Runner owns the bounded worker pool and the job's progress
// aggregation. Work proceeds on background goroutines; Submit returns
// as soon as the job record is durable and the provider is resolved.
//
// A job is never cancelled mid-batch: an abandoned job (a caller that
// stops polling) still runs to completion so no artifact is left in a
// half-written state. This is a deliberate design choice, not a leak.
type Runner struct {
	store  JobStore
	config RunnerConfig
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRunner creates a new job runner.
func NewRunner(store JobStore, config RunnerConfig, logger *slog.Logger) (*Runner, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if config.TextConcurrency < 1 {
		config.TextConcurrency = DefaultRunnerConfig().TextConcurrency
	}
	if config.ImageConcurrency < 1 {
		config.ImageConcurrency = DefaultRunnerConfig().ImageConcurrency
	}

	return &Runner{
		store:  store,
		config: config,
		logger: logger,
	}, nil
}

// Submit creates the job record and starts background execution,
// returning the job ID immediately. The returned ID is valid even when
// an error is returned alongside it: a provider-resolution failure is
// committed to the store as a failed job so pollers observe it.
func (r *Runner) Submit(ctx context.Context, spec SubmitSpec) (uuid.UUID, error) {
	if spec.Prepare == nil {
		return uuid.Nil, ErrNilPrepare
	}
	if spec.Artifacts == nil {
		return uuid.Nil, ErrNilArtifactWriter
	}
	if len(spec.Items) == 0 {
		return uuid.Nil, ErrNoWorkItems
	}
	for _, item := range spec.Items {
		if err := item.Validate(); err != nil {
			return uuid.Nil, fmt.Errorf("invalid work item %q: %w", item.Identity, err)
		}
	}

	job, err := r.store.Create(ctx, spec.Kind, len(spec.Items))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create job record: %w", err)
	}

	logger := r.logger.With("job_id", job.ID, "job_kind", job.Kind)

	// Resolve the provider once per submission so every item in the
	// batch sees the same backend even if configuration changes
	// mid-run. A resolution failure fails the job before any item is
	// dispatched; no artifact is touched.
	op, err := spec.Prepare(ctx)
	if err != nil {
		logger.Error("provider resolution failed, failing job before dispatch", "error", err)
		if terr := r.store.Transition(ctx, job.ID, domain.JobStatusFailed, redact.Error(err)); terr != nil {
			logger.Error("failed to mark job failed", "error", terr)
		}
		return job.ID, fmt.Errorf("%w: %v", ErrProviderSetup, err)
	}

	concurrency := spec.Concurrency
	if concurrency < 1 {
		concurrency = r.defaultConcurrency(spec.Kind)
	}

	r.wg.Add(1)
	go r.run(job.ID, spec, op, concurrency, logger)

	return job.ID, nil
}

// Wait blocks until all in-flight jobs have finalized. Used for
// graceful shutdown; new submissions during Wait are not prevented.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Store exposes the backing job store for polling reads.
func (r *Runner) Store() JobStore {
	return r.store
}

// defaultConcurrency maps a job kind to its configured worker count.
// Image calls are heavier than text calls, so they get the larger pool
// to keep batch wall-clock time in the same ballpark.
func (r *Runner) defaultConcurrency(kind domain.JobKind) int {
	switch kind {
	case domain.JobKindBatchImageGeneration,
		domain.JobKindSingleImageGeneration,
		domain.JobKindImageEdit:
		return r.config.ImageConcurrency
	default:
		return r.config.TextConcurrency
	}
}

// run drives one job from running to a terminal status. It is the
// single aggregation point for the job's progress counters: workers
// report outcomes over a channel and only this goroutine mutates the
// counters, so no update is lost and completed+failed never exceeds
// total.
func (r *Runner) run(jobID uuid.UUID, spec SubmitSpec, op Operation, concurrency int, logger *slog.Logger) {
	defer r.wg.Done()

	// The submission context belongs to the caller and may die with
	// its HTTP request; job execution is deliberately detached.
	ctx := context.Background()

	defer func() {
		if rec := recover(); rec != nil {
			// A panic here is a runner-level fault, not attributable
			// to any single item: fail the whole job with a diagnostic.
			msg := redact.String(fmt.Sprintf("runner fatal: %v", rec))
			logger.Error("job runner panicked", "panic", rec)
			if err := r.store.Transition(ctx, jobID, domain.JobStatusFailed, msg); err != nil {
				logger.Error("failed to mark job failed after panic", "error", err)
			}
		}
	}()

	executor, err := NewExecutor(op, spec.Artifacts, r.config.Executor, logger)
	if err != nil {
		logger.Error("failed to construct executor", "error", err)
		if terr := r.store.Transition(ctx, jobID, domain.JobStatusFailed, redact.Error(err)); terr != nil {
			logger.Error("failed to mark job failed", "error", terr)
		}
		return
	}

	// Running is committed atomically with the first dispatch: workers
	// start only after this write succeeds.
	if err := r.store.Transition(ctx, jobID, domain.JobStatusRunning, ""); err != nil {
		logger.Error("failed to transition job to running", "error", err)
		if terr := r.store.Transition(ctx, jobID, domain.JobStatusFailed, redact.Error(err)); terr != nil {
			logger.Error("failed to mark job failed", "error", terr)
		}
		return
	}

	logger.Info("job running",
		"total", len(spec.Items),
		"concurrency", concurrency)
	started := time.Now()

	outcomes := make(chan Outcome)
	slots := make(chan struct{}, concurrency)

	go func() {
		for _, item := range spec.Items {
			slots <- struct{}{}
			go func(item domain.WorkItem) {
				defer func() { <-slots }()
				outcomes <- executor.Run(ctx, item)
			}(item)
		}
	}()

	completed, failed := 0, 0
	total := len(spec.Items)

	for completed+failed < total {
		outcome := <-outcomes
		if outcome.Failed {
			failed++
		} else {
			completed++
		}

		if err := r.store.RecordProgress(ctx, jobID, completed, failed); err != nil {
			// Progress snapshots are best-effort between terminal
			// writes; pollers catch up on the next one.
			logger.Error("failed to record progress",
				"completed", completed,
				"failed", failed,
				"error", err)
		}
	}

	if err := r.store.Transition(ctx, jobID, domain.JobStatusCompleted, ""); err != nil {
		logger.Error("failed to finalize job", "error", err)
		return
	}

	logger.Info("job completed",
		"completed", completed,
		"failed", failed,
		"duration", time.Since(started))
}
