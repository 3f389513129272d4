package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prenwyn/deckgen/internal/domain"
	"github.com/prenwyn/deckgen/internal/generation"
)

func fastRunnerConfig() RunnerConfig {
	return RunnerConfig{
		TextConcurrency:  5,
		ImageConcurrency: 8,
		Executor:         fastRetryConfig(),
	}
}

func makeItems(t *testing.T, n int) []domain.WorkItem {
	t.Helper()

	items := make([]domain.WorkItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, mustWorkItem(t, fmt.Sprintf("page-%d", i+1)))
	}
	return items
}

// preparedOp returns a Prepare hook that always resolves to op.
func preparedOp(op Operation) func(ctx context.Context) (Operation, error) {
	return func(ctx context.Context) (Operation, error) {
		return op, nil
	}
}

func TestNewRunner(t *testing.T) {
	t.Parallel()

	t.Run("nil store", func(t *testing.T) {
		t.Parallel()

		_, err := NewRunner(nil, fastRunnerConfig(), newTestLogger())
		assert.ErrorIs(t, err, ErrNilStore)
	})

	t.Run("nil logger", func(t *testing.T) {
		t.Parallel()

		_, err := NewRunner(NewMemoryJobStore(), fastRunnerConfig(), nil)
		assert.ErrorIs(t, err, ErrNilLogger)
	})

	t.Run("non-positive concurrency gets defaults", func(t *testing.T) {
		t.Parallel()

		runner, err := NewRunner(NewMemoryJobStore(), RunnerConfig{}, newTestLogger())
		require.NoError(t, err)
		assert.Equal(t, DefaultRunnerConfig().TextConcurrency, runner.config.TextConcurrency)
		assert.Equal(t, DefaultRunnerConfig().ImageConcurrency, runner.config.ImageConcurrency)
	})
}

func TestRunnerSubmitValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryJobStore()
	runner, err := NewRunner(store, fastRunnerConfig(), newTestLogger())
	require.NoError(t, err)

	op := func(ctx context.Context, item domain.WorkItem) (string, error) { return "", nil }

	t.Run("nil prepare", func(t *testing.T) {
		t.Parallel()

		_, err := runner.Submit(ctx, SubmitSpec{
			Kind:      domain.JobKindExport,
			Items:     makeItems(t, 1),
			Artifacts: newRecordingArtifacts(),
		})
		assert.ErrorIs(t, err, ErrNilPrepare)
	})

	t.Run("nil artifact writer", func(t *testing.T) {
		t.Parallel()

		_, err := runner.Submit(ctx, SubmitSpec{
			Kind:    domain.JobKindExport,
			Items:   makeItems(t, 1),
			Prepare: preparedOp(op),
		})
		assert.ErrorIs(t, err, ErrNilArtifactWriter)
	})

	t.Run("no items", func(t *testing.T) {
		t.Parallel()

		_, err := runner.Submit(ctx, SubmitSpec{
			Kind:      domain.JobKindExport,
			Artifacts: newRecordingArtifacts(),
			Prepare:   preparedOp(op),
		})
		assert.ErrorIs(t, err, ErrNoWorkItems)
	})

	t.Run("invalid item", func(t *testing.T) {
		t.Parallel()

		_, err := runner.Submit(ctx, SubmitSpec{
			Kind:      domain.JobKindExport,
			Items:     []domain.WorkItem{{Identity: ""}},
			Artifacts: newRecordingArtifacts(),
			Prepare:   preparedOp(op),
		})
		assert.ErrorIs(t, err, domain.ErrEmptyWorkItemIdentity)
	})

	t.Run("invalid kind", func(t *testing.T) {
		t.Parallel()

		_, err := runner.Submit(ctx, SubmitSpec{
			Kind:      domain.JobKind("bogus"),
			Items:     makeItems(t, 1),
			Artifacts: newRecordingArtifacts(),
			Prepare:   preparedOp(op),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidJobKind)
	})
}

func TestRunnerMixedOutcomeBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryJobStore()
	runner, err := NewRunner(store, fastRunnerConfig(), newTestLogger())
	require.NoError(t, err)

	artifacts := newRecordingArtifacts()

	// 10 items: pages 3 and 7 fail permanently, the rest succeed.
	op := func(ctx context.Context, item domain.WorkItem) (string, error) {
		switch item.Identity {
		case "page-3", "page-7":
			return "", generation.PermanentError("fake.call", errors.New("blocked"))
		default:
			return "desc " + item.Identity, nil
		}
	}

	jobID, err := runner.Submit(ctx, SubmitSpec{
		Kind:      domain.JobKindBatchDescriptionGeneration,
		Items:     makeItems(t, 10),
		Artifacts: artifacts,
		Prepare:   preparedOp(op),
	})
	require.NoError(t, err)

	runner.Wait()

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)

	// Partial failure is still a completed run: the batch finished and
	// the per-item split lives in the counters and artifacts.
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, domain.Progress{Total: 10, Completed: 8, Failed: 2}, job.Progress)
	assert.NotNil(t, job.CompletedAt)

	assert.Equal(t, 8, artifacts.successCount())
	assert.Equal(t, 2, artifacts.failureCount())
	_, ok := artifacts.failure("page-3")
	assert.True(t, ok)
	_, ok = artifacts.failure("page-7")
	assert.True(t, ok)
}

func TestRunnerAllItemsFailedStillCompletes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryJobStore()
	runner, err := NewRunner(store, fastRunnerConfig(), newTestLogger())
	require.NoError(t, err)

	artifacts := newRecordingArtifacts()
	op := func(ctx context.Context, item domain.WorkItem) (string, error) {
		return "", generation.PermanentError("fake.call", errors.New("blocked"))
	}

	jobID, err := runner.Submit(ctx, SubmitSpec{
		Kind:      domain.JobKindBatchImageGeneration,
		Items:     makeItems(t, 4),
		Artifacts: artifacts,
		Prepare:   preparedOp(op),
	})
	require.NoError(t, err)

	runner.Wait()

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status, "the run finished; failure shows in the counters")
	assert.Equal(t, domain.Progress{Total: 4, Completed: 0, Failed: 4}, job.Progress)
	assert.Equal(t, 4, artifacts.failureCount())
}

func TestRunnerPrepareFailureFailsJobBeforeDispatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryJobStore()
	runner, err := NewRunner(store, fastRunnerConfig(), newTestLogger())
	require.NoError(t, err)

	artifacts := newRecordingArtifacts()

	jobID, err := runner.Submit(ctx, SubmitSpec{
		Kind:      domain.JobKindBatchDescriptionGeneration,
		Items:     makeItems(t, 5),
		Artifacts: artifacts,
		Prepare: func(ctx context.Context) (Operation, error) {
			return nil, generation.ErrProviderUnavailable
		},
	})
	require.ErrorIs(t, err, ErrProviderSetup)
	require.NotEqual(t, uuid.Nil, jobID, "the job ID is returned so pollers can observe the failure")

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, domain.Progress{Total: 5, Completed: 0, Failed: 0}, job.Progress)
	assert.NotEmpty(t, job.Error)

	assert.Equal(t, 0, artifacts.successCount(), "no artifact is touched when resolution fails")
	assert.Equal(t, 0, artifacts.failureCount())
}

func TestRunnerConcurrencyBound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryJobStore()
	runner, err := NewRunner(store, fastRunnerConfig(), newTestLogger())
	require.NoError(t, err)

	const limit = 3

	var inFlight, peak atomic.Int32
	op := func(ctx context.Context, item domain.WorkItem) (string, error) {
		now := inFlight.Add(1)
		defer inFlight.Add(-1)

		// Track the high-water mark of concurrent provider calls.
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}

		time.Sleep(20 * time.Millisecond)
		return "ok", nil
	}

	_, err = runner.Submit(ctx, SubmitSpec{
		Kind:        domain.JobKindBatchImageGeneration,
		Items:       makeItems(t, 12),
		Artifacts:   newRecordingArtifacts(),
		Prepare:     preparedOp(op),
		Concurrency: limit,
	})
	require.NoError(t, err)

	runner.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(limit), "in-flight calls must never exceed the configured bound")
	assert.Greater(t, peak.Load(), int32(1), "the pool should actually run items concurrently")
}

func TestRunnerProgressIsObservableMidRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryJobStore()
	runner, err := NewRunner(store, fastRunnerConfig(), newTestLogger())
	require.NoError(t, err)

	release := make(chan struct{})
	var done atomic.Int32
	op := func(ctx context.Context, item domain.WorkItem) (string, error) {
		// The first two items finish immediately; the rest wait so the
		// test can observe intermediate progress.
		if done.Add(1) > 2 {
			<-release
		}
		return "ok", nil
	}

	jobID, err := runner.Submit(ctx, SubmitSpec{
		Kind:        domain.JobKindBatchDescriptionGeneration,
		Items:       makeItems(t, 6),
		Artifacts:   newRecordingArtifacts(),
		Prepare:     preparedOp(op),
		Concurrency: 6,
	})
	require.NoError(t, err)

	waitFor(t, func() bool {
		job, err := store.Get(ctx, jobID)
		require.NoError(t, err)
		return job.Status == domain.JobStatusRunning && job.Progress.Completed >= 2
	})

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, job.IsTerminal())
	assert.Equal(t, 6, job.Progress.Total)
	assert.LessOrEqual(t, job.Progress.Completed+job.Progress.Failed, job.Progress.Total)

	close(release)
	runner.Wait()

	job, err = store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, domain.Progress{Total: 6, Completed: 6, Failed: 0}, job.Progress)
}

func TestRunnerSurvivesCallerContextCancellation(t *testing.T) {
	t.Parallel()

	store := NewMemoryJobStore()
	runner, err := NewRunner(store, fastRunnerConfig(), newTestLogger())
	require.NoError(t, err)

	submitCtx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var once sync.Once
	op := func(ctx context.Context, item domain.WorkItem) (string, error) {
		once.Do(func() { close(started) })
		time.Sleep(30 * time.Millisecond)
		return "ok", nil
	}

	jobID, err := runner.Submit(submitCtx, SubmitSpec{
		Kind:      domain.JobKindMaterialGeneration,
		Items:     makeItems(t, 3),
		Artifacts: newRecordingArtifacts(),
		Prepare:   preparedOp(op),
	})
	require.NoError(t, err)

	<-started
	// The submitting request dies; the batch must still run to its
	// terminal status.
	cancel()

	runner.Wait()

	job, err := store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, domain.Progress{Total: 3, Completed: 3, Failed: 0}, job.Progress)
}

func TestRunnerDefaultConcurrencyByKind(t *testing.T) {
	t.Parallel()

	config := RunnerConfig{TextConcurrency: 2, ImageConcurrency: 7, Executor: fastRetryConfig()}
	runner, err := NewRunner(NewMemoryJobStore(), config, newTestLogger())
	require.NoError(t, err)

	tests := []struct {
		kind domain.JobKind
		want int
	}{
		{domain.JobKindBatchDescriptionGeneration, 2},
		{domain.JobKindMaterialGeneration, 2},
		{domain.JobKindExport, 2},
		{domain.JobKindBatchImageGeneration, 7},
		{domain.JobKindSingleImageGeneration, 7},
		{domain.JobKindImageEdit, 7},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, runner.defaultConcurrency(tc.kind), "kind %s", tc.kind)
	}
}
