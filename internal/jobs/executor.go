package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/prenwyn/deckgen/internal/domain"
	"github.com/prenwyn/deckgen/internal/generation"
	"github.com/prenwyn/deckgen/internal/redact"
)

// unknownClassBudget caps the attempt count for failures of unknown
// retryability. They are retried like transient failures, but with a
// reduced budget since repeating them is a gamble.
const unknownClassBudget = 2

// Common errors returned by the executor constructor
var (
	ErrNilOperation      = errors.New("operation cannot be nil")
	ErrNilArtifactWriter = errors.New("artifact writer cannot be nil")
)

// Operation executes one work item against an already-resolved provider
// and returns the artifact payload to record on success. Implementations
// are plain closures built at submission time (see service package), so
// executors stay free of provider-specific knowledge.
type Operation func(ctx context.Context, item domain.WorkItem) (string, error)

// Outcome is the terminal per-item result the executor reports to the
// runner's aggregation loop.
type Outcome struct {
	Identity string
	Failed   bool
	Attempts int
}

// ExecutorConfig holds the retry policy settings shared by all items
// of one job.
type ExecutorConfig struct {
	// CallTimeout bounds each individual provider call.
	CallTimeout time.Duration

	// RetryBaseDelay is the base delay for exponential backoff between
	// attempts.
	RetryBaseDelay time.Duration

	// MaxAttempts is the per-item attempt budget. Items carrying their
	// own positive MaxAttempts override it.
	MaxAttempts int
}

// DefaultExecutorConfig returns an ExecutorConfig with reasonable defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		CallTimeout:    3 * time.Minute,
		RetryBaseDelay: 2 * time.Second,
		MaxAttempts:    domain.DefaultMaxAttempts,
	}
}

// Executor runs a single work item to a terminal per-item outcome:
// it attempts the operation, retries transient failures with
// exponential backoff and jitter up to the item's attempt budget, and
// performs exactly one terminal artifact write (success payload or
// failure message), never both, never zero.
//
// Executors hold no per-item state, so one instance safely serves all
// items of a job concurrently.
type Executor struct {
	op        Operation
	artifacts ArtifactWriter
	config    ExecutorConfig
	logger    *slog.Logger
}

// NewExecutor creates an executor for one job's items.
func NewExecutor(op Operation, artifacts ArtifactWriter, config ExecutorConfig, logger *slog.Logger) (*Executor, error) {
	if op == nil {
		return nil, ErrNilOperation
	}
	if artifacts == nil {
		return nil, ErrNilArtifactWriter
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultExecutorConfig().CallTimeout
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = DefaultExecutorConfig().RetryBaseDelay
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = DefaultExecutorConfig().MaxAttempts
	}

	return &Executor{
		op:        op,
		artifacts: artifacts,
		config:    config,
		logger:    logger,
	}, nil
}

// Run executes the item to its terminal outcome. Errors never escape:
// every failure mode, including a panicking operation, is converted
// into a failed outcome with the message recorded on the artifact.
func (e *Executor) Run(ctx context.Context, item domain.WorkItem) Outcome {
	logger := e.logger.With("item_identity", item.Identity)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	budget := e.config.MaxAttempts
	if item.MaxAttempts > 0 {
		budget = item.MaxAttempts
	}

	var lastErr error
	attempt := 0

	for attempt < budget {
		attempt++

		payload, err := e.attempt(ctx, item)
		if err == nil {
			e.writeSuccess(ctx, item.Identity, payload, logger)
			return Outcome{Identity: item.Identity, Attempts: attempt}
		}
		lastErr = err

		class := generation.Classify(err)
		logger.Warn("work item attempt failed",
			"attempt", attempt,
			"max_attempts", budget,
			"error_class", class,
			"error", err)

		if class == generation.ErrorClassPermanent {
			break
		}

		// Unknown-class failures are retried like transient ones, but
		// on a reduced budget.
		if class == generation.ErrorClassUnknown && budget > unknownClassBudget {
			budget = unknownClassBudget
		}

		if attempt >= budget {
			break
		}

		if err := e.backoff(ctx, attempt, rng); err != nil {
			lastErr = fmt.Errorf("retry wait aborted: %w", err)
			break
		}
	}

	e.writeFailure(ctx, item.Identity, lastErr, logger)
	return Outcome{Identity: item.Identity, Failed: true, Attempts: attempt}
}

// attempt performs one bounded provider call, converting a panic in
// the operation into a permanent error so one bad item can never take
// down its siblings or the pool.
func (e *Executor) attempt(ctx context.Context, item domain.WorkItem) (payload string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = generation.PermanentError("executor.attempt", fmt.Errorf("operation panicked: %v", r))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	return e.op(callCtx, item)
}

// backoff waits for the exponential backoff delay with jitter, or
// returns early if the context is cancelled.
// delay = baseDelay * (2^(attempt-1)) * (0.5 + rand(0, 0.5))
func (e *Executor) backoff(ctx context.Context, attempt int, rng *rand.Rand) error {
	backoff := float64(e.config.RetryBaseDelay) * math.Pow(2, float64(attempt-1))
	jitterFactor := 0.5 + rng.Float64()*0.5 // Between 0.5 and 1.0
	delay := time.Duration(backoff * jitterFactor)

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) writeSuccess(ctx context.Context, identity, payload string, logger *slog.Logger) {
	if err := e.artifacts.WriteSuccess(ctx, identity, payload); err != nil {
		// The generation result is lost for this artifact, but the
		// aggregate counters must still advance; log and move on.
		logger.Error("failed to write success artifact", "error", err)
	}
}

func (e *Executor) writeFailure(ctx context.Context, identity string, cause error, logger *slog.Logger) {
	message := "work item failed"
	if cause != nil {
		// Provider errors can echo the failed request; scrub credentials
		// before the message becomes a durable artifact.
		message = redact.Error(cause)
	}
	if err := e.artifacts.WriteFailure(ctx, identity, message); err != nil {
		logger.Error("failed to write failure artifact", "error", err)
	}
}
