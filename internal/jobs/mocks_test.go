package jobs

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// newTestLogger returns a logger that swallows output so test runs stay
// quiet.
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// recordingArtifacts captures every artifact write for assertions.
type recordingArtifacts struct {
	mu        sync.Mutex
	successes map[string]string
	failures  map[string]string

	// failWrites, when set, makes every write return this error.
	failWrites error
}

func newRecordingArtifacts() *recordingArtifacts {
	return &recordingArtifacts{
		successes: make(map[string]string),
		failures:  make(map[string]string),
	}
}

func (r *recordingArtifacts) WriteSuccess(ctx context.Context, identity, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	r.successes[identity] = payload
	return nil
}

func (r *recordingArtifacts) WriteFailure(ctx context.Context, identity, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	r.failures[identity] = message
	return nil
}

func (r *recordingArtifacts) successCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.successes)
}

func (r *recordingArtifacts) failureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

func (r *recordingArtifacts) success(identity string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payload, ok := r.successes[identity]
	return payload, ok
}

func (r *recordingArtifacts) failure(identity string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	message, ok := r.failures[identity]
	return message, ok
}

// waitFor polls the condition until it holds or the deadline expires.
// Tests use it instead of runner internals so they observe exactly what
// a polling client would.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.After(10 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for condition")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
