package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vipul43/ledger-sync/internal/service"
)

type countingRunner struct {
	mu    sync.Mutex
	runs  int
	err   error
	ready chan struct{}
	want  int
}

func (r *countingRunner) Run(context.Context) (service.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	if r.runs == r.want {
		close(r.ready)
	}
	return service.Summary{Total: 1}, r.err
}

func TestWatcher_RunsImmediatelyAndOnEveryTick(t *testing.T) {
	runner := &countingRunner{ready: make(chan struct{}), want: 3}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- New(runner, 5*time.Millisecond).Start(ctx) }()

	select {
	case <-runner.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not run three times")
	}
	cancel()

	err := <-done
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWatcher_FailedRunDoesNotStopLoop(t *testing.T) {
	runner := &countingRunner{ready: make(chan struct{}), want: 2, err: errors.New("xero: rate limit exceeded")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- New(runner, 5*time.Millisecond).Start(ctx) }()

	select {
	case <-runner.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher stopped after a failed run")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcher_RejectsNonPositiveInterval(t *testing.T) {
	runner := &countingRunner{ready: make(chan struct{}), want: 1}

	err := New(runner, 0).Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
	assert.Zero(t, runner.runs)
}
