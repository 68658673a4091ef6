package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"classreminder/internal/runlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingRunner holds every run open until release is closed.
type blockingRunner struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context) (RunStats, error) {
	r.calls.Add(1)
	r.once.Do(func() { close(r.started) })
	<-r.release
	return RunStats{Sent: 1, Pairs: 1}, nil
}

type funcRunner func(ctx context.Context) (RunStats, error)

func (f funcRunner) Run(ctx context.Context) (RunStats, error) { return f(ctx) }

func TestTickSkipsWhileRunning(t *testing.T) {
	runner := newBlockingRunner()
	sink := &memorySink{}
	w := NewReminderWorker(runner, sink, WorkerConfig{}, discardLogger)

	done := make(chan bool)
	go func() { done <- w.Tick(context.Background(), TriggerCron) }()
	<-runner.started
	require.True(t, w.Guard().Running())

	assert.False(t, w.Tick(context.Background(), TriggerCron))
	assert.Equal(t, int32(1), runner.calls.Load())

	entries := sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, runlog.OutcomeSkipped, entries[0].Outcome)
	assert.Equal(t, "overlap", entries[0].Reason)

	close(runner.release)
	assert.True(t, <-done)
	assert.False(t, w.Guard().Running())

	entries = sink.all()
	require.Len(t, entries, 2)
	assert.Equal(t, runlog.OutcomeSuccess, entries[1].Outcome)
	assert.Equal(t, 1, entries[1].Counts["sent"])
}

func TestTickLogsFailureAndReleasesGuard(t *testing.T) {
	sink := &memorySink{}
	runner := funcRunner(func(context.Context) (RunStats, error) {
		return RunStats{}, &StoreError{Op: "fetch occurrences", Err: errors.New("db down")}
	})
	w := NewReminderWorker(runner, sink, WorkerConfig{}, discardLogger)

	assert.True(t, w.Tick(context.Background(), TriggerCron))
	assert.True(t, w.Tick(context.Background(), TriggerCron))

	entries := sink.all()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, runlog.OutcomeFailed, e.Outcome)
		assert.Contains(t, e.Reason, "db down")
	}
}

func TestTickRecoversPanic(t *testing.T) {
	sink := &memorySink{}
	runner := funcRunner(func(context.Context) (RunStats, error) { panic("nil map") })
	w := NewReminderWorker(runner, sink, WorkerConfig{}, discardLogger)

	assert.True(t, w.Tick(context.Background(), TriggerCron))
	assert.False(t, w.Guard().Running())

	entries := sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, runlog.OutcomeFailed, entries[0].Outcome)
	assert.Contains(t, entries[0].Reason, "nil map")
}

func TestTriggerAsync(t *testing.T) {
	runner := newBlockingRunner()
	sink := &memorySink{}
	w := NewReminderWorker(runner, sink, WorkerConfig{}, discardLogger)

	require.True(t, w.TriggerAsync(TriggerManual))
	<-runner.started
	assert.False(t, w.TriggerAsync(TriggerManual))

	close(runner.release)
	w.Stop()

	entries := sink.all()
	require.Len(t, entries, 2)
	assert.Equal(t, runlog.OutcomeSkipped, entries[0].Outcome)
	assert.Equal(t, TriggerManual, entries[1].Trigger)
	assert.Equal(t, runlog.OutcomeSuccess, entries[1].Outcome)
}

func TestStartRunsOnSchedule(t *testing.T) {
	var calls atomic.Int32
	runner := funcRunner(func(context.Context) (RunStats, error) {
		calls.Add(1)
		return RunStats{}, nil
	})
	sink := &memorySink{}
	w := NewReminderWorker(runner, sink, WorkerConfig{Schedule: "@every 1s"}, discardLogger)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	require.Eventually(t, func() bool { return len(sink.all()) >= 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, TriggerCron, sink.all()[0].Trigger)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	w := NewReminderWorker(funcRunner(nil), &memorySink{}, WorkerConfig{Schedule: "every minute"}, discardLogger)
	assert.Error(t, w.Start(context.Background()))
}

type fakePurger struct {
	cutoff time.Time
	n      int64
}

func (p *fakePurger) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return p.n, nil
}

func TestPurgeUsesRetention(t *testing.T) {
	purger := &fakePurger{n: 3}
	w := NewReminderWorker(funcRunner(nil), &memorySink{}, WorkerConfig{Retention: 24 * time.Hour}, discardLogger).
		WithPurger(purger)
	now := time.Date(2026, 10, 19, 3, 15, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	w.Purge(context.Background())
	assert.Equal(t, now.Add(-24*time.Hour), purger.cutoff)
}
